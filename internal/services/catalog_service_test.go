package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"catalog-inventory-service/internal/models"
	"catalog-inventory-service/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCategoryRepo is an in-memory CategoryRepositoryInterface used to
// exercise the tree logic without a database
type fakeCategoryRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]models.Category
	deleteErr error
}

var _ repository.CategoryRepositoryInterface = (*fakeCategoryRepo)(nil)

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{rows: make(map[uuid.UUID]models.Category)}
}

func (f *fakeCategoryRepo) LoadAll() ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Category, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeCategoryRepo) GetByID(id uuid.UUID) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return &row, nil
}

func (f *fakeCategoryRepo) Create(category *models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[category.ID] = *category
	return nil
}

func (f *fakeCategoryRepo) Save(category *models.Category) error {
	return f.Create(category)
}

func (f *fakeCategoryRepo) SaveBatch(categories []*models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, category := range categories {
		f.rows[category.ID] = *category
	}
	return nil
}

func (f *fakeCategoryRepo) DeleteBatch(ids []uuid.UUID, renumbered []*models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, id := range ids {
		delete(f.rows, id)
	}
	for _, category := range renumbered {
		f.rows[category.ID] = *category
	}
	return nil
}

func (f *fakeCategoryRepo) GetCachedTree(ctx context.Context) ([]*models.CategoryTreeNode, bool) {
	return nil, false
}

func (f *fakeCategoryRepo) CacheTree(ctx context.Context, tree []*models.CategoryTreeNode) {}

func (f *fakeCategoryRepo) InvalidateTree(ctx context.Context) {}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}

func newTestCatalog(t *testing.T) (*CatalogService, *fakeCategoryRepo) {
	t.Helper()
	repo := newFakeCategoryRepo()
	svc := NewCatalogService(repo, nil, testLogger())
	require.NoError(t, svc.Load())
	return svc, repo
}

func mustCreate(t *testing.T, svc *CatalogService, name string, parentID *uuid.UUID) *models.Category {
	t.Helper()
	category, err := svc.Create(&models.CreateCategoryRequest{Name: name, ParentID: parentID})
	require.NoError(t, err)
	return category
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Electronics", "electronics"},
		{"spaces", "Home Appliances", "home-appliances"},
		{"punctuation stripped", "Tools & Hardware!", "tools-hardware"},
		{"collapsed hyphens", "a  -  b", "a-b"},
		{"trimmed", "  wrapped  ", "wrapped"},
		{"persian preserved", "لوازم خانگی", "لوازم-خانگی"},
		{"mixed persian ascii", "موبایل Samsung", "موبایل-samsung"},
		{"only symbols", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateSlug(tt.in))
		})
	}
}

func TestCreateAssignsDepthAndSortOrder(t *testing.T) {
	svc, _ := newTestCatalog(t)

	root1 := mustCreate(t, svc, "Electronics", nil)
	root2 := mustCreate(t, svc, "Clothing", nil)
	child := mustCreate(t, svc, "Phones", &root1.ID)

	assert.Equal(t, 0, root1.Depth)
	assert.Equal(t, 1, root1.SortOrder)
	assert.Equal(t, 0, root2.Depth)
	assert.Equal(t, 2, root2.SortOrder)
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, 1, child.SortOrder)
	assert.Equal(t, root1.ID, *child.ParentID)
}

func TestCreateRejectsDuplicateSlug(t *testing.T) {
	svc, _ := newTestCatalog(t)
	mustCreate(t, svc, "Electronics", nil)

	_, err := svc.Create(&models.CreateCategoryRequest{Name: "Electronics"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "slug", validationErr.Field)
}

func TestCreateRejectsMissingParent(t *testing.T) {
	svc, _ := newTestCatalog(t)
	missing := uuid.New()

	_, err := svc.Create(&models.CreateCategoryRequest{Name: "Orphan", ParentID: &missing})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "parentId", validationErr.Field)
}

func TestUpdateRenameRegeneratesSlug(t *testing.T) {
	svc, _ := newTestCatalog(t)
	category := mustCreate(t, svc, "Electronics", nil)

	newName := "Consumer Electronics"
	updated, err := svc.Update(category.ID, &models.UpdateCategoryRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "consumer-electronics", updated.Slug)

	// Old slug is released
	_, err = svc.GetBySlug("electronics")
	assert.ErrorIs(t, err, repository.ErrCategoryNotFound)

	found, err := svc.GetBySlug("consumer-electronics")
	require.NoError(t, err)
	assert.Equal(t, category.ID, found.ID)
}

func TestUpdateRejectsSlugCollision(t *testing.T) {
	svc, _ := newTestCatalog(t)
	mustCreate(t, svc, "Electronics", nil)
	other := mustCreate(t, svc, "Clothing", nil)

	colliding := "electronics"
	_, err := svc.Update(other.ID, &models.UpdateCategoryRequest{Slug: &colliding})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	// Saving a category under its own slug is not a collision
	same := "clothing"
	_, err = svc.Update(other.ID, &models.UpdateCategoryRequest{Slug: &same})
	assert.NoError(t, err)
}

func TestMoveRecomputesSubtreeDepths(t *testing.T) {
	svc, _ := newTestCatalog(t)
	a := mustCreate(t, svc, "A", nil)
	b := mustCreate(t, svc, "B", &a.ID)
	c := mustCreate(t, svc, "C", &b.ID)
	r2 := mustCreate(t, svc, "R2", nil)

	moved, err := svc.Move(b.ID, &r2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.Depth)

	got, err := svc.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Depth)
	assert.Equal(t, b.ID, *got.ParentID)
}

func TestMoveToRootAndSortOrderAtEnd(t *testing.T) {
	svc, _ := newTestCatalog(t)
	a := mustCreate(t, svc, "A", nil)
	b := mustCreate(t, svc, "B", nil)
	child := mustCreate(t, svc, "Child", &a.ID)
	_ = b

	moved, err := svc.Move(child.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, moved.Depth)
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, 3, moved.SortOrder)
}

func TestMoveCycleRejected(t *testing.T) {
	svc, _ := newTestCatalog(t)
	a := mustCreate(t, svc, "A", nil)
	b := mustCreate(t, svc, "B", &a.ID)
	c := mustCreate(t, svc, "C", &b.ID)

	var cycleErr *CycleError

	// Under a grandchild
	_, err := svc.Move(a.ID, &c.ID)
	require.ErrorAs(t, err, &cycleErr)

	// Under itself
	_, err = svc.Move(a.ID, &a.ID)
	require.ErrorAs(t, err, &cycleErr)

	// Tree untouched by the failed moves
	got, err := svc.Get(a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)
	assert.Equal(t, 0, got.Depth)
}

func TestMoveRenumbersOldSiblings(t *testing.T) {
	svc, _ := newTestCatalog(t)
	parent := mustCreate(t, svc, "Parent", nil)
	c1 := mustCreate(t, svc, "C1", &parent.ID)
	c2 := mustCreate(t, svc, "C2", &parent.ID)
	c3 := mustCreate(t, svc, "C3", &parent.ID)

	_, err := svc.Move(c1.ID, nil)
	require.NoError(t, err)

	remaining, err := svc.Children(parent.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, c2.ID, remaining[0].ID)
	assert.Equal(t, 1, remaining[0].SortOrder)
	assert.Equal(t, c3.ID, remaining[1].ID)
	assert.Equal(t, 2, remaining[1].SortOrder)
}

func TestDeleteCascadeReturnsSubtree(t *testing.T) {
	svc, repo := newTestCatalog(t)
	a := mustCreate(t, svc, "A", nil)
	b := mustCreate(t, svc, "B", &a.ID)
	c := mustCreate(t, svc, "C", &b.ID)
	other := mustCreate(t, svc, "Other", nil)

	deleted, err := svc.Delete(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID}, deleted)

	_, err = svc.Get(b.ID)
	assert.ErrorIs(t, err, repository.ErrCategoryNotFound)
	_, err = svc.Get(other.ID)
	assert.NoError(t, err)

	rows, err := repo.LoadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	// Freed slugs are reusable
	_, err = svc.Create(&models.CreateCategoryRequest{Name: "A"})
	assert.NoError(t, err)
}

func TestDeleteBlockedByDescendantProducts(t *testing.T) {
	svc, _ := newTestCatalog(t)
	a := mustCreate(t, svc, "A", nil)
	b := mustCreate(t, svc, "B", &a.ID)
	c := mustCreate(t, svc, "C", &b.ID)

	count := 7
	_, err := svc.UpdateProductStats(c.ID, &models.UpdateProductStatsRequest{ProductCount: &count})
	require.NoError(t, err)

	_, err = svc.Delete(a.ID)
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, c.ID, conflictErr.BlockingID)
	assert.Equal(t, 7, conflictErr.ProductCount)

	// Nothing was removed
	_, err = svc.Get(b.ID)
	assert.NoError(t, err)
	_, err = svc.Get(c.ID)
	assert.NoError(t, err)
}

func TestDeleteFailureLeavesTreeAndRowsIntact(t *testing.T) {
	svc, repo := newTestCatalog(t)
	parent := mustCreate(t, svc, "Parent", nil)
	first := mustCreate(t, svc, "First", &parent.ID)
	second := mustCreate(t, svc, "Second", &parent.ID)

	repo.deleteErr = errors.New("connection reset")
	_, err := svc.Delete(first.ID)
	require.Error(t, err)

	// The failed cascade committed nothing: rows and sort orders are
	// exactly as before
	row, err := repo.GetByID(first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.SortOrder)
	row, err = repo.GetByID(second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, row.SortOrder)

	// The in-memory tree resynced to the same state
	got, err := svc.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SortOrder)
	children, err := svc.Children(parent.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	// A successful delete carries the sibling renumbering with it
	repo.deleteErr = nil
	removed, err := svc.Delete(first.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID}, removed)
	row, err = repo.GetByID(second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.SortOrder)
}

func TestAncestorsRootFirstAndDescendantsPreOrder(t *testing.T) {
	svc, _ := newTestCatalog(t)
	a := mustCreate(t, svc, "A", nil)
	b := mustCreate(t, svc, "B", &a.ID)
	c := mustCreate(t, svc, "C", &b.ID)
	b2 := mustCreate(t, svc, "B2", &a.ID)

	ancestors, err := svc.Ancestors(c.ID)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, a.ID, ancestors[0].ID)
	assert.Equal(t, b.ID, ancestors[1].ID)

	descendants, err := svc.Descendants(a.ID)
	require.NoError(t, err)
	require.Len(t, descendants, 3)
	assert.Equal(t, b.ID, descendants[0].ID)
	assert.Equal(t, c.ID, descendants[1].ID)
	assert.Equal(t, b2.ID, descendants[2].ID)
}

func TestFilterKeepsAncestorsOfMatches(t *testing.T) {
	svc, _ := newTestCatalog(t)
	a := mustCreate(t, svc, "Electronics", nil)
	b := mustCreate(t, svc, "Phones", &a.ID)
	c := mustCreate(t, svc, "Smartphones", &b.ID)
	mustCreate(t, svc, "Clothing", nil)

	result := svc.Filter("smart", nil)
	require.Len(t, result, 1)
	assert.Equal(t, a.ID, result[0].ID)
	require.Len(t, result[0].Children, 1)
	assert.Equal(t, b.ID, result[0].Children[0].ID)
	require.Len(t, result[0].Children[0].Children, 1)
	assert.Equal(t, c.ID, result[0].Children[0].Children[0].ID)
}

func TestFilterByStatus(t *testing.T) {
	svc, _ := newTestCatalog(t)
	active := mustCreate(t, svc, "Active", nil)
	inactive := models.CategoryStatusInactive
	_, err := svc.Create(&models.CreateCategoryRequest{Name: "Retired", Status: &inactive})
	require.NoError(t, err)

	statusFilter := models.CategoryStatusActive
	result := svc.Filter("", &statusFilter)
	require.Len(t, result, 1)
	assert.Equal(t, active.ID, result[0].ID)
}

func TestTreeNestsSiblingsInSortOrder(t *testing.T) {
	svc, _ := newTestCatalog(t)
	a := mustCreate(t, svc, "A", nil)
	mustCreate(t, svc, "A1", &a.ID)
	mustCreate(t, svc, "A2", &a.ID)
	mustCreate(t, svc, "B", nil)

	tree := svc.Tree(context.Background())
	require.Len(t, tree, 2)
	assert.Equal(t, "A", tree[0].Name)
	assert.Equal(t, "B", tree[1].Name)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "A1", tree[0].Children[0].Name)
	assert.Equal(t, "A2", tree[0].Children[1].Name)
}

func TestLoadRebuildsFromRows(t *testing.T) {
	svc, repo := newTestCatalog(t)
	a := mustCreate(t, svc, "A", nil)
	b := mustCreate(t, svc, "B", &a.ID)

	// A fresh service over the same rows sees the same tree
	svc2 := NewCatalogService(repo, nil, testLogger())
	require.NoError(t, svc2.Load())

	children, err := svc2.Children(a.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, b.ID, children[0].ID)

	stats := svc2.Stats()
	assert.Equal(t, 2, stats.TotalCategories)
	assert.Equal(t, 2, stats.ActiveCategories)
}
