package services

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"catalog-inventory-service/internal/models"
	"catalog-inventory-service/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CatalogEventPublisher publishes category lifecycle events. A nil
// publisher disables publishing.
type CatalogEventPublisher interface {
	CategoryCreated(category *models.Category)
	CategoryUpdated(category *models.Category)
	CategoryMoved(category *models.Category)
	CategoryDeleted(ids []uuid.UUID)
}

// CatalogService owns the category hierarchy. It keeps the whole tree in
// memory as parent-pointer nodes plus a parent->children adjacency map,
// both updated in lock-step under a single tree-wide mutex, and writes
// through to the repository. uuid.Nil keys the root level in the
// adjacency map.
type CatalogService struct {
	repo      repository.CategoryRepositoryInterface
	publisher CatalogEventPublisher
	logger    *logrus.Entry

	mu       sync.RWMutex
	nodes    map[uuid.UUID]*models.Category
	children map[uuid.UUID][]uuid.UUID
	slugs    map[string]uuid.UUID
}

// NewCatalogService creates a CatalogService. Call Load before serving.
func NewCatalogService(repo repository.CategoryRepositoryInterface, publisher CatalogEventPublisher, logger *logrus.Entry) *CatalogService {
	return &CatalogService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		nodes:     make(map[uuid.UUID]*models.Category),
		children:  make(map[uuid.UUID][]uuid.UUID),
		slugs:     make(map[string]uuid.UUID),
	}
}

// Load hydrates the in-memory tree from the repository
func (s *CatalogService) Load() error {
	categories, err := s.repo.LoadAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reindex(categories)
	s.logger.WithField("categories", len(categories)).Info("category tree loaded")
	return nil
}

// reindex rebuilds all in-memory indexes from a flat row set. Caller
// holds the write lock.
func (s *CatalogService) reindex(categories []models.Category) {
	s.nodes = make(map[uuid.UUID]*models.Category, len(categories))
	s.children = make(map[uuid.UUID][]uuid.UUID)
	s.slugs = make(map[string]uuid.UUID, len(categories))

	for i := range categories {
		node := &categories[i]
		s.nodes[node.ID] = node
		s.slugs[node.Slug] = node.ID
		s.children[s.parentKey(node)] = append(s.children[s.parentKey(node)], node.ID)
	}
	for key := range s.children {
		s.sortSiblings(key)
	}
}

// resync reloads everything from the repository after a failed batch
// write so memory never drifts from what was persisted
func (s *CatalogService) resync() {
	categories, err := s.repo.LoadAll()
	if err != nil {
		s.logger.WithError(err).Error("failed to resync category tree after write error")
		return
	}
	s.reindex(categories)
}

func (s *CatalogService) parentKey(node *models.Category) uuid.UUID {
	if node.ParentID == nil {
		return uuid.Nil
	}
	return *node.ParentID
}

func (s *CatalogService) sortSiblings(key uuid.UUID) {
	ids := s.children[key]
	sort.Slice(ids, func(i, j int) bool {
		return s.nodes[ids[i]].SortOrder < s.nodes[ids[j]].SortOrder
	})
}

var (
	slugStripPattern    = regexp.MustCompile(`[^\x{0600}-\x{06FF}a-z0-9\s-]`)
	slugSpacePattern    = regexp.MustCompile(`\s+`)
	slugCollapsePattern = regexp.MustCompile(`-+`)
)

// GenerateSlug derives a URL slug from a category name. Persian and
// Arabic letters (U+0600..U+06FF) survive alongside ASCII alphanumerics.
func GenerateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = slugStripPattern.ReplaceAllString(slug, "")
	slug = slugSpacePattern.ReplaceAllString(slug, "-")
	slug = slugCollapsePattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// Create validates and inserts a new category under the given parent.
// Depth and SortOrder are assigned here, never taken from the request.
func (s *CatalogService) Create(req *models.CreateCategoryRequest) (*models.Category, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}

	status := models.CategoryStatusActive
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, &ValidationError{Field: "status", Message: "status must be active or inactive"}
		}
		status = *req.Status
	}

	slug := ""
	if req.Slug != nil && *req.Slug != "" {
		slug = GenerateSlug(*req.Slug)
	} else {
		slug = GenerateSlug(req.Name)
	}
	if slug == "" {
		return nil, &ValidationError{Field: "slug", Message: "name does not produce a usable slug"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.slugs[slug]; exists {
		return nil, &ValidationError{Field: "slug", Message: "slug already in use: " + slug}
	}

	depth := 0
	if req.ParentID != nil {
		parent, ok := s.nodes[*req.ParentID]
		if !ok {
			return nil, &ValidationError{Field: "parentId", Message: "parent category not found"}
		}
		depth = parent.Depth + 1
	}

	node := &models.Category{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(req.Name),
		Slug:            slug,
		Description:     req.Description,
		ImageURL:        req.ImageURL,
		ParentID:        req.ParentID,
		Depth:           depth,
		SortOrder:       s.nextSortOrder(s.parentKeyFor(req.ParentID)),
		Status:          status,
		MetaTitle:       req.MetaTitle,
		MetaDescription: req.MetaDescription,
		Metadata:        req.Metadata,
	}

	if err := s.repo.Create(node); err != nil {
		return nil, err
	}

	s.nodes[node.ID] = node
	s.slugs[node.Slug] = node.ID
	key := s.parentKey(node)
	s.children[key] = append(s.children[key], node.ID)

	s.logger.WithFields(logrus.Fields{
		"category_id": node.ID,
		"slug":        node.Slug,
		"depth":       node.Depth,
	}).Info("category created")

	if s.publisher != nil {
		s.publisher.CategoryCreated(node)
	}
	return s.copyOf(node), nil
}

func (s *CatalogService) parentKeyFor(parentID *uuid.UUID) uuid.UUID {
	if parentID == nil {
		return uuid.Nil
	}
	return *parentID
}

// nextSortOrder returns max(sibling sort orders)+1. Caller holds the lock.
func (s *CatalogService) nextSortOrder(parentKey uuid.UUID) int {
	max := 0
	for _, id := range s.children[parentKey] {
		if so := s.nodes[id].SortOrder; so > max {
			max = so
		}
	}
	return max + 1
}

// Update renames or edits a category in place. Parent changes are
// rejected here; Move handles re-parenting.
func (s *CatalogService) Update(id uuid.UUID, req *models.UpdateCategoryRequest) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}

	updated := *node
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, &ValidationError{Field: "name", Message: "name cannot be empty"}
		}
		updated.Name = strings.TrimSpace(*req.Name)
		if req.Slug == nil {
			updated.Slug = GenerateSlug(updated.Name)
		}
	}
	if req.Slug != nil && *req.Slug != "" {
		updated.Slug = GenerateSlug(*req.Slug)
	}
	if updated.Slug == "" {
		return nil, &ValidationError{Field: "slug", Message: "name does not produce a usable slug"}
	}
	if owner, exists := s.slugs[updated.Slug]; exists && owner != id {
		return nil, &ValidationError{Field: "slug", Message: "slug already in use: " + updated.Slug}
	}

	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, &ValidationError{Field: "status", Message: "status must be active or inactive"}
		}
		updated.Status = *req.Status
	}
	if req.Description != nil {
		updated.Description = req.Description
	}
	if req.ImageURL != nil {
		updated.ImageURL = req.ImageURL
	}
	if req.MetaTitle != nil {
		updated.MetaTitle = req.MetaTitle
	}
	if req.MetaDescription != nil {
		updated.MetaDescription = req.MetaDescription
	}
	if req.Metadata != nil {
		updated.Metadata = req.Metadata
	}

	if err := s.repo.Save(&updated); err != nil {
		return nil, err
	}

	if updated.Slug != node.Slug {
		delete(s.slugs, node.Slug)
		s.slugs[updated.Slug] = id
	}
	*node = updated

	s.logger.WithFields(logrus.Fields{"category_id": id, "slug": node.Slug}).Info("category updated")
	if s.publisher != nil {
		s.publisher.CategoryUpdated(node)
	}
	return s.copyOf(node), nil
}

// Move re-parents a category. The whole subtree keeps its internal
// order; depths are recomputed, old siblings are renumbered and the node
// lands at the end of its new sibling list. A failed move leaves the
// tree untouched.
func (s *CatalogService) Move(id uuid.UUID, newParentID *uuid.UUID) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}

	if newParentID != nil {
		target, ok := s.nodes[*newParentID]
		if !ok {
			return nil, &ValidationError{Field: "parentId", Message: "parent category not found"}
		}
		if target.ID == id || s.isDescendant(id, target.ID) {
			return nil, &CycleError{CategoryID: id, NewParentID: target.ID}
		}
	}

	oldKey := s.parentKey(node)
	newKey := s.parentKeyFor(newParentID)
	if oldKey == newKey {
		return s.copyOf(node), nil
	}

	changed := make(map[uuid.UUID]*models.Category)

	// Detach and renumber the siblings left behind
	s.detachChild(oldKey, id)
	order := 1
	for _, sibID := range s.children[oldKey] {
		sib := s.nodes[sibID]
		if sib.SortOrder != order {
			sib.SortOrder = order
			changed[sibID] = sib
		}
		order++
	}

	node.ParentID = newParentID
	node.SortOrder = s.nextSortOrder(newKey)
	s.children[newKey] = append(s.children[newKey], id)
	changed[id] = node

	// Recompute depths for the whole subtree
	newDepth := 0
	if newParentID != nil {
		newDepth = s.nodes[*newParentID].Depth + 1
	}
	s.rewriteDepths(id, newDepth, changed)

	batch := make([]*models.Category, 0, len(changed))
	for _, c := range changed {
		batch = append(batch, c)
	}
	if err := s.repo.SaveBatch(batch); err != nil {
		s.resync()
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"category_id": id,
		"new_depth":   node.Depth,
		"rows":        len(batch),
	}).Info("category moved")
	if s.publisher != nil {
		s.publisher.CategoryMoved(node)
	}
	return s.copyOf(node), nil
}

// rewriteDepths sets the depth of id and all its descendants, recording
// every touched node in changed. Caller holds the lock.
func (s *CatalogService) rewriteDepths(id uuid.UUID, depth int, changed map[uuid.UUID]*models.Category) {
	node := s.nodes[id]
	if node.Depth != depth {
		node.Depth = depth
		changed[id] = node
	}
	for _, childID := range s.children[id] {
		s.rewriteDepths(childID, depth+1, changed)
	}
}

func (s *CatalogService) detachChild(parentKey, id uuid.UUID) {
	ids := s.children[parentKey]
	for i, cid := range ids {
		if cid == id {
			s.children[parentKey] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// isDescendant reports whether candidate lies in the subtree rooted at
// root. Caller holds at least the read lock.
func (s *CatalogService) isDescendant(root, candidate uuid.UUID) bool {
	node := s.nodes[candidate]
	for node != nil && node.ParentID != nil {
		if *node.ParentID == root {
			return true
		}
		node = s.nodes[*node.ParentID]
	}
	return false
}

// Delete removes a category and its entire subtree, returning the
// removed ids in pre-order. Any product anywhere in the subtree blocks
// the whole delete.
func (s *CatalogService) Delete(id uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}

	subtree := s.subtreeIDs(id)
	for _, sid := range subtree {
		if n := s.nodes[sid]; n.ProductCount > 0 {
			return nil, &ConflictError{
				CategoryID:   id,
				BlockingID:   n.ID,
				BlockingName: n.Name,
				ProductCount: n.ProductCount,
			}
		}
	}

	// Renumber the siblings left behind. The deletion and the renumbering
	// go to the repository as one operation so persistence never holds a
	// half-applied cascade.
	oldKey := s.parentKey(node)
	changed := make([]*models.Category, 0)
	order := 1
	for _, sibID := range s.children[oldKey] {
		if sibID == id {
			continue
		}
		sib := s.nodes[sibID]
		if sib.SortOrder != order {
			sib.SortOrder = order
			changed = append(changed, sib)
		}
		order++
	}
	if err := s.repo.DeleteBatch(subtree, changed); err != nil {
		s.resync()
		return nil, err
	}

	s.detachChild(oldKey, id)
	for _, sid := range subtree {
		n := s.nodes[sid]
		delete(s.slugs, n.Slug)
		delete(s.nodes, sid)
		delete(s.children, sid)
	}

	s.logger.WithFields(logrus.Fields{
		"category_id": id,
		"removed":     len(subtree),
	}).Info("category subtree deleted")
	if s.publisher != nil {
		s.publisher.CategoryDeleted(subtree)
	}
	return subtree, nil
}

// subtreeIDs returns id and all descendants in pre-order. Caller holds
// at least the read lock.
func (s *CatalogService) subtreeIDs(id uuid.UUID) []uuid.UUID {
	ids := []uuid.UUID{id}
	for _, childID := range s.children[id] {
		ids = append(ids, s.subtreeIDs(childID)...)
	}
	return ids
}

// Get returns a single category
func (s *CatalogService) Get(id uuid.UUID) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return s.copyOf(node), nil
}

// GetBySlug returns the category owning a slug
func (s *CatalogService) GetBySlug(slug string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.slugs[slug]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return s.copyOf(s.nodes[id]), nil
}

// Children returns the direct children of a category in sort order
func (s *CatalogService) Children(id uuid.UUID) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return s.collect(s.children[id]), nil
}

// Descendants returns the subtree below a category in pre-order,
// excluding the category itself
func (s *CatalogService) Descendants(id uuid.UUID) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return nil, repository.ErrCategoryNotFound
	}
	ids := s.subtreeIDs(id)
	return s.collect(ids[1:]), nil
}

// Ancestors returns the chain from the root down to the category's
// direct parent
func (s *CatalogService) Ancestors(id uuid.UUID) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}

	chain := make([]models.Category, 0, node.Depth)
	for node.ParentID != nil {
		node = s.nodes[*node.ParentID]
		chain = append(chain, *node)
	}
	// Walk gathered child-to-root; callers want root-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Roots returns the top-level categories in sort order
func (s *CatalogService) Roots() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.children[uuid.Nil])
}

// Tree returns the full nested tree, served from the cache when warm
func (s *CatalogService) Tree(ctx context.Context) []*models.CategoryTreeNode {
	if cached, ok := s.repo.GetCachedTree(ctx); ok {
		return cached
	}

	s.mu.RLock()
	tree := s.buildTree(uuid.Nil, nil)
	s.mu.RUnlock()

	s.repo.CacheTree(ctx, tree)
	return tree
}

// Filter returns the tree pruned to nodes matching the query or having
// a matching descendant. Ancestors of matches are kept so the result is
// always a forest of connected paths.
func (s *CatalogService) Filter(query string, status *models.CategoryStatus) []*models.CategoryTreeNode {
	query = strings.ToLower(strings.TrimSpace(query))
	match := func(c *models.Category) bool {
		if status != nil && c.Status != *status {
			return false
		}
		if query == "" {
			return true
		}
		if strings.Contains(strings.ToLower(c.Name), query) {
			return true
		}
		return c.Description != nil && strings.Contains(strings.ToLower(*c.Description), query)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildTree(uuid.Nil, match)
}

// buildTree assembles nested nodes below key; a non-nil predicate prunes
// branches with no matching node. Caller holds at least the read lock.
func (s *CatalogService) buildTree(key uuid.UUID, match func(*models.Category) bool) []*models.CategoryTreeNode {
	out := make([]*models.CategoryTreeNode, 0, len(s.children[key]))
	for _, id := range s.children[key] {
		node := s.nodes[id]
		children := s.buildTree(id, match)
		if match != nil && !match(node) && len(children) == 0 {
			continue
		}
		out = append(out, &models.CategoryTreeNode{
			Category: *node,
			Children: children,
		})
	}
	return out
}

// UpdateProductStats applies denormalized counters pushed by the
// products service
func (s *CatalogService) UpdateProductStats(id uuid.UUID, req *models.UpdateProductStatsRequest) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	if req.ProductCount != nil {
		if *req.ProductCount < 0 {
			return nil, &ValidationError{Field: "productCount", Message: "product count cannot be negative"}
		}
		node.ProductCount = *req.ProductCount
	}
	if req.TotalSales != nil {
		node.TotalSales = *req.TotalSales
	}

	if err := s.repo.Save(node); err != nil {
		s.resync()
		return nil, err
	}
	return s.copyOf(node), nil
}

// Stats aggregates the dashboard counters across the whole tree
func (s *CatalogService) Stats() models.CategoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.CategoryStats{}
	for _, node := range s.nodes {
		stats.TotalCategories++
		if node.Status == models.CategoryStatusActive {
			stats.ActiveCategories++
		}
		stats.TotalProducts += node.ProductCount
		stats.TotalSales += node.TotalSales
	}
	return stats
}

func (s *CatalogService) collect(ids []uuid.UUID) []models.Category {
	out := make([]models.Category, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.nodes[id])
	}
	return out
}

func (s *CatalogService) copyOf(node *models.Category) *models.Category {
	c := *node
	return &c
}
