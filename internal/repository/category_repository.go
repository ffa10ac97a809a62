package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"catalog-inventory-service/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Cache TTL constants
const (
	CategoryCacheTTL     = 30 * time.Minute // Categories rarely change
	CategoryTreeCacheTTL = 15 * time.Minute // Tree read model
)

var ErrCategoryNotFound = errors.New("category not found")

// CategoryRepositoryInterface is the persistence boundary for the
// category tree. The catalog service is the single writer and owns the
// derived fields, so writes arrive as fully computed rows.
type CategoryRepositoryInterface interface {
	LoadAll() ([]models.Category, error)
	GetByID(id uuid.UUID) (*models.Category, error)
	Create(category *models.Category) error
	Save(category *models.Category) error
	SaveBatch(categories []*models.Category) error
	DeleteBatch(ids []uuid.UUID, renumbered []*models.Category) error
	GetCachedTree(ctx context.Context) ([]*models.CategoryTreeNode, bool)
	CacheTree(ctx context.Context, tree []*models.CategoryTreeNode)
	InvalidateTree(ctx context.Context)
}

type CategoryRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewCategoryRepository(db *gorm.DB, redis *redis.Client) *CategoryRepository {
	return &CategoryRepository{
		db:    db,
		redis: redis,
	}
}

var _ CategoryRepositoryInterface = (*CategoryRepository)(nil)

const categoryTreeCacheKey = "catalog:categories:tree"

// invalidateCategoryCaches drops the per-category entry and the tree read model
func (r *CategoryRepository) invalidateCategoryCaches(ctx context.Context, categoryID *uuid.UUID) {
	if r.redis == nil {
		return
	}

	if categoryID != nil {
		r.redis.Del(ctx, fmt.Sprintf("catalog:categories:category:%s", categoryID.String()))
	}
	r.redis.Del(ctx, categoryTreeCacheKey)
}

// LoadAll returns every category ordered for deterministic tree hydration:
// parents before children, siblings in sort order.
func (r *CategoryRepository) LoadAll() ([]models.Category, error) {
	var categories []models.Category
	err := r.db.Order("depth ASC, sort_order ASC").Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// GetByID retrieves a category by ID with caching
func (r *CategoryRepository) GetByID(id uuid.UUID) (*models.Category, error) {
	ctx := context.Background()
	cacheKey := fmt.Sprintf("catalog:categories:category:%s", id.String())

	// Try to get from cache first
	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var category models.Category
			if err := json.Unmarshal([]byte(val), &category); err == nil {
				return &category, nil
			}
		}
	}

	var category models.Category
	err := r.db.Where("id = ?", id).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	// Cache the result
	if r.redis != nil {
		data, err := json.Marshal(category)
		if err == nil {
			r.redis.Set(ctx, cacheKey, data, CategoryCacheTTL)
		}
	}

	return &category, nil
}

// Create inserts a new category
func (r *CategoryRepository) Create(category *models.Category) error {
	err := r.db.Create(category).Error
	if err == nil {
		r.invalidateCategoryCaches(context.Background(), nil)
	}
	return err
}

// Save persists a single modified category
func (r *CategoryRepository) Save(category *models.Category) error {
	err := r.db.Save(category).Error
	if err == nil {
		r.invalidateCategoryCaches(context.Background(), &category.ID)
	}
	return err
}

// SaveBatch persists a set of modified categories atomically. Moves and
// sibling renumbering touch many rows that must land together.
func (r *CategoryRepository) SaveBatch(categories []*models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, category := range categories {
			if err := tx.Save(category).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		for _, category := range categories {
			r.invalidateCategoryCaches(context.Background(), &category.ID)
		}
	}
	return err
}

// DeleteBatch soft-deletes a subtree's rows and renumbers the surviving
// siblings in a single transaction, so a cascade either fully commits or
// leaves persistence untouched.
func (r *CategoryRepository) DeleteBatch(ids []uuid.UUID, renumbered []*models.Category) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id IN ?", ids).Delete(&models.Category{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCategoryNotFound
		}
		for _, category := range renumbered {
			if err := tx.Save(category).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		for i := range ids {
			r.invalidateCategoryCaches(context.Background(), &ids[i])
		}
		for _, category := range renumbered {
			r.invalidateCategoryCaches(context.Background(), &category.ID)
		}
	}
	return err
}

// GetCachedTree returns the cached nested tree, if present
func (r *CategoryRepository) GetCachedTree(ctx context.Context) ([]*models.CategoryTreeNode, bool) {
	if r.redis == nil {
		return nil, false
	}
	val, err := r.redis.Get(ctx, categoryTreeCacheKey).Result()
	if err != nil {
		return nil, false
	}
	var tree []*models.CategoryTreeNode
	if err := json.Unmarshal([]byte(val), &tree); err != nil {
		return nil, false
	}
	return tree, true
}

// CacheTree stores the nested tree read model
func (r *CategoryRepository) CacheTree(ctx context.Context, tree []*models.CategoryTreeNode) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return
	}
	r.redis.Set(ctx, categoryTreeCacheKey, data, CategoryTreeCacheTTL)
}

// InvalidateTree drops the cached tree read model
func (r *CategoryRepository) InvalidateTree(ctx context.Context) {
	if r.redis == nil {
		return
	}
	r.redis.Del(ctx, categoryTreeCacheKey)
}
