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

const StockItemCacheTTL = 5 * time.Minute

var (
	ErrStockItemNotFound = errors.New("stock item not found")
	ErrAlertNotFound     = errors.New("alert not found")
)

// InventoryRepositoryInterface is the persistence boundary for the stock
// ledger. AppendMovement is the only write path for movements; it assigns
// the per-product sequence and lands the movement together with the
// updated fold in a single transaction.
type InventoryRepositoryInterface interface {
	AppendMovement(movement *models.StockMovement, item *models.StockItem) error
	ListMovements(productID uuid.UUID) ([]models.StockMovement, error)
	GetItem(productID uuid.UUID) (*models.StockItem, error)
	ListItems() ([]models.StockItem, error)
	SaveItem(item *models.StockItem) error
	CreateAlert(alert *models.LowStockAlert) error
	ListAlerts(onlyUnacknowledged bool) ([]models.LowStockAlert, error)
	AcknowledgeAlert(id uuid.UUID, acknowledgedBy string) (*models.LowStockAlert, error)
}

type InventoryRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewInventoryRepository(db *gorm.DB, redis *redis.Client) *InventoryRepository {
	return &InventoryRepository{
		db:    db,
		redis: redis,
	}
}

var _ InventoryRepositoryInterface = (*InventoryRepository)(nil)

func stockItemCacheKey(productID uuid.UUID) string {
	return fmt.Sprintf("catalog:inventory:item:%s", productID.String())
}

func (r *InventoryRepository) invalidateItemCache(ctx context.Context, productID uuid.UUID) {
	if r.redis == nil {
		return
	}
	r.redis.Del(ctx, stockItemCacheKey(productID))
}

// AppendMovement atomically assigns the next per-product sequence,
// inserts the movement and upserts the folded stock item. The ledger row
// and its fold always land together or not at all.
func (r *InventoryRepository) AppendMovement(movement *models.StockMovement, item *models.StockItem) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&models.StockMovement{}).
			Where("product_id = ?", movement.ProductID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		movement.Sequence = maxSeq + 1
		item.LastMovementSeq = movement.Sequence

		if err := tx.Create(movement).Error; err != nil {
			return err
		}
		return tx.Save(item).Error
	})
	if err == nil {
		r.invalidateItemCache(context.Background(), movement.ProductID)
	}
	return err
}

// ListMovements returns a product's full ledger in append order
func (r *InventoryRepository) ListMovements(productID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := r.db.Where("product_id = ?", productID).
		Order("sequence ASC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// GetItem retrieves a stock item by product ID with caching
func (r *InventoryRepository) GetItem(productID uuid.UUID) (*models.StockItem, error) {
	ctx := context.Background()
	cacheKey := stockItemCacheKey(productID)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var item models.StockItem
			if err := json.Unmarshal([]byte(val), &item); err == nil {
				return &item, nil
			}
		}
	}

	var item models.StockItem
	err := r.db.Where("product_id = ?", productID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStockItemNotFound
		}
		return nil, err
	}

	if r.redis != nil {
		data, err := json.Marshal(item)
		if err == nil {
			r.redis.Set(ctx, cacheKey, data, StockItemCacheTTL)
		}
	}

	return &item, nil
}

// ListItems returns all stock items
func (r *InventoryRepository) ListItems() ([]models.StockItem, error) {
	var items []models.StockItem
	err := r.db.Order("product_name ASC").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SaveItem persists a stock item outside the append path (settings
// changes and rebuild swaps)
func (r *InventoryRepository) SaveItem(item *models.StockItem) error {
	err := r.db.Save(item).Error
	if err == nil {
		r.invalidateItemCache(context.Background(), item.ProductID)
	}
	return err
}

// CreateAlert inserts a low stock alert
func (r *InventoryRepository) CreateAlert(alert *models.LowStockAlert) error {
	return r.db.Create(alert).Error
}

// ListAlerts returns alerts, newest first
func (r *InventoryRepository) ListAlerts(onlyUnacknowledged bool) ([]models.LowStockAlert, error) {
	var alerts []models.LowStockAlert
	query := r.db.Order("created_at DESC")
	if onlyUnacknowledged {
		query = query.Where("acknowledged = ?", false)
	}
	err := query.Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// AcknowledgeAlert marks an alert as seen. Acknowledged is the only
// field that ever changes on an alert row.
func (r *InventoryRepository) AcknowledgeAlert(id uuid.UUID, acknowledgedBy string) (*models.LowStockAlert, error) {
	var alert models.LowStockAlert
	err := r.db.Where("id = ?", id).First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	alert.Acknowledged = true
	alert.AcknowledgedBy = &acknowledgedBy
	alert.AcknowledgedAt = &now
	if err := r.db.Save(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}
