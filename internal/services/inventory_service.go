package services

import (
	"errors"
	"sync"
	"time"

	"catalog-inventory-service/internal/models"
	"catalog-inventory-service/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// InventoryEventPublisher publishes stock events. A nil publisher
// disables publishing.
type InventoryEventPublisher interface {
	StockAdjusted(item *models.StockItem, movement *models.StockMovement)
	LowStockAlertRaised(alert *models.LowStockAlert)
}

// InventoryService owns the stock ledger. Every mutation for a product
// runs under that product's lock so the read-validate-append-fold
// sequence is serialized; movements for different products proceed in
// parallel.
type InventoryService struct {
	repo             repository.InventoryRepositoryInterface
	publisher        InventoryEventPublisher
	logger           *logrus.Entry
	defaultThreshold int

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewInventoryService creates an InventoryService. defaultThreshold is
// the low stock threshold applied to products that have never been
// configured.
func NewInventoryService(repo repository.InventoryRepositoryInterface, publisher InventoryEventPublisher, logger *logrus.Entry, defaultThreshold int) *InventoryService {
	if defaultThreshold <= 0 {
		defaultThreshold = 10
	}
	return &InventoryService{
		repo:             repo,
		publisher:        publisher,
		logger:           logger,
		defaultThreshold: defaultThreshold,
		locks:            make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *InventoryService) productLock(productID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[productID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[productID] = lock
	}
	return lock
}

// StockStatusFor derives the availability state from a quantity and its
// low stock threshold
func StockStatusFor(currentStock, threshold int) models.StockStatus {
	switch {
	case currentStock == 0:
		return models.StockStatusOutOfStock
	case currentStock <= threshold:
		return models.StockStatusLowStock
	default:
		return models.StockStatusInStock
	}
}

// Adjust validates and appends a stock movement, returning the folded
// item. A rejected movement leaves the ledger untouched.
func (s *InventoryService) Adjust(productID uuid.UUID, req *models.AdjustStockRequest, actor *string) (*models.StockItem, error) {
	if !req.Type.Valid() {
		return nil, &ValidationError{Field: "type", Message: "unknown movement type: " + string(req.Type)}
	}
	if req.Reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "reason is required"}
	}
	if req.Type == models.MovementTypeAdjustment {
		if req.Delta == nil {
			return nil, &ValidationError{Field: "delta", Message: "adjustments carry a signed delta"}
		}
	} else if req.Quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Message: "quantity must be positive"}
	}

	lock := s.productLock(productID)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.loadOrInitItem(productID)
	if err != nil {
		return nil, err
	}

	movement := &models.StockMovement{
		ID:            uuid.New(),
		ProductID:     productID,
		Type:          req.Type,
		Reason:        req.Reason,
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.ReferenceType,
		Actor:         actor,
		CreatedAt:     time.Now().UTC(),
	}

	updated := *item
	prevStatus := updated.StockStatus
	if err := s.applyMovement(&updated, movement, req); err != nil {
		return nil, err
	}
	updated.StockStatus = StockStatusFor(updated.CurrentStock, updated.LowStockThreshold)
	updated.UpdatedAt = movement.CreatedAt

	if err := s.repo.AppendMovement(movement, &updated); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"type":       movement.Type,
		"quantity":   movement.Quantity,
		"current":    updated.CurrentStock,
		"reserved":   updated.ReservedStock,
	}).Info("stock movement appended")

	if s.publisher != nil {
		s.publisher.StockAdjusted(&updated, movement)
	}
	s.fireTransitionAlert(&updated, prevStatus)
	return &updated, nil
}

// applyMovement validates the movement against the current fold and
// writes the signed quantity into it. The sign convention is the effect
// on available stock: out and reserved are negative, in and unreserved
// positive, adjustments carry whatever delta was actually applied.
func (s *InventoryService) applyMovement(item *models.StockItem, movement *models.StockMovement, req *models.AdjustStockRequest) error {
	switch req.Type {
	case models.MovementTypeIn:
		movement.Quantity = req.Quantity
		item.CurrentStock += req.Quantity
		now := movement.CreatedAt
		item.LastRestockDate = &now

	case models.MovementTypeOut:
		if req.Quantity > item.AvailableStock() {
			return &InsufficientStockError{
				ProductID: item.ProductID,
				Available: item.AvailableStock(),
				Requested: req.Quantity,
			}
		}
		movement.Quantity = -req.Quantity
		item.CurrentStock -= req.Quantity
		now := movement.CreatedAt
		item.LastSaleDate = &now

	case models.MovementTypeAdjustment:
		applied := *req.Delta
		if item.CurrentStock+applied < 0 {
			// Out-of-band corrections floor at zero; the discrepancy is
			// recorded, not rejected
			s.logger.WithFields(logrus.Fields{
				"product_id": item.ProductID,
				"current":    item.CurrentStock,
				"delta":      *req.Delta,
			}).Warn("adjustment clamped at zero stock")
			applied = -item.CurrentStock
		}
		movement.Quantity = applied
		item.CurrentStock += applied
		if item.ReservedStock > item.CurrentStock {
			s.logger.WithFields(logrus.Fields{
				"product_id": item.ProductID,
				"reserved":   item.ReservedStock,
				"current":    item.CurrentStock,
			}).Warn("adjustment clamped reserved stock to current")
			item.ReservedStock = item.CurrentStock
		}

	case models.MovementTypeReserved:
		if item.ReservedStock+req.Quantity > item.CurrentStock {
			return &OverReservationError{
				ProductID: item.ProductID,
				Current:   item.CurrentStock,
				Reserved:  item.ReservedStock,
				Requested: req.Quantity,
			}
		}
		movement.Quantity = -req.Quantity
		item.ReservedStock += req.Quantity

	case models.MovementTypeUnreserved:
		if req.Quantity > item.ReservedStock {
			return &OverReservationError{
				ProductID: item.ProductID,
				Current:   item.CurrentStock,
				Reserved:  item.ReservedStock,
				Requested: req.Quantity,
			}
		}
		movement.Quantity = req.Quantity
		item.ReservedStock -= req.Quantity
	}
	return nil
}

// fireTransitionAlert raises exactly one alert when the fold crossed
// into low_stock or out_of_stock. Staying inside a state never re-fires.
func (s *InventoryService) fireTransitionAlert(item *models.StockItem, prevStatus models.StockStatus) {
	if item.StockStatus == prevStatus || item.StockStatus == models.StockStatusInStock {
		return
	}

	severity := models.AlertSeverityWarning
	if item.StockStatus == models.StockStatusOutOfStock {
		severity = models.AlertSeverityCritical
	}
	alert := &models.LowStockAlert{
		ID:           uuid.New(),
		ProductID:    item.ProductID,
		ProductName:  item.ProductName,
		SKU:          item.SKU,
		CurrentStock: item.CurrentStock,
		Threshold:    item.LowStockThreshold,
		Severity:     severity,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateAlert(alert); err != nil {
		s.logger.WithError(err).WithField("product_id", item.ProductID).Error("failed to persist low stock alert")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": item.ProductID,
		"severity":   alert.Severity,
		"current":    alert.CurrentStock,
	}).Warn("low stock alert raised")
	if s.publisher != nil {
		s.publisher.LowStockAlertRaised(alert)
	}
}

// Reserve holds stock for an order
func (s *InventoryService) Reserve(productID uuid.UUID, req *models.ReserveStockRequest, actor *string) (*models.StockItem, error) {
	reason := "order reservation"
	if req.Reason != nil && *req.Reason != "" {
		reason = *req.Reason
	}
	refType := "order"
	return s.Adjust(productID, &models.AdjustStockRequest{
		Type:          models.MovementTypeReserved,
		Quantity:      req.Quantity,
		Reason:        reason,
		ReferenceID:   &req.OrderRef,
		ReferenceType: &refType,
	}, actor)
}

// Unreserve releases a hold
func (s *InventoryService) Unreserve(productID uuid.UUID, req *models.ReserveStockRequest, actor *string) (*models.StockItem, error) {
	reason := "reservation released"
	if req.Reason != nil && *req.Reason != "" {
		reason = *req.Reason
	}
	refType := "order"
	return s.Adjust(productID, &models.AdjustStockRequest{
		Type:          models.MovementTypeUnreserved,
		Quantity:      req.Quantity,
		Reason:        reason,
		ReferenceID:   &req.OrderRef,
		ReferenceType: &refType,
	}, actor)
}

// loadOrInitItem returns the current fold, or a fresh zero item for a
// product that has never moved. Caller holds the product lock.
func (s *InventoryService) loadOrInitItem(productID uuid.UUID) (*models.StockItem, error) {
	item, err := s.repo.GetItem(productID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, repository.ErrStockItemNotFound) {
		return nil, err
	}
	now := time.Now().UTC()
	return &models.StockItem{
		ProductID:         productID,
		LowStockThreshold: s.defaultThreshold,
		StockStatus:       models.StockStatusOutOfStock,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// GetItem returns a product's folded stock item
func (s *InventoryService) GetItem(productID uuid.UUID) (*models.StockItem, error) {
	return s.repo.GetItem(productID)
}

// ListItems returns all folded stock items
func (s *InventoryService) ListItems() ([]models.StockItem, error) {
	return s.repo.ListItems()
}

// Movements returns a product's ledger in append order
func (s *InventoryService) Movements(productID uuid.UUID) ([]models.StockMovement, error) {
	return s.repo.ListMovements(productID)
}

// UpdateItemSettings changes the non-derived item fields. A threshold
// change can itself move the item across a status boundary, which fires
// the same transition alert a movement would.
func (s *InventoryService) UpdateItemSettings(productID uuid.UUID, req *models.UpdateItemSettingsRequest) (*models.StockItem, error) {
	if req.LowStockThreshold != nil && *req.LowStockThreshold < 0 {
		return nil, &ValidationError{Field: "lowStockThreshold", Message: "threshold cannot be negative"}
	}
	if req.CostPrice != nil && *req.CostPrice < 0 {
		return nil, &ValidationError{Field: "costPrice", Message: "cost price cannot be negative"}
	}

	lock := s.productLock(productID)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.loadOrInitItem(productID)
	if err != nil {
		return nil, err
	}

	prevStatus := item.StockStatus
	if req.SKU != nil {
		item.SKU = *req.SKU
	}
	if req.ProductName != nil {
		item.ProductName = *req.ProductName
	}
	if req.CategoryID != nil {
		item.CategoryID = req.CategoryID
	}
	if req.LowStockThreshold != nil {
		item.LowStockThreshold = *req.LowStockThreshold
	}
	if req.MaxStockLevel != nil {
		item.MaxStockLevel = req.MaxStockLevel
	}
	if req.CostPrice != nil {
		item.CostPrice = *req.CostPrice
	}
	item.StockStatus = StockStatusFor(item.CurrentStock, item.LowStockThreshold)
	item.UpdatedAt = time.Now().UTC()

	if err := s.repo.SaveItem(item); err != nil {
		return nil, err
	}
	s.fireTransitionAlert(item, prevStatus)
	return item, nil
}

// Rebuild replays a product's full ledger into a fresh fold and swaps it
// in. A divergence between the replay and the stored item is repaired
// but still reported as an IntegrityError.
func (s *InventoryService) Rebuild(productID uuid.UUID) (*models.StockItem, error) {
	lock := s.productLock(productID)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.repo.GetItem(productID)
	itemMissing := false
	if err != nil {
		if !errors.Is(err, repository.ErrStockItemNotFound) {
			return nil, err
		}
		itemMissing = true
	}
	movements, err := s.repo.ListMovements(productID)
	if err != nil {
		return nil, err
	}
	if itemMissing {
		if len(movements) == 0 {
			return nil, repository.ErrStockItemNotFound
		}
		// The fold is disposable: a lost row is reconstructed from the
		// ledger alone.
		s.logger.WithField("product_id", productID).Warn("stock item row missing, reconstructing from ledger")
		now := time.Now().UTC()
		item = &models.StockItem{
			ProductID:         productID,
			LowStockThreshold: s.defaultThreshold,
			StockStatus:       models.StockStatusOutOfStock,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}

	rebuilt := *item
	rebuilt.CurrentStock = 0
	rebuilt.ReservedStock = 0
	rebuilt.LastMovementSeq = 0
	rebuilt.LastRestockDate = nil
	rebuilt.LastSaleDate = nil
	for i := range movements {
		replayMovement(&rebuilt, &movements[i])
	}
	rebuilt.StockStatus = StockStatusFor(rebuilt.CurrentStock, rebuilt.LowStockThreshold)

	var integrityErr error
	switch {
	case itemMissing:
		// Nothing stored to diverge from
	case rebuilt.CurrentStock != item.CurrentStock:
		integrityErr = &IntegrityError{ProductID: productID, Detail: "current stock mismatch"}
	case rebuilt.ReservedStock != item.ReservedStock:
		integrityErr = &IntegrityError{ProductID: productID, Detail: "reserved stock mismatch"}
	case rebuilt.StockStatus != item.StockStatus:
		integrityErr = &IntegrityError{ProductID: productID, Detail: "stock status mismatch"}
	}

	if integrityErr != nil {
		s.logger.WithFields(logrus.Fields{
			"product_id":       productID,
			"cached_current":   item.CurrentStock,
			"rebuilt_current":  rebuilt.CurrentStock,
			"cached_reserved":  item.ReservedStock,
			"rebuilt_reserved": rebuilt.ReservedStock,
		}).Error("ledger replay diverged from stored stock item")
	}

	rebuilt.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveItem(&rebuilt); err != nil {
		return nil, err
	}
	return &rebuilt, integrityErr
}

// replayMovement folds one already-validated ledger entry. Quantities
// were recorded post-clamp, so replay is pure arithmetic.
func replayMovement(item *models.StockItem, m *models.StockMovement) {
	switch m.Type {
	case models.MovementTypeIn, models.MovementTypeOut, models.MovementTypeAdjustment:
		item.CurrentStock += m.Quantity
		if m.Type == models.MovementTypeIn {
			created := m.CreatedAt
			item.LastRestockDate = &created
		}
		if m.Type == models.MovementTypeOut {
			created := m.CreatedAt
			item.LastSaleDate = &created
		}
		if item.ReservedStock > item.CurrentStock {
			item.ReservedStock = item.CurrentStock
		}
	case models.MovementTypeReserved, models.MovementTypeUnreserved:
		item.ReservedStock -= m.Quantity
	}
	item.LastMovementSeq = m.Sequence
}

// Alerts returns low stock alerts, optionally only unacknowledged ones
func (s *InventoryService) Alerts(onlyUnacknowledged bool) ([]models.LowStockAlert, error) {
	return s.repo.ListAlerts(onlyUnacknowledged)
}

// AcknowledgeAlert marks an alert as seen
func (s *InventoryService) AcknowledgeAlert(id uuid.UUID, acknowledgedBy string) (*models.LowStockAlert, error) {
	return s.repo.AcknowledgeAlert(id, acknowledgedBy)
}

// Summary aggregates the dashboard counters across all stock items
func (s *InventoryService) Summary() (*models.InventorySummary, error) {
	items, err := s.repo.ListItems()
	if err != nil {
		return nil, err
	}
	alerts, err := s.repo.ListAlerts(true)
	if err != nil {
		return nil, err
	}

	summary := &models.InventorySummary{
		TotalItems:   len(items),
		ActiveAlerts: len(alerts),
	}
	for i := range items {
		switch items[i].StockStatus {
		case models.StockStatusInStock:
			summary.InStockItems++
		case models.StockStatusLowStock:
			summary.LowStockItems++
		case models.StockStatusOutOfStock:
			summary.OutOfStockItems++
		}
		summary.TotalStockValue += float64(items[i].CurrentStock) * items[i].CostPrice
	}
	return summary, nil
}
