package services

import (
	"sync"
	"testing"

	"catalog-inventory-service/internal/models"
	"catalog-inventory-service/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInventoryRepo is an in-memory InventoryRepositoryInterface used to
// exercise the ledger logic without a database
type fakeInventoryRepo struct {
	mu        sync.Mutex
	movements map[uuid.UUID][]models.StockMovement
	items     map[uuid.UUID]models.StockItem
	alerts    []models.LowStockAlert
}

var _ repository.InventoryRepositoryInterface = (*fakeInventoryRepo)(nil)

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{
		movements: make(map[uuid.UUID][]models.StockMovement),
		items:     make(map[uuid.UUID]models.StockItem),
	}
}

func (f *fakeInventoryRepo) AppendMovement(movement *models.StockMovement, item *models.StockItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	movement.Sequence = int64(len(f.movements[movement.ProductID]) + 1)
	item.LastMovementSeq = movement.Sequence
	f.movements[movement.ProductID] = append(f.movements[movement.ProductID], *movement)
	f.items[item.ProductID] = *item
	return nil
}

func (f *fakeInventoryRepo) ListMovements(productID uuid.UUID) ([]models.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.StockMovement, len(f.movements[productID]))
	copy(out, f.movements[productID])
	return out, nil
}

func (f *fakeInventoryRepo) GetItem(productID uuid.UUID) (*models.StockItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[productID]
	if !ok {
		return nil, repository.ErrStockItemNotFound
	}
	return &item, nil
}

func (f *fakeInventoryRepo) ListItems() ([]models.StockItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.StockItem, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeInventoryRepo) SaveItem(item *models.StockItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ProductID] = *item
	return nil
}

func (f *fakeInventoryRepo) CreateAlert(alert *models.LowStockAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, *alert)
	return nil
}

func (f *fakeInventoryRepo) ListAlerts(onlyUnacknowledged bool) ([]models.LowStockAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.LowStockAlert, 0, len(f.alerts))
	for _, alert := range f.alerts {
		if onlyUnacknowledged && alert.Acknowledged {
			continue
		}
		out = append(out, alert)
	}
	return out, nil
}

func (f *fakeInventoryRepo) AcknowledgeAlert(id uuid.UUID, acknowledgedBy string) (*models.LowStockAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.alerts {
		if f.alerts[i].ID == id {
			f.alerts[i].Acknowledged = true
			f.alerts[i].AcknowledgedBy = &acknowledgedBy
			alert := f.alerts[i]
			return &alert, nil
		}
	}
	return nil, repository.ErrAlertNotFound
}

func newTestInventory(t *testing.T) (*InventoryService, *fakeInventoryRepo) {
	t.Helper()
	repo := newFakeInventoryRepo()
	return NewInventoryService(repo, nil, testLogger(), 10), repo
}

func adjust(t *testing.T, svc *InventoryService, productID uuid.UUID, typ models.MovementType, qty int) *models.StockItem {
	t.Helper()
	item, err := svc.Adjust(productID, &models.AdjustStockRequest{
		Type:     typ,
		Quantity: qty,
		Reason:   "test movement",
	}, nil)
	require.NoError(t, err)
	return item
}

func TestStockStatusFor(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		threshold int
		want      models.StockStatus
	}{
		{"zero is out of stock", 0, 10, models.StockStatusOutOfStock},
		{"at threshold is low", 10, 10, models.StockStatusLowStock},
		{"below threshold is low", 3, 10, models.StockStatusLowStock},
		{"above threshold is in stock", 11, 10, models.StockStatusInStock},
		{"zero threshold still flags empty", 0, 0, models.StockStatusOutOfStock},
		{"positive with zero threshold", 1, 0, models.StockStatusInStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StockStatusFor(tt.current, tt.threshold))
		})
	}
}

// Walks a product through restock, sales, exhaustion and partial
// restock, checking the status at each step and that alerts fire only on
// transitions into low_stock or out_of_stock.
func TestStatusTransitionsFireAlertsExactlyOnce(t *testing.T) {
	svc, repo := newTestInventory(t)
	productID := uuid.New()

	item := adjust(t, svc, productID, models.MovementTypeIn, 20)
	assert.Equal(t, models.StockStatusInStock, item.StockStatus)

	item = adjust(t, svc, productID, models.MovementTypeOut, 1)
	assert.Equal(t, 19, item.CurrentStock)
	assert.Equal(t, models.StockStatusInStock, item.StockStatus)
	assert.Empty(t, repo.alerts)

	item = adjust(t, svc, productID, models.MovementTypeOut, 10)
	assert.Equal(t, 9, item.CurrentStock)
	assert.Equal(t, models.StockStatusLowStock, item.StockStatus)
	require.Len(t, repo.alerts, 1)
	assert.Equal(t, models.AlertSeverityWarning, repo.alerts[0].Severity)

	// Staying low does not re-fire
	item = adjust(t, svc, productID, models.MovementTypeOut, 2)
	assert.Equal(t, models.StockStatusLowStock, item.StockStatus)
	require.Len(t, repo.alerts, 1)

	item = adjust(t, svc, productID, models.MovementTypeOut, 7)
	assert.Equal(t, 0, item.CurrentStock)
	assert.Equal(t, models.StockStatusOutOfStock, item.StockStatus)
	require.Len(t, repo.alerts, 2)
	assert.Equal(t, models.AlertSeverityCritical, repo.alerts[1].Severity)

	// Partial restock lands back in low_stock: a new transition, a new alert
	item = adjust(t, svc, productID, models.MovementTypeIn, 5)
	assert.Equal(t, 5, item.CurrentStock)
	assert.Equal(t, models.StockStatusLowStock, item.StockStatus)
	require.Len(t, repo.alerts, 3)
	assert.Equal(t, models.AlertSeverityWarning, repo.alerts[2].Severity)
}

func TestInsufficientStockRejectedWithoutAppend(t *testing.T) {
	svc, repo := newTestInventory(t)
	productID := uuid.New()
	adjust(t, svc, productID, models.MovementTypeIn, 5)

	_, err := svc.Adjust(productID, &models.AdjustStockRequest{
		Type: models.MovementTypeOut, Quantity: 6, Reason: "oversell",
	}, nil)
	var insufficientErr *InsufficientStockError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, 5, insufficientErr.Available)
	assert.Equal(t, 6, insufficientErr.Requested)

	// Ledger and fold untouched
	movements, err := svc.Movements(productID)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
	item, err := svc.GetItem(productID)
	require.NoError(t, err)
	assert.Equal(t, 5, item.CurrentStock)
	_ = repo
}

func TestOutBoundedByAvailableNotCurrent(t *testing.T) {
	svc, _ := newTestInventory(t)
	productID := uuid.New()
	adjust(t, svc, productID, models.MovementTypeIn, 10)
	adjust(t, svc, productID, models.MovementTypeReserved, 4)

	// 10 on hand but only 6 unreserved
	_, err := svc.Adjust(productID, &models.AdjustStockRequest{
		Type: models.MovementTypeOut, Quantity: 7, Reason: "oversell",
	}, nil)
	var insufficientErr *InsufficientStockError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, 6, insufficientErr.Available)

	item := adjust(t, svc, productID, models.MovementTypeOut, 6)
	assert.Equal(t, 4, item.CurrentStock)
	assert.Equal(t, 4, item.ReservedStock)
	assert.Equal(t, 0, item.AvailableStock())
}

func TestReservationBounds(t *testing.T) {
	svc, _ := newTestInventory(t)
	productID := uuid.New()
	adjust(t, svc, productID, models.MovementTypeIn, 10)

	var overErr *OverReservationError

	_, err := svc.Reserve(productID, &models.ReserveStockRequest{Quantity: 11, OrderRef: "ord-1"}, nil)
	require.ErrorAs(t, err, &overErr)

	item, err := svc.Reserve(productID, &models.ReserveStockRequest{Quantity: 10, OrderRef: "ord-2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, item.ReservedStock)

	_, err = svc.Unreserve(productID, &models.ReserveStockRequest{Quantity: 11, OrderRef: "ord-2"}, nil)
	require.ErrorAs(t, err, &overErr)

	item, err = svc.Unreserve(productID, &models.ReserveStockRequest{Quantity: 10, OrderRef: "ord-2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, item.ReservedStock)
	assert.Equal(t, 10, item.CurrentStock)
}

func TestAdjustmentClampsAtZeroAndRecordsAppliedDelta(t *testing.T) {
	svc, _ := newTestInventory(t)
	productID := uuid.New()
	adjust(t, svc, productID, models.MovementTypeIn, 5)

	delta := -8
	item, err := svc.Adjust(productID, &models.AdjustStockRequest{
		Type: models.MovementTypeAdjustment, Delta: &delta, Reason: "cycle count",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, item.CurrentStock)
	assert.Equal(t, models.StockStatusOutOfStock, item.StockStatus)

	// The ledger carries the applied delta, not the requested one
	movements, err := svc.Movements(productID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, -5, movements[1].Quantity)

	// Replay therefore agrees with the incremental fold
	rebuilt, err := svc.Rebuild(productID)
	require.NoError(t, err)
	assert.Equal(t, 0, rebuilt.CurrentStock)
}

func TestRebuildMatchesIncrementalFold(t *testing.T) {
	svc, _ := newTestInventory(t)
	productID := uuid.New()

	adjust(t, svc, productID, models.MovementTypeIn, 50)
	adjust(t, svc, productID, models.MovementTypeOut, 12)
	adjust(t, svc, productID, models.MovementTypeReserved, 8)
	delta := 3
	_, err := svc.Adjust(productID, &models.AdjustStockRequest{
		Type: models.MovementTypeAdjustment, Delta: &delta, Reason: "cycle count",
	}, nil)
	require.NoError(t, err)
	adjust(t, svc, productID, models.MovementTypeUnreserved, 5)
	adjust(t, svc, productID, models.MovementTypeOut, 20)

	before, err := svc.GetItem(productID)
	require.NoError(t, err)

	rebuilt, err := svc.Rebuild(productID)
	require.NoError(t, err)
	assert.Equal(t, before.CurrentStock, rebuilt.CurrentStock)
	assert.Equal(t, before.ReservedStock, rebuilt.ReservedStock)
	assert.Equal(t, before.StockStatus, rebuilt.StockStatus)
}

func TestRebuildDetectsAndRepairsDivergence(t *testing.T) {
	svc, repo := newTestInventory(t)
	productID := uuid.New()
	adjust(t, svc, productID, models.MovementTypeIn, 30)

	// Corrupt the fold behind the service's back
	tampered, err := repo.GetItem(productID)
	require.NoError(t, err)
	tampered.CurrentStock = 99
	require.NoError(t, repo.SaveItem(tampered))

	rebuilt, err := svc.Rebuild(productID)
	var integrityErr *IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.Equal(t, productID, integrityErr.ProductID)

	// The replayed fold was swapped in
	assert.Equal(t, 30, rebuilt.CurrentStock)
	stored, err := repo.GetItem(productID)
	require.NoError(t, err)
	assert.Equal(t, 30, stored.CurrentStock)
}

func TestRebuildReconstructsMissingItem(t *testing.T) {
	svc, repo := newTestInventory(t)
	productID := uuid.New()
	adjust(t, svc, productID, models.MovementTypeIn, 30)
	adjust(t, svc, productID, models.MovementTypeReserved, 5)
	adjust(t, svc, productID, models.MovementTypeOut, 12)

	// Drop the fold entirely; the ledger alone must be enough
	repo.mu.Lock()
	delete(repo.items, productID)
	repo.mu.Unlock()

	rebuilt, err := svc.Rebuild(productID)
	require.NoError(t, err)
	assert.Equal(t, 18, rebuilt.CurrentStock)
	assert.Equal(t, 5, rebuilt.ReservedStock)
	assert.Equal(t, 10, rebuilt.LowStockThreshold)
	assert.Equal(t, int64(3), rebuilt.LastMovementSeq)

	stored, err := svc.GetItem(productID)
	require.NoError(t, err)
	assert.Equal(t, 18, stored.CurrentStock)

	// A product with no ledger at all is still not found
	_, err = svc.Rebuild(uuid.New())
	assert.ErrorIs(t, err, repository.ErrStockItemNotFound)
}

func TestConfiguredDefaultThresholdApplied(t *testing.T) {
	repo := newFakeInventoryRepo()
	svc := NewInventoryService(repo, nil, testLogger(), 25)
	productID := uuid.New()

	item := adjust(t, svc, productID, models.MovementTypeIn, 20)
	assert.Equal(t, 25, item.LowStockThreshold)
	assert.Equal(t, models.StockStatusLowStock, item.StockStatus)
}

func TestThresholdChangeFiresTransitionAlert(t *testing.T) {
	svc, repo := newTestInventory(t)
	productID := uuid.New()
	adjust(t, svc, productID, models.MovementTypeIn, 15)
	require.Empty(t, repo.alerts)

	threshold := 20
	item, err := svc.UpdateItemSettings(productID, &models.UpdateItemSettingsRequest{
		LowStockThreshold: &threshold,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StockStatusLowStock, item.StockStatus)
	require.Len(t, repo.alerts, 1)
	assert.Equal(t, models.AlertSeverityWarning, repo.alerts[0].Severity)
}

func TestAcknowledgeAlert(t *testing.T) {
	svc, repo := newTestInventory(t)
	productID := uuid.New()
	adjust(t, svc, productID, models.MovementTypeIn, 5)
	require.Len(t, repo.alerts, 1)

	alert, err := svc.AcknowledgeAlert(repo.alerts[0].ID, "ops@example.com")
	require.NoError(t, err)
	assert.True(t, alert.Acknowledged)
	require.NotNil(t, alert.AcknowledgedBy)
	assert.Equal(t, "ops@example.com", *alert.AcknowledgedBy)

	unacked, err := svc.Alerts(true)
	require.NoError(t, err)
	assert.Empty(t, unacked)
}

func TestSummaryCountsAndStockValue(t *testing.T) {
	svc, _ := newTestInventory(t)

	inStock := uuid.New()
	adjust(t, svc, inStock, models.MovementTypeIn, 100)
	price := 2.5
	_, err := svc.UpdateItemSettings(inStock, &models.UpdateItemSettingsRequest{CostPrice: &price})
	require.NoError(t, err)

	low := uuid.New()
	adjust(t, svc, low, models.MovementTypeIn, 5)

	out := uuid.New()
	adjust(t, svc, out, models.MovementTypeIn, 1)
	adjust(t, svc, out, models.MovementTypeOut, 1)

	summary, err := svc.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalItems)
	assert.Equal(t, 1, summary.InStockItems)
	assert.Equal(t, 1, summary.LowStockItems)
	assert.Equal(t, 1, summary.OutOfStockItems)
	assert.Equal(t, 250.0, summary.TotalStockValue)
	// One alert from the low item, two from the exhausted one
	assert.Equal(t, 3, summary.ActiveAlerts)
}

// Hammers one product from many goroutines; the per-product lock must
// keep every fold consistent and never let the checks be raced past.
func TestConcurrentMovementsHoldInvariants(t *testing.T) {
	svc, _ := newTestInventory(t)
	productID := uuid.New()
	adjust(t, svc, productID, models.MovementTypeIn, 200)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Adjust(productID, &models.AdjustStockRequest{
				Type: models.MovementTypeOut, Quantity: 10, Reason: "concurrent sale",
			}, nil)
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Reserve(productID, &models.ReserveStockRequest{Quantity: 5, OrderRef: "ord"}, nil)
		}()
	}
	wg.Wait()

	item, err := svc.GetItem(productID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, item.CurrentStock, 0)
	assert.GreaterOrEqual(t, item.ReservedStock, 0)
	assert.LessOrEqual(t, item.ReservedStock, item.CurrentStock)

	// The serialized ledger folds to exactly the stored item
	rebuilt, err := svc.Rebuild(productID)
	require.NoError(t, err)
	assert.Equal(t, item.CurrentStock, rebuilt.CurrentStock)
	assert.Equal(t, item.ReservedStock, rebuilt.ReservedStock)
}

func TestMovementSequenceIsContiguous(t *testing.T) {
	svc, _ := newTestInventory(t)
	productID := uuid.New()
	adjust(t, svc, productID, models.MovementTypeIn, 10)
	adjust(t, svc, productID, models.MovementTypeOut, 3)
	adjust(t, svc, productID, models.MovementTypeReserved, 2)

	movements, err := svc.Movements(productID)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	for i, movement := range movements {
		assert.Equal(t, int64(i+1), movement.Sequence)
	}
}
