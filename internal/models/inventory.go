package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MovementType represents the kind of a stock movement
type MovementType string

const (
	MovementTypeIn         MovementType = "in"
	MovementTypeOut        MovementType = "out"
	MovementTypeAdjustment MovementType = "adjustment"
	MovementTypeReserved   MovementType = "reserved"
	MovementTypeUnreserved MovementType = "unreserved"
)

// Valid reports whether t is a known movement type
func (t MovementType) Valid() bool {
	switch t {
	case MovementTypeIn, MovementTypeOut, MovementTypeAdjustment,
		MovementTypeReserved, MovementTypeUnreserved:
		return true
	}
	return false
}

// StockStatus represents the derived availability state of a product
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

// AlertSeverity represents the severity of a low stock alert
type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// StockMovement is a single entry in the append-only stock ledger.
// Rows are never updated or deleted; Sequence orders the ledger per
// product and Quantity is signed (negative for out/reserved, positive
// for in/unreserved, either sign for adjustment).
type StockMovement struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID     uuid.UUID       `json:"productId" gorm:"type:uuid;not null;uniqueIndex:idx_movements_product_seq,priority:1"`
	Sequence      int64           `json:"sequence" gorm:"not null;uniqueIndex:idx_movements_product_seq,priority:2"`
	Type          MovementType    `json:"type" gorm:"type:varchar(20);not null"`
	Quantity      int             `json:"quantity" gorm:"not null"`
	Reason        string          `json:"reason" gorm:"type:varchar(255);not null"`
	ReferenceID   *string         `json:"referenceId,omitempty" gorm:"type:varchar(100);index"`
	ReferenceType *string         `json:"referenceType,omitempty" gorm:"type:varchar(50)"`
	Actor         *string         `json:"actor,omitempty" gorm:"type:varchar(255)"`
	Metadata      *datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// StockItem is the materialized fold of a product's movement ledger.
// Everything except the threshold settings and cost price is derivable
// by replaying the ledger from sequence 1.
type StockItem struct {
	ProductID         uuid.UUID   `json:"productId" gorm:"type:uuid;primary_key"`
	SKU               string      `json:"sku" gorm:"type:varchar(100);index"`
	ProductName       string      `json:"productName" gorm:"type:varchar(255)"`
	CategoryID        *uuid.UUID  `json:"categoryId,omitempty" gorm:"type:uuid;index"`
	CurrentStock      int         `json:"currentStock" gorm:"not null;default:0"`
	ReservedStock     int         `json:"reservedStock" gorm:"not null;default:0"`
	LowStockThreshold int         `json:"lowStockThreshold" gorm:"not null;default:10"`
	MaxStockLevel     *int        `json:"maxStockLevel,omitempty"`
	CostPrice         float64     `json:"costPrice" gorm:"type:decimal(12,2);default:0"`
	StockStatus       StockStatus `json:"stockStatus" gorm:"type:varchar(20);not null;default:'out_of_stock'"`
	LastMovementSeq   int64       `json:"lastMovementSeq" gorm:"not null;default:0"`
	LastRestockDate   *time.Time  `json:"lastRestockDate,omitempty"`
	LastSaleDate      *time.Time  `json:"lastSaleDate,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// AvailableStock returns the stock that can still be sold or reserved
func (s *StockItem) AvailableStock() int {
	return s.CurrentStock - s.ReservedStock
}

// LowStockAlert records a transition into low_stock or out_of_stock.
// Acknowledged is the only mutable field.
type LowStockAlert struct {
	ID             uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID      uuid.UUID     `json:"productId" gorm:"type:uuid;not null;index"`
	ProductName    string        `json:"productName" gorm:"type:varchar(255)"`
	SKU            string        `json:"sku" gorm:"type:varchar(100)"`
	CurrentStock   int           `json:"currentStock" gorm:"not null"`
	Threshold      int           `json:"threshold" gorm:"not null"`
	Severity       AlertSeverity `json:"severity" gorm:"type:varchar(20);not null"`
	Acknowledged   bool          `json:"acknowledged" gorm:"not null;default:false"`
	AcknowledgedBy *string       `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// AdjustStockRequest represents a manual stock movement request.
// Quantity is always positive; Type determines the applied sign except
// for adjustments, where Delta carries the signed correction.
type AdjustStockRequest struct {
	Type          MovementType `json:"type" binding:"required"`
	Quantity      int          `json:"quantity"`
	Delta         *int         `json:"delta,omitempty"`
	Reason        string       `json:"reason" binding:"required"`
	ReferenceID   *string      `json:"referenceId,omitempty"`
	ReferenceType *string      `json:"referenceType,omitempty"`
}

// ReserveStockRequest represents an order-driven reservation request
type ReserveStockRequest struct {
	Quantity int     `json:"quantity" binding:"required"`
	OrderRef string  `json:"orderRef" binding:"required"`
	Reason   *string `json:"reason,omitempty"`
}

// UpdateItemSettingsRequest updates the non-derived stock item fields
type UpdateItemSettingsRequest struct {
	SKU               *string    `json:"sku,omitempty"`
	ProductName       *string    `json:"productName,omitempty"`
	CategoryID        *uuid.UUID `json:"categoryId,omitempty"`
	LowStockThreshold *int       `json:"lowStockThreshold,omitempty"`
	MaxStockLevel     *int       `json:"maxStockLevel,omitempty"`
	CostPrice         *float64   `json:"costPrice,omitempty"`
}

// AcknowledgeAlertRequest marks an alert as seen
type AcknowledgeAlertRequest struct {
	AcknowledgedBy string `json:"acknowledgedBy" binding:"required"`
}

// InventorySummary aggregates the dashboard counters for inventory
type InventorySummary struct {
	TotalItems      int     `json:"totalItems"`
	InStockItems    int     `json:"inStockItems"`
	LowStockItems   int     `json:"lowStockItems"`
	OutOfStockItems int     `json:"outOfStockItems"`
	TotalStockValue float64 `json:"totalStockValue"`
	ActiveAlerts    int     `json:"activeAlerts"`
}

// StockItemResponse represents a single stock item response
type StockItemResponse struct {
	Success bool       `json:"success"`
	Data    *StockItem `json:"data"`
	Message *string    `json:"message,omitempty"`
}

// StockItemListResponse represents a list of stock items
type StockItemListResponse struct {
	Success bool        `json:"success"`
	Data    []StockItem `json:"data"`
	Total   int         `json:"total"`
}

// MovementListResponse represents a product's movement history
type MovementListResponse struct {
	Success bool            `json:"success"`
	Data    []StockMovement `json:"data"`
	Total   int             `json:"total"`
}

// AlertListResponse represents a list of low stock alerts
type AlertListResponse struct {
	Success bool            `json:"success"`
	Data    []LowStockAlert `json:"data"`
	Total   int             `json:"total"`
}

// TableName returns the table name for the StockMovement model
func (StockMovement) TableName() string {
	return "stock_movements"
}

// TableName returns the table name for the StockItem model
func (StockItem) TableName() string {
	return "stock_items"
}

// TableName returns the table name for the LowStockAlert model
func (LowStockAlert) TableName() string {
	return "low_stock_alerts"
}
