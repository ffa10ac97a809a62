package services

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidationError indicates malformed or ill-typed input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ConflictError indicates a delete blocked by products somewhere in the
// subtree. BlockingID names the first node found with products attached.
type ConflictError struct {
	CategoryID   uuid.UUID
	BlockingID   uuid.UUID
	BlockingName string
	ProductCount int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot delete category %s: %q (%s) still has %d products",
		e.CategoryID, e.BlockingName, e.BlockingID, e.ProductCount)
}

// CycleError indicates a move that would make a node its own ancestor
type CycleError struct {
	CategoryID  uuid.UUID
	NewParentID uuid.UUID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cannot move category %s under %s: target is the node or one of its descendants",
		e.CategoryID, e.NewParentID)
}

// InsufficientStockError indicates an outbound movement larger than the
// available (unreserved) stock
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// OverReservationError indicates a reservation change that would break
// reserved <= current, or an unreserve larger than what is reserved
type OverReservationError struct {
	ProductID uuid.UUID
	Current   int
	Reserved  int
	Requested int
}

func (e *OverReservationError) Error() string {
	return fmt.Sprintf("reservation out of bounds for product %s: current %d, reserved %d, requested %d",
		e.ProductID, e.Current, e.Reserved, e.Requested)
}

// IntegrityError indicates that a full ledger replay disagreed with the
// materialized stock item
type IntegrityError struct {
	ProductID uuid.UUID
	Detail    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("stock item for product %s diverged from its ledger: %s", e.ProductID, e.Detail)
}
