package stock

import (
	"fmt"
	"strings"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/google/uuid"
)

var (
	// ErrNegativeStock is matched by every *ValidationError
	ErrNegativeStock = shared.NewDomainError("NEGATIVE_STOCK", "Stock movement would result in negative stock")
	// ErrNoWarehouse is returned when stock must be put away but neither a
	// warehouse was given nor a default warehouse is configured
	ErrNoWarehouse = shared.NewDomainError("NO_WAREHOUSE", "No warehouse given and no default warehouse configured")
)

// ValidationError is raised by the stock movement service when applying a
// batch would drive a real location below zero. It signals a bug in the
// calling orchestration; the whole batch is rolled back.
type ValidationError struct {
	ProductID       uuid.UUID
	Location        LocationReference
	CurrentQuantity int
	Change          int
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("stock movement would result in negative stock for product %s at %s: current %d, change %d",
		e.ProductID, e.Location, e.CurrentQuantity, e.Change)
}

// Unwrap lets errors.Is match ErrNegativeStock
func (e *ValidationError) Unwrap() error {
	return ErrNegativeStock
}

// NotEnoughStockError is the business error for an unpickable request. It
// carries the unmet quantity per product.
type NotEnoughStockError struct {
	Shortage     ProductQuantities
	WarehouseIDs []uuid.UUID
}

// Error implements the error interface
func (e *NotEnoughStockError) Error() string {
	parts := make([]string, 0, len(e.Shortage))
	for _, s := range e.Shortage {
		parts = append(parts, fmt.Sprintf("%s: %d", s.ProductID, s.Quantity))
	}
	return fmt.Sprintf("not enough stock to pick, short: %s", strings.Join(parts, ", "))
}

// Unwrap lets errors.Is match shared.ErrInsufficientStock
func (e *NotEnoughStockError) Unwrap() error {
	return shared.ErrInsufficientStock
}

// QuantityViolation describes one product whose requested quantity is not allowed
type QuantityViolation struct {
	ProductID uuid.UUID
	Requested int
	Allowed   int
}

// InvalidQuantityError is raised when a payload asks for quantities the
// referenced document cannot satisfy. All violations are collected.
type InvalidQuantityError struct {
	Reason     string
	Violations []QuantityViolation
}

// Error implements the error interface
func (e *InvalidQuantityError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: requested %d, allowed %d", v.ProductID, v.Requested, v.Allowed))
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match shared.ErrInvalidInput
func (e *InvalidQuantityError) Unwrap() error {
	return shared.ErrInvalidInput
}

// Add records a violation
func (e *InvalidQuantityError) Add(productID uuid.UUID, requested, allowed int) {
	e.Violations = append(e.Violations, QuantityViolation{ProductID: productID, Requested: requested, Allowed: allowed})
}

// HasViolations reports whether any violation was recorded
func (e *InvalidQuantityError) HasViolations() bool {
	return len(e.Violations) > 0
}
