package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a missing order, item, or product.
var ErrNotFound = errors.New("not found")

// InvalidInputError reports a malformed request value, e.g. a negative
// quantity on an item adjustment.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string { return e.Msg }

// StateConflictError reports an operation that is not valid for the
// order's current status, e.g. confirming an already-confirmed order.
type StateConflictError struct {
	OrderNumber string
	Status      OrderStatus
	Msg         string
}

func (e *StateConflictError) Error() string { return e.Msg }

// InsufficientStockError identifies the first item that failed the stock
// check during validation. No mutation has happened when it is returned.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Required    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Required: %d",
		e.ProductName, e.Available, e.Required)
}
