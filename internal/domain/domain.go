// Package domain defines the core types of the order-fulfillment engine:
// products with a never-negative stock counter, orders with line items that
// snapshot the price at order-creation time, and the two append-only audit
// streams (inventory logs and order activities).
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LowStockThreshold is the stock count below which a product is flagged
// for restocking on the dashboard.
const LowStockThreshold = 10

// Product is the authoritative record for a single stock counter.
// StockQuantity is never negative; the storage layer enforces this with a
// CHECK constraint in addition to the validation in the engines.
type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusCancelled OrderStatus = "cancelled"
)

// CanTransitionTo reports whether the state machine permits moving from s
// to next. Valid paths: pending→confirmed, pending→cancelled,
// confirmed→cancelled. Cancelled is terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled
	default:
		return false
	}
}

// Order owns a collection of line items and order activities; both are
// deleted together with the order. TotalAmount always equals the sum of
// quantity×unit_price over the current items.
type Order struct {
	ID          int64
	OrderNumber string
	Status      OrderStatus
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	Items       []OrderItem
}

// OrderItem links an order to a product. UnitPrice is captured when the
// order is created so historical orders are immune to later price changes.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity × unit price using the snapshot price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ChangeType classifies an inventory log entry.
type ChangeType string

const (
	ChangeAddition  ChangeType = "addition"
	ChangeDeduction ChangeType = "deduction"
)

// InventoryLog is an immutable audit record of one stock mutation.
// ProductID is a weak reference: it becomes nil when the product is
// deleted, while ProductName keeps the record meaningful for compliance.
type InventoryLog struct {
	ID             int64
	ProductID      *int64
	ProductName    string
	ChangeType     ChangeType
	QuantityChange int
	Reason         string
	CreatedAt      time.Time
}

// OrderActivity is an immutable audit record scoped to one order.
// It is removed only by the cascade when its order is deleted.
type OrderActivity struct {
	ID           int64
	OrderID      int64
	ActivityType string
	Description  string
	CreatedAt    time.Time
}
