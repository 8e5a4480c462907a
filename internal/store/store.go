// Package store defines the persistence ports for the fulfillment engine.
// The engines depend on these abstractions, not on SQLite directly, so the
// implementation can be swapped for Postgres or an in-memory fake in tests.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/stockroom/internal/domain"
)

// Tx is the explicit atomic-unit handle passed into every engine
// operation. All reads and writes made through a Tx commit together or
// not at all; any error returned from the WithTx callback rolls back
// every write made through the handle.
type Tx interface {
	Product(ctx context.Context, id int64) (*domain.Product, error)
	Order(ctx context.Context, id int64) (*domain.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	OrderItem(ctx context.Context, orderID, itemID int64) (*domain.OrderItem, error)

	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	SetProductStock(ctx context.Context, productID int64, quantity int) error

	CreateOrder(ctx context.Context, o *domain.Order) error
	CreateOrderItem(ctx context.Context, item *domain.OrderItem) error
	SetOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error
	SetOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	SetOrderItemQuantity(ctx context.Context, itemID int64, quantity int) error
	DeleteOrderItem(ctx context.Context, itemID int64) error
	DeleteOrder(ctx context.Context, id int64) error

	// AppendInventoryLog and AppendOrderActivity write to the two
	// append-only audit streams. Entries are never updated or deleted
	// outside the order-deletion cascade.
	AppendInventoryLog(ctx context.Context, entry *domain.InventoryLog) error
	AppendOrderActivity(ctx context.Context, entry *domain.OrderActivity) error
}

// Store is the read side plus the transaction factory. Read-only queries
// take no locks and may observe a recent-but-stale snapshot.
type Store interface {
	// WithTx runs fn inside a single transaction. It commits when fn
	// returns nil and rolls back on any error or panic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Product(ctx context.Context, id int64) (*domain.Product, error)
	Products(ctx context.Context) ([]domain.Product, error)
	Order(ctx context.Context, id int64) (*domain.Order, error)
	Orders(ctx context.Context) ([]domain.Order, error)
	OrderItem(ctx context.Context, orderID, itemID int64) (*domain.OrderItem, error)

	InventoryLogs(ctx context.Context) ([]domain.InventoryLog, error)
	OrderActivities(ctx context.Context) ([]domain.OrderActivity, error)

	CountOrders(ctx context.Context) (int, error)
	ConfirmedRevenue(ctx context.Context) (decimal.Decimal, error)
	LowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error)
}
