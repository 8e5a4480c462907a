package fulfillment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/stockroom/internal/domain"
	"github.com/jcmexdev/stockroom/internal/store"
)

// CreateOrderInput describes a new pending order. OrderNumber is optional;
// a UUID is generated when it is empty.
type CreateOrderInput struct {
	OrderNumber string
	Items       []CreateOrderItemInput
}

// CreateOrderItemInput references a product and a quantity. The unit price
// is snapshotted from the product's current price at creation time.
type CreateOrderItemInput struct {
	ProductID int64
	Quantity  int
}

// CreateOrder persists a pending order with its line items. Stock is not
// touched: deduction happens only on confirmation. The total is computed
// from the snapshot prices, and an "Order Created" activity is appended in
// the same atomic unit.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	for _, it := range input.Items {
		if it.Quantity <= 0 {
			return nil, &domain.InvalidInputError{Msg: "item quantity must be a positive integer"}
		}
	}

	orderNumber := input.OrderNumber
	if orderNumber == "" {
		orderNumber = uuid.NewString()
	}

	var created *domain.Order
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		order := &domain.Order{
			OrderNumber: orderNumber,
			Status:      domain.StatusPending,
			TotalAmount: decimal.Zero,
			CreatedAt:   s.now(),
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		total := decimal.Zero
		for _, in := range input.Items {
			p, err := tx.Product(ctx, in.ProductID)
			if err != nil {
				return err
			}
			item := &domain.OrderItem{
				OrderID:   order.ID,
				ProductID: p.ID,
				Quantity:  in.Quantity,
				UnitPrice: p.Price,
			}
			if err := tx.CreateOrderItem(ctx, item); err != nil {
				return err
			}
			order.Items = append(order.Items, *item)
			total = total.Add(item.Subtotal())
		}

		if err := tx.SetOrderTotal(ctx, order.ID, total); err != nil {
			return err
		}
		order.TotalAmount = total

		activity := &domain.OrderActivity{
			OrderID:      order.ID,
			ActivityType: "Order Created",
			Description:  fmt.Sprintf("Order %s created with %d item(s)", order.OrderNumber, len(order.Items)),
			CreatedAt:    s.now(),
		}
		if err := tx.AppendOrderActivity(ctx, activity); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order created",
		"order_id", created.ID,
		"order_number", created.OrderNumber,
		"total", created.TotalAmount.String(),
	)
	return created, nil
}

// Order returns one order with its items.
func (s *Service) Order(ctx context.Context, id int64) (*domain.Order, error) {
	return s.store.Order(ctx, id)
}

// Orders lists every order, newest first.
func (s *Service) Orders(ctx context.Context) ([]domain.Order, error) {
	return s.store.Orders(ctx)
}
