package fulfillment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/stockroom/internal/domain"
	"github.com/jcmexdev/stockroom/internal/store"
)

// Cancel moves an order to cancelled. A confirmed order gets its stock
// deduction reversed item by item; a pending order touches no stock — its
// stock was never deducted, and restoring it would let a create→cancel
// cycle fabricate inventory. Not idempotent: cancelling twice fails.
func (s *Service) Cancel(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.StatusCancelled {
		return nil, alreadyCancelled(order)
	}

	// Stock is only restored for confirmed orders, but the status is
	// re-read inside the transaction and may have moved to confirmed by
	// then, so the locks are taken whenever the order has items at all.
	release, err := s.locks.Acquire(ctx, productIDs(order.Items)...)
	if err != nil {
		return nil, err
	}
	defer release()

	var cancelled *domain.Order
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.Status == domain.StatusCancelled {
			return alreadyCancelled(cur)
		}

		if cur.Status == domain.StatusConfirmed {
			for _, it := range cur.Items {
				p, err := tx.Product(ctx, it.ProductID)
				if err != nil {
					return err
				}
				if err := tx.SetProductStock(ctx, p.ID, p.StockQuantity+it.Quantity); err != nil {
					return err
				}
				entry := &domain.InventoryLog{
					ProductID:      &p.ID,
					ProductName:    p.Name,
					ChangeType:     domain.ChangeAddition,
					QuantityChange: it.Quantity,
					Reason:         fmt.Sprintf("Order %s cancelled, stock restored", cur.OrderNumber),
					CreatedAt:      s.now(),
				}
				if err := tx.AppendInventoryLog(ctx, entry); err != nil {
					return err
				}
			}
		}

		if err := tx.SetOrderStatus(ctx, orderID, domain.StatusCancelled); err != nil {
			return err
		}
		activity := &domain.OrderActivity{
			OrderID:      orderID,
			ActivityType: "Order Cancelled",
			Description:  fmt.Sprintf("Order %s cancelled from status %q", cur.OrderNumber, cur.Status),
			CreatedAt:    s.now(),
		}
		if err := tx.AppendOrderActivity(ctx, activity); err != nil {
			return err
		}

		cur.Status = domain.StatusCancelled
		cancelled = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order cancelled",
		"order_id", orderID,
		"order_number", cancelled.OrderNumber,
	)
	return cancelled, nil
}

func alreadyCancelled(o *domain.Order) error {
	return &domain.StateConflictError{
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Msg:         "Order is already cancelled",
	}
}
