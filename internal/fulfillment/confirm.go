package fulfillment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/stockroom/internal/domain"
	"github.com/jcmexdev/stockroom/internal/store"
)

// Confirm validates and atomically deducts stock for every item of a
// pending order. Either all items are deducted and the order becomes
// confirmed, or nothing changes: a failing item aborts the whole
// operation before any persistence.
func (s *Service) Confirm(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := confirmable(order); err != nil {
		return nil, err
	}

	// Locks are held across the validation read and the execution write.
	// The manager sorts by product ID, so two orders sharing products in
	// different item order cannot deadlock each other.
	release, err := s.locks.Acquire(ctx, productIDs(order.Items)...)
	if err != nil {
		return nil, err
	}
	defer release()

	var confirmed *domain.Order
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		// Re-check under the locks: the status may have moved between the
		// unlocked read and lock acquisition.
		if err := confirmable(cur); err != nil {
			return err
		}

		// Validation phase. Stock is tracked per product so an order with
		// two items of the same product cannot pass item-by-item checks
		// and still go negative on execution. The first failing item
		// aborts with the offending product identified.
		products := make(map[int64]*domain.Product)
		remaining := make(map[int64]int)
		for _, it := range cur.Items {
			p, ok := products[it.ProductID]
			if !ok {
				if p, err = tx.Product(ctx, it.ProductID); err != nil {
					return err
				}
				products[it.ProductID] = p
				remaining[it.ProductID] = p.StockQuantity
			}
			if remaining[it.ProductID] < it.Quantity {
				return &domain.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   remaining[it.ProductID],
					Required:    it.Quantity,
				}
			}
			remaining[it.ProductID] -= it.Quantity
		}

		// Execution phase: every deduction lands together with its audit
		// entry, all inside this transaction.
		for _, it := range cur.Items {
			p := products[it.ProductID]
			p.StockQuantity -= it.Quantity
			if err := tx.SetProductStock(ctx, p.ID, p.StockQuantity); err != nil {
				return err
			}
			entry := &domain.InventoryLog{
				ProductID:      &p.ID,
				ProductName:    p.Name,
				ChangeType:     domain.ChangeDeduction,
				QuantityChange: -it.Quantity,
				Reason:         fmt.Sprintf("Order %s confirmed", cur.OrderNumber),
				CreatedAt:      s.now(),
			}
			if err := tx.AppendInventoryLog(ctx, entry); err != nil {
				return err
			}
		}

		if err := tx.SetOrderStatus(ctx, orderID, domain.StatusConfirmed); err != nil {
			return err
		}
		activity := &domain.OrderActivity{
			OrderID:      orderID,
			ActivityType: "Order Confirmed",
			Description:  fmt.Sprintf("Order %s confirmed, stock deducted for %d item(s)", cur.OrderNumber, len(cur.Items)),
			CreatedAt:    s.now(),
		}
		if err := tx.AppendOrderActivity(ctx, activity); err != nil {
			return err
		}

		cur.Status = domain.StatusConfirmed
		confirmed = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order confirmed",
		"order_id", orderID,
		"order_number", confirmed.OrderNumber,
		"items", len(confirmed.Items),
	)
	return confirmed, nil
}

// confirmable gates the pending→confirmed transition.
func confirmable(o *domain.Order) error {
	switch o.Status {
	case domain.StatusConfirmed:
		return &domain.StateConflictError{
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			Msg:         "Order is already confirmed",
		}
	case domain.StatusCancelled:
		return &domain.StateConflictError{
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			Msg:         "Cannot confirm a cancelled order",
		}
	default:
		return nil
	}
}
