package fulfillment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/stockroom/internal/domain"
	"github.com/jcmexdev/stockroom/internal/store"
)

// UpdateItemQuantity edits a single line item of an already-confirmed
// order, adjusting stock and the order total incrementally. newQuantity 0
// removes the item. The order total moves by unit_price × delta using the
// item's snapshot price, never the product's current price.
func (s *Service) UpdateItemQuantity(ctx context.Context, orderID, itemID int64, newQuantity int) (*domain.Order, error) {
	if newQuantity < 0 {
		return nil, &domain.InvalidInputError{Msg: "new_quantity must be a non-negative integer"}
	}

	order, err := s.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := adjustable(order); err != nil {
		return nil, err
	}
	item, err := s.store.OrderItem(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *domain.Order
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		if err := adjustable(cur); err != nil {
			return err
		}
		it, err := tx.OrderItem(ctx, orderID, itemID)
		if err != nil {
			return err
		}

		delta := newQuantity - it.Quantity
		if delta == 0 {
			updated = cur
			return nil
		}

		p, err := tx.Product(ctx, it.ProductID)
		if err != nil {
			return err
		}

		changeType := domain.ChangeAddition
		direction := "decreased"
		if delta > 0 {
			if p.StockQuantity < delta {
				return &domain.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   p.StockQuantity,
					Required:    delta,
				}
			}
			changeType = domain.ChangeDeduction
			direction = "increased"
		}

		// quantity_change = −delta in both branches: an increase deducts
		// stock (negative entry), a decrease restores it (positive entry).
		if err := tx.SetProductStock(ctx, p.ID, p.StockQuantity-delta); err != nil {
			return err
		}
		entry := &domain.InventoryLog{
			ProductID:      &p.ID,
			ProductName:    p.Name,
			ChangeType:     changeType,
			QuantityChange: -delta,
			Reason:         fmt.Sprintf("Order %s item quantity updated", cur.OrderNumber),
			CreatedAt:      s.now(),
		}
		if err := tx.AppendInventoryLog(ctx, entry); err != nil {
			return err
		}

		newTotal := cur.TotalAmount.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(delta))))
		if err := tx.SetOrderTotal(ctx, orderID, newTotal); err != nil {
			return err
		}

		if newQuantity == 0 {
			if err := tx.DeleteOrderItem(ctx, itemID); err != nil {
				return err
			}
		} else {
			if err := tx.SetOrderItemQuantity(ctx, itemID, newQuantity); err != nil {
				return err
			}
		}

		activity := &domain.OrderActivity{
			OrderID:      orderID,
			ActivityType: "Item Updated",
			Description: fmt.Sprintf("Quantity of %s %s from %d to %d",
				p.Name, direction, it.Quantity, newQuantity),
			CreatedAt: s.now(),
		}
		if err := tx.AppendOrderActivity(ctx, activity); err != nil {
			return err
		}

		cur.TotalAmount = newTotal
		cur.Items, err = tx.OrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order item updated",
		"order_id", orderID,
		"item_id", itemID,
		"new_quantity", newQuantity,
	)
	return updated, nil
}

// adjustable gates item adjustment: confirmed orders only. Pending orders
// are edited through plain item CRUD; cancelled orders are frozen.
func adjustable(o *domain.Order) error {
	if o.Status != domain.StatusConfirmed {
		return &domain.StateConflictError{
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			Msg:         "Only confirmed orders can have items updated",
		}
	}
	return nil
}
