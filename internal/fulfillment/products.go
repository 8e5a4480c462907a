package fulfillment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/stockroom/internal/domain"
	"github.com/jcmexdev/stockroom/internal/store"
)

// ProductInput carries the administratively editable product fields.
type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
}

func (in ProductInput) validate() error {
	if in.Name == "" {
		return &domain.InvalidInputError{Msg: "product name is required"}
	}
	if in.StockQuantity < 0 {
		return &domain.InvalidInputError{Msg: "stock_quantity must be a non-negative integer"}
	}
	if in.Price.IsNegative() {
		return &domain.InvalidInputError{Msg: "price must not be negative"}
	}
	return nil
}

// CreateProduct registers a product. The initial stock is audited as an
// addition, same as every other stock change.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var created *domain.Product
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		p := &domain.Product{
			Name:          input.Name,
			Description:   input.Description,
			Price:         input.Price,
			StockQuantity: input.StockQuantity,
			CreatedAt:     s.now(),
		}
		if err := tx.CreateProduct(ctx, p); err != nil {
			return err
		}
		if p.StockQuantity > 0 {
			entry := &domain.InventoryLog{
				ProductID:      &p.ID,
				ProductName:    p.Name,
				ChangeType:     domain.ChangeAddition,
				QuantityChange: p.StockQuantity,
				Reason:         "Product created",
				CreatedAt:      s.now(),
			}
			if err := tx.AppendInventoryLog(ctx, entry); err != nil {
				return err
			}
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "product created", "product_id", created.ID, "name", created.Name)
	return created, nil
}

// UpdateProduct is the direct administrative edit. It routes through the
// same audit hook as the engines: a stock change writes one inventory log
// entry with a delta matching the mutation.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (*domain.Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *domain.Product
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Product(ctx, id)
		if err != nil {
			return err
		}
		delta := input.StockQuantity - p.StockQuantity

		p.Name = input.Name
		p.Description = input.Description
		p.Price = input.Price
		p.StockQuantity = input.StockQuantity
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}

		if delta != 0 {
			changeType := domain.ChangeAddition
			if delta < 0 {
				changeType = domain.ChangeDeduction
			}
			entry := &domain.InventoryLog{
				ProductID:      &p.ID,
				ProductName:    p.Name,
				ChangeType:     changeType,
				QuantityChange: delta,
				Reason:         "Stock manually updated",
				CreatedAt:      s.now(),
			}
			if err := tx.AppendInventoryLog(ctx, entry); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "product updated", "product_id", id)
	return updated, nil
}

// DeleteProduct removes a product and its order items (cascade). The
// inventory log stream survives with the weak reference nulled; any
// remaining stock is audited out first so the trail stays complete.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Product(ctx, id)
		if err != nil {
			return err
		}
		if p.StockQuantity > 0 {
			entry := &domain.InventoryLog{
				ProductID:      &p.ID,
				ProductName:    p.Name,
				ChangeType:     domain.ChangeDeduction,
				QuantityChange: -p.StockQuantity,
				Reason:         fmt.Sprintf("Product %s deleted", p.Name),
				CreatedAt:      s.now(),
			}
			if err := tx.AppendInventoryLog(ctx, entry); err != nil {
				return err
			}
		}
		return tx.DeleteProduct(ctx, id)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "product deleted", "product_id", id)
	return nil
}

// Product returns one product.
func (s *Service) Product(ctx context.Context, id int64) (*domain.Product, error) {
	return s.store.Product(ctx, id)
}

// Products lists every product, newest first.
func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	return s.store.Products(ctx)
}
