package fulfillment

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/stockroom/internal/domain"
	"github.com/jcmexdev/stockroom/internal/locks"
	"github.com/jcmexdev/stockroom/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, locks.NewManager(2*time.Second))
}

func mustProduct(t *testing.T, s *Service, name, price string, stock int) *domain.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), ProductInput{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	})
	require.NoError(t, err)
	return p
}

func mustOrder(t *testing.T, s *Service, items ...CreateOrderItemInput) *domain.Order {
	t.Helper()
	o, err := s.CreateOrder(context.Background(), CreateOrderInput{Items: items})
	require.NoError(t, err)
	return o
}

func stockOf(t *testing.T, s *Service, productID int64) int {
	t.Helper()
	p, err := s.Product(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}

// requireTotalMatchesItems asserts the order-total invariant:
// total_amount equals the sum of quantity × unit_price over current items.
func requireTotalMatchesItems(t *testing.T, o *domain.Order) {
	t.Helper()
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	require.True(t, o.TotalAmount.Equal(sum),
		"total %s != sum of items %s", o.TotalAmount, sum)
}
