package fulfillment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/stockroom/internal/domain"
)

// DashboardStats is the read-only aggregation served at /dashboard.
// Computed without locks; it may observe a recent-but-stale snapshot.
type DashboardStats struct {
	TotalOrders      int               `json:"total_orders"`
	TotalRevenue     decimal.Decimal   `json:"total_revenue"`
	LowStockProducts []LowStockProduct `json:"low_stock_products"`
}

// LowStockProduct flags a product below the restocking threshold.
type LowStockProduct struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	StockQuantity int             `json:"stock_quantity"`
	Price         decimal.Decimal `json:"price"`
}

// Dashboard aggregates order count (all statuses), revenue (confirmed
// orders only, zero if none), and the products with stock below the fixed
// threshold of 10.
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	totalOrders, err := s.store.CountOrders(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.store.ConfirmedRevenue(ctx)
	if err != nil {
		return nil, err
	}
	lowStock, err := s.store.LowStockProducts(ctx, domain.LowStockThreshold)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalOrders:      totalOrders,
		TotalRevenue:     revenue,
		LowStockProducts: make([]LowStockProduct, 0, len(lowStock)),
	}
	for _, p := range lowStock {
		stats.LowStockProducts = append(stats.LowStockProducts, LowStockProduct{
			ID:            p.ID,
			Name:          p.Name,
			StockQuantity: p.StockQuantity,
			Price:         p.Price,
		})
	}
	return stats, nil
}
