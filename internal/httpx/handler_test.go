package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/stockroom/internal/fulfillment"
	"github.com/jcmexdev/stockroom/internal/locks"
	"github.com/jcmexdev/stockroom/internal/pkg/cache"
	"github.com/jcmexdev/stockroom/internal/store/sqlite"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := fulfillment.NewService(st, locks.NewManager(2*time.Second))
	return NewRouter(NewHandler(svc, nil))
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func createProduct(t *testing.T, srv http.Handler, name, price string, stock int) ProductResponse {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/products", map[string]any{
		"name":           name,
		"price":          price,
		"stock_quantity": stock,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	return decode[ProductResponse](t, rec)
}

func createOrder(t *testing.T, srv http.Handler, items ...CreateOrderItemDTO) OrderResponse {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/orders", CreateOrderRequest{Items: items})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	return decode[OrderResponse](t, rec)
}

func TestProductCRUD(t *testing.T) {
	srv := newTestServer(t)

	p := createProduct(t, srv, "Widget", "19.99", 30)
	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, 30, p.StockQuantity)
	assert.Equal(t, "19.99", p.Price.String())

	rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, p.ID, decode[ProductResponse](t, rec).ID)

	rec = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/products/%d", p.ID), map[string]any{
		"name":           "Widget v2",
		"price":          "24.99",
		"stock_quantity": 25,
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	updated := decode[ProductResponse](t, rec)
	assert.Equal(t, "Widget v2", updated.Name)
	assert.Equal(t, 25, updated.StockQuantity)

	rec = doJSON(t, srv, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ProductResponse](t, rec), 1)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/products/%d", p.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProductValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/products", map[string]any{
		"price":          "5.00",
		"stock_quantity": 1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "name")
}

func TestPathIDValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/products/abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/orders/abc/confirm", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOrderComputesTotal(t *testing.T) {
	srv := newTestServer(t)

	p := createProduct(t, srv, "Priced", "10.50", 20)
	o := createOrder(t, srv, CreateOrderItemDTO{ProductID: p.ID, Quantity: 3})

	assert.Equal(t, "pending", o.Status)
	assert.NotEmpty(t, o.OrderNumber)
	assert.Equal(t, "31.5", o.TotalAmount.String())
	require.Len(t, o.Items, 1)
	assert.Equal(t, "10.5", o.Items[0].UnitPrice.String())
}

func TestConfirmOrderContract(t *testing.T) {
	srv := newTestServer(t)

	p := createProduct(t, srv, "Confirmable", "5.00", 10)
	o := createOrder(t, srv, CreateOrderItemDTO{ProductID: p.ID, Quantity: 4})

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", o.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	resp := decode[MessageResponse](t, rec)
	assert.Equal(t, "Order confirmed successfully", resp.Message)
	assert.Equal(t, "confirmed", resp.Order.Status)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, decode[ProductResponse](t, rec).StockQuantity)

	// Confirming twice is a state conflict.
	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", o.ID), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Order is already confirmed", decode[ErrorResponse](t, rec).Error)
}

func TestConfirmInsufficientStock(t *testing.T) {
	srv := newTestServer(t)

	p := createProduct(t, srv, "Scarce", "5.00", 2)
	o := createOrder(t, srv, CreateOrderItemDTO{ProductID: p.ID, Quantity: 5})

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", o.ID), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient stock for Scarce. Available: 2, Required: 5",
		decode[ErrorResponse](t, rec).Error)

	// Nothing moved.
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), nil)
	assert.Equal(t, 2, decode[ProductResponse](t, rec).StockQuantity)
}

func TestConfirmMissingOrder(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/orders/999/confirm", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOrderContract(t *testing.T) {
	srv := newTestServer(t)

	p := createProduct(t, srv, "Cancellable", "5.00", 10)
	o := createOrder(t, srv, CreateOrderItemDTO{ProductID: p.ID, Quantity: 3})

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", o.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", o.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	resp := decode[MessageResponse](t, rec)
	assert.Equal(t, "Order cancelled successfully", resp.Message)
	assert.Equal(t, "cancelled", resp.Order.Status)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), nil)
	assert.Equal(t, 10, decode[ProductResponse](t, rec).StockQuantity, "stock restored")

	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", o.ID), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Order is already cancelled", decode[ErrorResponse](t, rec).Error)
}

func TestUpdateOrderItemContract(t *testing.T) {
	srv := newTestServer(t)

	p := createProduct(t, srv, "Adjustable", "10.00", 20)
	o := createOrder(t, srv, CreateOrderItemDTO{ProductID: p.ID, Quantity: 5})

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", o.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	itemID := o.Items[0].ID
	qty := 8
	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/update-item", o.ID), UpdateItemRequest{
		OrderItemID: &itemID,
		NewQuantity: &qty,
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	resp := decode[MessageResponse](t, rec)
	assert.Equal(t, "Order item updated successfully", resp.Message)
	require.Len(t, resp.Order.Items, 1)
	assert.Equal(t, 8, resp.Order.Items[0].Quantity)
	assert.Equal(t, "80", resp.Order.TotalAmount.String())

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), nil)
	assert.Equal(t, 12, decode[ProductResponse](t, rec).StockQuantity)
}

func TestUpdateOrderItemRequiresFields(t *testing.T) {
	srv := newTestServer(t)

	p := createProduct(t, srv, "Strict", "10.00", 20)
	o := createOrder(t, srv, CreateOrderItemDTO{ProductID: p.ID, Quantity: 1})

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/update-item", o.ID), map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "required")
}

func TestUpdateOrderItemPendingRejected(t *testing.T) {
	srv := newTestServer(t)

	p := createProduct(t, srv, "Pending", "10.00", 20)
	o := createOrder(t, srv, CreateOrderItemDTO{ProductID: p.ID, Quantity: 1})

	itemID := o.Items[0].ID
	qty := 2
	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/update-item", o.ID), UpdateItemRequest{
		OrderItemID: &itemID,
		NewQuantity: &qty,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only confirmed orders can have items updated", decode[ErrorResponse](t, rec).Error)
}

func TestDashboardEndpoint(t *testing.T) {
	srv := newTestServer(t)

	createProduct(t, srv, "Low", "3.00", 4)
	p := createProduct(t, srv, "High", "50.00", 40)
	o := createOrder(t, srv, CreateOrderItemDTO{ProductID: p.ID, Quantity: 2})
	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", o.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	stats := decode[fulfillment.DashboardStats](t, rec)
	assert.Equal(t, 1, stats.TotalOrders)
	assert.Equal(t, "100", stats.TotalRevenue.String())
	require.Len(t, stats.LowStockProducts, 1)
	assert.Equal(t, "Low", stats.LowStockProducts[0].Name)
}

func TestDashboardServedFromCache(t *testing.T) {
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := fulfillment.NewService(st, locks.NewManager(2*time.Second))
	c := &fakeCache{entries: map[string]string{}}
	srv := NewRouter(NewHandler(svc, c))

	rec := doJSON(t, srv, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := rec.Body.String()
	require.Len(t, c.entries, 1, "first hit populates the cache")

	// Poison the cached value to prove the second hit never recomputes.
	for k := range c.entries {
		c.entries[k] = `{"cached":true}`
	}
	rec = doJSON(t, srv, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cached":true}`, rec.Body.String())
	assert.NotEqual(t, first, rec.Body.String())
}

type fakeCache struct {
	entries map[string]string
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.entries[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	return f.entries[key], nil
}

func (f *fakeCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("test:%s:%s", operation, key)
}

var _ cache.Cache = (*fakeCache)(nil)

func TestActivityLogEndpoint(t *testing.T) {
	srv := newTestServer(t)

	p := createProduct(t, srv, "Audited", "5.00", 15)
	createOrder(t, srv, CreateOrderItemDTO{ProductID: p.ID, Quantity: 1})

	rec := doJSON(t, srv, http.MethodGet, "/activity-log", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var feed []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Len(t, feed, 2)
	for _, e := range feed {
		assert.Contains(t, e, "id")
		assert.Contains(t, e, "log_type")
		assert.Contains(t, e, "timestamp")
		assert.Contains(t, e, "details")
	}
}

func TestActivityLogEmptyIsArray(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/activity-log", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestInvalidJSONBody(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
