// Package httpx exposes the fulfillment engine over the HTTP contract:
// the three engine endpoints, the read-side aggregations, and the plain
// CRUD boundary for products and orders.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/stockroom/internal/domain"
	"github.com/jcmexdev/stockroom/internal/fulfillment"
	"github.com/jcmexdev/stockroom/internal/locks"
	"github.com/jcmexdev/stockroom/internal/pkg/cache"
)

// dashboardTTL bounds how stale the cached dashboard may be.
const dashboardTTL = 5 * time.Second

// Handler handles incoming HTTP requests for the fulfillment engine.
// cache may be nil — dashboard responses are then computed on every call.
type Handler struct {
	service *fulfillment.Service
	cache   cache.Cache
}

func NewHandler(service *fulfillment.Service, c cache.Cache) *Handler {
	return &Handler{service: service, cache: c}
}

// ── Engine endpoints ────────────────────────────────────────────────────────

func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.service.Confirm(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Order confirmed successfully",
		Order:   mapOrder(order),
	})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Order cancelled successfully",
		Order:   mapOrder(order),
	})
}

func (h *Handler) UpdateOrderItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.OrderItemID == nil || req.NewQuantity == nil {
		writeError(w, http.StatusBadRequest, "order_item_id and new_quantity are required")
		return
	}

	order, err := h.service.UpdateItemQuantity(r.Context(), id, *req.OrderItemID, *req.NewQuantity)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Order item updated successfully",
		Order:   mapOrder(order),
	})
}

// ── Read-side aggregations ──────────────────────────────────────────────────

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var key string
	if h.cache != nil {
		key = h.cache.GenerateKey("dashboard", "stats")
		if raw, err := h.cache.Get(ctx, key); err == nil && raw != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(raw))
			return
		}
	}

	stats, err := h.service.Dashboard(ctx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	body, err := json.Marshal(stats)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if h.cache != nil {
		// A failed cache write only costs the next request a recompute.
		if err := h.cache.Set(ctx, key, string(body), dashboardTTL); err != nil {
			slog.DebugContext(ctx, "dashboard cache write failed", "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) ActivityLog(w http.ResponseWriter, r *http.Request) {
	feed, err := h.service.ActivityFeed(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if feed == nil {
		feed = []fulfillment.FeedEntry{}
	}
	writeJSON(w, http.StatusOK, feed)
}

// ── Product CRUD boundary ───────────────────────────────────────────────────

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Products(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = mapProduct(&products[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.Product(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(p))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	p, err := h.service.CreateProduct(r.Context(), fulfillment.ProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapProduct(p))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), id, fulfillment.ProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(p))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Order CRUD boundary ─────────────────────────────────────────────────────

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.Orders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = mapOrder(&orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.service.Order(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	items := make([]fulfillment.CreateOrderItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = fulfillment.CreateOrderItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		}
	}
	order, err := h.service.CreateOrder(r.Context(), fulfillment.CreateOrderInput{
		OrderNumber: req.OrderNumber,
		Items:       items,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrder(order))
}

// ── Helpers ─────────────────────────────────────────────────────────────────

// writeServiceError maps the error taxonomy to status codes: invalid
// input, state conflicts, and stock failures are 400; missing records are
// 404; lock timeouts are 409 and safe to retry; everything else is 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidInput      *domain.InvalidInputError
		stateConflict     *domain.StateConflictError
		insufficientStock *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &invalidInput),
		errors.As(err, &stateConflict),
		errors.As(err, &insufficientStock):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, locks.ErrLockTimeout):
		writeError(w, http.StatusConflict, "Operation timed out waiting for a product lock, please retry")
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID parses the numeric URL parameter; a non-numeric value is a 404,
// matching the behavior of a missing record.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
