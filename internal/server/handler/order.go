package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	Create(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	Cancel(ctx context.Context, orderID, userID int64) (domain.Order, error)
	ListByUser(ctx context.Context, userID int64, status *domain.OrderStatus) ([]domain.Order, error)
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// CreateOrder validates and executes an order. Rejected orders are a
// successful response; clients check status.
// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.Create(r.Context(), req.toDomain())
	if err != nil {
		writeServiceError(w, r, h.logger, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, newOrderResponse(order))
}

// CancelOrder cancels a NEW order owned by the user in the body.
// POST /api/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req cancelOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	order, err := h.orders.Cancel(r.Context(), id, req.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, "cancel order", err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

// ListOrders returns a user's orders, newest first.
// GET /api/orders?userId=1&status=NEW
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID, ok := parseID(q.Get("userId"))
	if !ok {
		writeError(w, http.StatusBadRequest, "userId query parameter required")
		return
	}

	var status *domain.OrderStatus
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		st := domain.OrderStatus(strings.ToUpper(s))
		status = &st
	}

	orders, err := h.orders.ListByUser(r.Context(), userID, status)
	if err != nil {
		writeServiceError(w, r, h.logger, "list orders", err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponses(orders))
}
