package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zeynabmousavii/week08/internal/domain"
)

// OrderStore is the persistence surface the HTTP handlers need.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// CustomerDirectory validates the ordering customer before any write.
type CustomerDirectory interface {
	Lookup(ctx context.Context, id string) (*CustomerSummary, error)
}

// EventPublisher emits events onto the broker. It may be nil on a Handler
// when the broker connection failed at startup; order creation then still
// works, but placed orders stay pending until reconciled by hand.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// StockDeductor is the direct inventory call surface for the synchronous
// order path.
type StockDeductor interface {
	Deduct(ctx context.Context, productID string, quantity int, orderID string) error
	Restore(ctx context.Context, productID string, quantity int, orderID string) error
}

type Handler struct {
	store     OrderStore
	customers CustomerDirectory
	publisher EventPublisher
	inventory StockDeductor
	logger    *slog.Logger
}

// NewHandler builds the order HTTP surface. A non-nil inventory client
// switches order creation to the synchronous deduction path; otherwise new
// orders go through the event flow.
func NewHandler(store OrderStore, customers CustomerDirectory, publisher EventPublisher, inventory StockDeductor, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		customers: customers,
		publisher: publisher,
		inventory: inventory,
		logger:    logger,
	}
}

type createOrderItem struct {
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type createOrderRequest struct {
	UserID          string            `json:"user_id"`
	ShippingAddress string            `json:"shipping_address"`
	Items           []createOrderItem `json:"items"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.Items) == 0 {
		h.writeError(w, http.StatusBadRequest, "order must contain at least one item")
		return
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			h.writeError(w, http.StatusBadRequest, "every item needs a product_id")
			return
		}
		if item.Quantity < 1 {
			h.writeError(w, http.StatusBadRequest, "item quantity must be at least 1")
			return
		}
		if !item.PriceAtPurchase.IsPositive() {
			h.writeError(w, http.StatusBadRequest, "item price_at_purchase must be positive")
			return
		}
	}

	customer, err := h.customers.Lookup(r.Context(), req.UserID)
	switch {
	case errors.Is(err, ErrCustomerNotFound):
		h.logger.Warn("rejecting order for unknown customer", "user_id", req.UserID)
		h.writeError(w, http.StatusBadRequest, "unknown customer: "+req.UserID)
		return
	case errors.Is(err, ErrCustomerServiceUnavailable):
		h.logger.Error("customer service unreachable", "error", err, "user_id", req.UserID)
		h.writeError(w, http.StatusServiceUnavailable, "customer service unavailable, try again later")
		return
	case err != nil:
		h.logger.Error("customer validation failed", "error", err, "user_id", req.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.ShippingAddress == "" {
		req.ShippingAddress = customer.ShippingAddress
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
			ItemTotal:       domain.ItemTotal(item.Quantity, item.PriceAtPurchase),
		})
	}

	order := &domain.Order{
		UserID:          req.UserID,
		OrderDate:       time.Now().UTC(),
		TotalAmount:     domain.OrderTotal(items),
		ShippingAddress: req.ShippingAddress,
		Items:           items,
	}

	if h.inventory != nil {
		h.createWithDirectDeduction(w, r, order)
		return
	}
	h.createWithEvent(w, r, order)
}

// createWithEvent persists the order as pending and announces it on the
// broker. The write is acknowledged to the caller even if the publish fails;
// such an order stays pending and is only discoverable by polling.
func (h *Handler) createWithEvent(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	order.Status = domain.OrderStatusPending

	if err := h.store.Create(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "error", err, "user_id", order.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.publisher == nil {
		h.logger.Error("broker unavailable, order placed without event", "order_id", order.ID)
	} else {
		event := domain.NewOrderPlacedEvent(order)
		if err := h.publisher.Publish(r.Context(), domain.RoutingKeyOrderPlaced, event); err != nil {
			h.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order created", "order_id", order.ID, "user_id", order.UserID, "total_amount", order.TotalAmount)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order items", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order.Items)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: 100}
	query := r.URL.Query()

	if v := query.Get("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil || skip < 0 {
			h.writeError(w, http.StatusBadRequest, "skip must be a non-negative integer")
			return
		}
		filter.Skip = skip
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 100 {
			h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		filter.Limit = limit
	}
	filter.UserID = query.Get("user_id")
	if v := query.Get("status"); v != "" {
		status := domain.OrderStatus(v)
		if !domain.ValidOrderStatus(status) {
			h.writeError(w, http.StatusBadRequest, "unknown status filter: "+v)
			return
		}
		filter.Status = status
	}

	orders, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidOrderStatus(req.Status) {
		h.writeError(w, http.StatusBadRequest, "unknown status: "+string(req.Status))
		return
	}

	order, err := h.store.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.logger.Error("failed to update order status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	deleted, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !deleted {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order deleted", "order_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
