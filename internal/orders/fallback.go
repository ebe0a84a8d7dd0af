package orders

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/zeynabmousavii/week08/internal/domain"
)

// createWithDirectDeduction is the synchronous order path: stock is taken
// item by item through the inventory service before anything is written
// locally, and the order lands directly in confirmed status. The order ID is
// assigned up front so deductions and their reversals share a key.
func (h *Handler) createWithDirectDeduction(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	ctx := r.Context()
	order.ID = uuid.New().String()

	var deducted []domain.OrderItem
	for _, item := range order.Items {
		err := h.inventory.Deduct(ctx, item.ProductID, item.Quantity, order.ID)
		if err == nil {
			deducted = append(deducted, item)
			continue
		}

		h.logger.Warn("stock deduction failed, compensating",
			"error", err, "order_id", order.ID, "product_id", item.ProductID, "deducted_items", len(deducted))
		h.compensate(ctx, order.ID, deducted)

		switch {
		case errors.Is(err, ErrProductNotFound):
			h.writeError(w, http.StatusBadRequest, "unknown product: "+item.ProductID)
		case errors.Is(err, ErrInsufficientStock):
			h.writeError(w, http.StatusConflict, "insufficient stock for product "+item.ProductID)
		case errors.Is(err, ErrInventoryUnavailable):
			h.writeError(w, http.StatusServiceUnavailable, "inventory service unavailable, try again later")
		default:
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	order.Status = domain.OrderStatusConfirmed

	if err := h.store.Create(ctx, order); err != nil {
		// Stock is already gone at this point. Surface the failure and
		// leave the deductions in place for manual reconciliation; the
		// reversal ledger makes a later operator-driven restore safe.
		h.logger.Error("CRITICAL: order write failed after stock was deducted, manual reconciliation required",
			"error", err, "order_id", order.ID, "user_id", order.UserID, "items", len(order.Items))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order created with direct stock deduction",
		"order_id", order.ID, "user_id", order.UserID, "total_amount", order.TotalAmount)
	h.writeJSON(w, http.StatusCreated, order)
}

// compensate restores stock for every item deducted so far. Each restore is
// idempotent on (order, product), so failures here can simply be retried by
// an operator replaying the same calls.
func (h *Handler) compensate(ctx context.Context, orderID string, deducted []domain.OrderItem) {
	for _, item := range deducted {
		if err := h.inventory.Restore(ctx, item.ProductID, item.Quantity, orderID); err != nil {
			h.logger.Error("failed to restore stock during compensation",
				"error", err, "order_id", orderID, "product_id", item.ProductID, "quantity", item.Quantity)
		}
	}
}
