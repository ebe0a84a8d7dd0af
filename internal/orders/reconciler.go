package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zeynabmousavii/week08/internal/domain"
	"github.com/zeynabmousavii/week08/internal/messaging"
)

// ReconcilerStore is the slice of the order store the reconciler needs.
type ReconcilerStore interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	AdvanceStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error)
}

// Reconciler consumes stock deduction results and settles pending orders to
// confirmed or failed. It never retries a result for a missing order and
// ignores routing keys it does not know.
type Reconciler struct {
	store  ReconcilerStore
	logger *slog.Logger
}

func NewReconciler(store ReconcilerStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

func (rc *Reconciler) Handle(ctx context.Context, msg messaging.Message) error {
	switch msg.RoutingKey {
	case domain.RoutingKeyStockDeducted:
		event, err := domain.DecodeStockDeducted(msg.Body)
		if err != nil {
			rc.logger.Error("dropping malformed stock deducted event", "error", err)
			return nil
		}
		return rc.settle(ctx, event.OrderID, domain.OrderStatusConfirmed, nil)

	case domain.RoutingKeyStockDeductionFailed:
		event, err := domain.DecodeStockDeductionFailed(msg.Body)
		if err != nil {
			rc.logger.Error("dropping malformed stock deduction failed event", "error", err)
			return nil
		}
		return rc.settle(ctx, event.OrderID, domain.OrderStatusFailed, event.Details)

	default:
		rc.logger.Warn("ignoring event with unexpected routing key", "routing_key", msg.RoutingKey)
		return nil
	}
}

func (rc *Reconciler) settle(ctx context.Context, orderID string, status domain.OrderStatus, details []domain.DeductionFailure) error {
	applied, err := rc.store.AdvanceStatus(ctx, orderID, domain.OrderStatusPending, status)
	if err != nil {
		return fmt.Errorf("settle order %s to %s: %w", orderID, status, err)
	}

	if applied {
		if status == domain.OrderStatusFailed {
			rc.logger.Warn("order failed stock deduction", "order_id", orderID, "details", details)
		} else {
			rc.logger.Info("order confirmed", "order_id", orderID)
		}
		return nil
	}

	order, err := rc.store.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("look up order %s: %w", orderID, err)
	}
	if order == nil {
		rc.logger.Warn("stock result for unknown order, dropping", "order_id", orderID, "status", status)
		return nil
	}

	// Already settled, or overridden through the status endpoint. Result
	// events are at-least-once, so this is expected on redelivery.
	rc.logger.Info("order no longer pending, ignoring stock result",
		"order_id", orderID, "current_status", order.Status, "result_status", status)
	return nil
}
