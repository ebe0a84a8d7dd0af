package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zeynabmousavii/week08/internal/domain"
	"github.com/zeynabmousavii/week08/internal/messaging"
)

// DeductionStore is the slice of the repository the worker needs.
type DeductionStore interface {
	DeductOrder(ctx context.Context, orderID string, items []domain.OrderPlacedItem) (*DeductionOutcome, error)
}

// ResultPublisher emits the deduction outcome back onto the broker.
type ResultPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// DeductionWorker consumes placed orders and deducts their stock in a single
// all-or-nothing pass, then reports the outcome as an event. Malformed events
// are dropped; transient failures are returned so the delivery is requeued.
type DeductionWorker struct {
	store     DeductionStore
	publisher ResultPublisher
	logger    *slog.Logger
	outcomes  metric.Int64Counter
}

func NewDeductionWorker(store DeductionStore, publisher ResultPublisher, logger *slog.Logger) *DeductionWorker {
	meter := otel.Meter("products")
	outcomes, err := meter.Int64Counter("stock_deductions_total",
		metric.WithDescription("Order stock deduction attempts by outcome"))
	if err != nil {
		logger.Error("failed to create deduction counter", "error", err)
	}

	return &DeductionWorker{
		store:     store,
		publisher: publisher,
		logger:    logger,
		outcomes:  outcomes,
	}
}

func (w *DeductionWorker) Handle(ctx context.Context, msg messaging.Message) error {
	event, err := domain.DecodeOrderPlaced(msg.Body)
	if err != nil {
		// Redelivering a message that cannot be decoded would loop forever.
		w.logger.Error("dropping malformed order placed event", "error", err)
		return nil
	}

	w.logger.Info("processing placed order", "order_id", event.OrderID, "items", len(event.Items))

	outcome, err := w.store.DeductOrder(ctx, event.OrderID, event.Items)
	switch {
	case errors.Is(err, ErrOrderAlreadyProcessed):
		// Redelivery of an order whose deduction already committed. The
		// result event may not have made it out last time, so emit it again.
		w.logger.Info("order already deducted, re-emitting result", "order_id", event.OrderID)
		return w.publishResult(ctx, domain.RoutingKeyStockDeducted, domain.NewStockDeductedEvent(event.OrderID))
	case err != nil:
		w.record(ctx, "error")
		w.logger.Error("stock deduction hit a database error", "error", err, "order_id", event.OrderID)
		failed := domain.NewStockDeductionFailedEvent(event.OrderID, []domain.DeductionFailure{{
			Reason:  domain.DeductionReasonDatabaseError,
			Message: "database error during stock deduction",
		}})
		return w.publishResult(ctx, domain.RoutingKeyStockDeductionFailed, failed)
	}

	if len(outcome.Failures) > 0 {
		w.record(ctx, "failed")
		w.logger.Warn("order rejected, stock unchanged", "order_id", event.OrderID, "failures", len(outcome.Failures))
		failed := domain.NewStockDeductionFailedEvent(event.OrderID, outcome.Failures)
		return w.publishResult(ctx, domain.RoutingKeyStockDeductionFailed, failed)
	}

	w.record(ctx, "deducted")
	for _, alert := range outcome.Alerts {
		w.logger.Warn("product stock at or below restock threshold",
			"product_id", alert.ProductID, "name", alert.Name, "remaining", alert.Remaining)
	}
	w.logger.Info("stock deducted for order", "order_id", event.OrderID)

	return w.publishResult(ctx, domain.RoutingKeyStockDeducted, domain.NewStockDeductedEvent(event.OrderID))
}

// publishResult returns an error so an unpublished outcome requeues the
// delivery; the processed ledger keeps the retry from deducting twice.
func (w *DeductionWorker) publishResult(ctx context.Context, routingKey string, event any) error {
	if err := w.publisher.Publish(ctx, routingKey, event); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (w *DeductionWorker) record(ctx context.Context, outcome string) {
	if w.outcomes == nil {
		return
	}
	w.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
