package products

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/zeynabmousavii/week08/internal/domain"
	"github.com/zeynabmousavii/week08/internal/messaging"
)

type deductOrderCall struct {
	orderID string
	items   []domain.OrderPlacedItem
}

type fakeDeductionStore struct {
	outcome *DeductionOutcome
	err     error
	calls   []deductOrderCall
}

func (s *fakeDeductionStore) DeductOrder(_ context.Context, orderID string, items []domain.OrderPlacedItem) (*DeductionOutcome, error) {
	s.calls = append(s.calls, deductOrderCall{orderID, items})
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

type publishedEvent struct {
	routingKey string
	event      any
}

type fakeResultPublisher struct {
	published []publishedEvent
	err       error
}

func (p *fakeResultPublisher) Publish(_ context.Context, routingKey string, event any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedEvent{routingKey, event})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orderPlacedMessage(t *testing.T, orderID string) messaging.Message {
	t.Helper()
	event := domain.OrderPlacedEvent{
		SchemaVersion: domain.EventSchemaVersion,
		OrderID:       orderID,
		UserID:        "user-1",
		Items: []domain.OrderPlacedItem{
			{ProductID: "prod-1", Quantity: 2, PriceAtPurchase: decimal.RequireFromString("10.00")},
		},
		TotalAmount: decimal.RequireFromString("20.00"),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return messaging.Message{RoutingKey: domain.RoutingKeyOrderPlaced, Body: payload}
}

func TestDeductionWorker_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes deducted event on success", func(t *testing.T) {
		store := &fakeDeductionStore{outcome: &DeductionOutcome{}}
		publisher := &fakeResultPublisher{}
		worker := NewDeductionWorker(store, publisher, testLogger())

		if err := worker.Handle(ctx, orderPlacedMessage(t, "order-1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(store.calls) != 1 || store.calls[0].orderID != "order-1" {
			t.Fatalf("unexpected store calls: %+v", store.calls)
		}
		if len(publisher.published) != 1 {
			t.Fatalf("expected 1 event, got %d", len(publisher.published))
		}
		if publisher.published[0].routingKey != domain.RoutingKeyStockDeducted {
			t.Errorf("unexpected routing key %s", publisher.published[0].routingKey)
		}
		event := publisher.published[0].event.(domain.StockDeductedEvent)
		if event.OrderID != "order-1" || event.Status != "success" {
			t.Errorf("unexpected event: %+v", event)
		}
	})

	t.Run("publishes failed event with per item details", func(t *testing.T) {
		available := 1
		store := &fakeDeductionStore{outcome: &DeductionOutcome{
			Failures: []domain.DeductionFailure{{
				ProductID:      "prod-1",
				Reason:         domain.DeductionReasonInsufficientStock,
				AvailableStock: &available,
			}},
		}}
		publisher := &fakeResultPublisher{}
		worker := NewDeductionWorker(store, publisher, testLogger())

		if err := worker.Handle(ctx, orderPlacedMessage(t, "order-1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if publisher.published[0].routingKey != domain.RoutingKeyStockDeductionFailed {
			t.Fatalf("unexpected routing key %s", publisher.published[0].routingKey)
		}
		event := publisher.published[0].event.(domain.StockDeductionFailedEvent)
		if event.Status != "failed" || len(event.Details) != 1 {
			t.Errorf("unexpected event: %+v", event)
		}
		if event.Details[0].Reason != domain.DeductionReasonInsufficientStock {
			t.Errorf("unexpected reason %s", event.Details[0].Reason)
		}
	})

	t.Run("re-emits deducted event for an already processed order", func(t *testing.T) {
		store := &fakeDeductionStore{err: ErrOrderAlreadyProcessed}
		publisher := &fakeResultPublisher{}
		worker := NewDeductionWorker(store, publisher, testLogger())

		if err := worker.Handle(ctx, orderPlacedMessage(t, "order-1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(publisher.published) != 1 || publisher.published[0].routingKey != domain.RoutingKeyStockDeducted {
			t.Errorf("expected deducted event re-emitted, got %+v", publisher.published)
		}
	})

	t.Run("database errors produce a failed event", func(t *testing.T) {
		store := &fakeDeductionStore{err: errors.New("connection reset")}
		publisher := &fakeResultPublisher{}
		worker := NewDeductionWorker(store, publisher, testLogger())

		if err := worker.Handle(ctx, orderPlacedMessage(t, "order-1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		event := publisher.published[0].event.(domain.StockDeductionFailedEvent)
		if len(event.Details) != 1 || event.Details[0].Reason != domain.DeductionReasonDatabaseError {
			t.Errorf("unexpected event: %+v", event)
		}
	})

	t.Run("drops malformed events without touching the store", func(t *testing.T) {
		store := &fakeDeductionStore{}
		worker := NewDeductionWorker(store, &fakeResultPublisher{}, testLogger())

		msg := messaging.Message{RoutingKey: domain.RoutingKeyOrderPlaced, Body: []byte(`{"bogus":true}`)}
		if err := worker.Handle(ctx, msg); err != nil {
			t.Errorf("expected malformed event to be dropped, got %v", err)
		}
		if len(store.calls) != 0 {
			t.Error("expected no deduction attempt for malformed event")
		}
	})

	t.Run("returns publish errors for redelivery", func(t *testing.T) {
		store := &fakeDeductionStore{outcome: &DeductionOutcome{}}
		publisher := &fakeResultPublisher{err: errors.New("broker gone")}
		worker := NewDeductionWorker(store, publisher, testLogger())

		if err := worker.Handle(ctx, orderPlacedMessage(t, "order-1")); err == nil {
			t.Error("expected publish error to propagate")
		}
	})
}
