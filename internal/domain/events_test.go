package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func placedOrder() *Order {
	price := decimal.RequireFromString("12.50")
	items := []OrderItem{{
		ProductID:       "prod-1",
		Quantity:        2,
		PriceAtPurchase: price,
		ItemTotal:       ItemTotal(2, price),
	}}
	return &Order{
		ID:          "order-1",
		UserID:      "user-1",
		OrderDate:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:      OrderStatusPending,
		TotalAmount: OrderTotal(items),
		Items:       items,
	}
}

func TestDecodeOrderPlaced(t *testing.T) {
	t.Run("accepts an event it produced", func(t *testing.T) {
		payload, err := json.Marshal(NewOrderPlacedEvent(placedOrder()))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		event, err := DecodeOrderPlaced(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if event.OrderID != "order-1" {
			t.Errorf("expected order-1, got %s", event.OrderID)
		}
		if !event.TotalAmount.Equal(decimal.RequireFromString("25.00")) {
			t.Errorf("expected total 25.00, got %s", event.TotalAmount)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		payload := []byte(`{"schema_version":1,"order_id":"o1","items":[{"product_id":"p1","quantity":1,"price_at_purchase":"1.00"}],"surprise":true}`)

		if _, err := DecodeOrderPlaced(payload); err == nil {
			t.Error("expected error for unknown field")
		}
	})

	t.Run("rejects wrong schema version", func(t *testing.T) {
		payload := []byte(`{"schema_version":2,"order_id":"o1","items":[{"product_id":"p1","quantity":1,"price_at_purchase":"1.00"}]}`)

		_, err := DecodeOrderPlaced(payload)
		if err == nil || !strings.Contains(err.Error(), "schema version") {
			t.Errorf("expected schema version error, got %v", err)
		}
	})

	t.Run("rejects missing order id", func(t *testing.T) {
		payload := []byte(`{"schema_version":1,"items":[{"product_id":"p1","quantity":1,"price_at_purchase":"1.00"}]}`)

		if _, err := DecodeOrderPlaced(payload); err == nil {
			t.Error("expected error for missing order_id")
		}
	})

	t.Run("rejects empty item list", func(t *testing.T) {
		payload := []byte(`{"schema_version":1,"order_id":"o1","items":[]}`)

		if _, err := DecodeOrderPlaced(payload); err == nil {
			t.Error("expected error for empty items")
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		payload := []byte(`{"schema_version":1,"order_id":"o1","items":[{"product_id":"p1","quantity":0,"price_at_purchase":"1.00"}]}`)

		if _, err := DecodeOrderPlaced(payload); err == nil {
			t.Error("expected error for zero quantity")
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		if _, err := DecodeOrderPlaced([]byte("not json")); err == nil {
			t.Error("expected error for malformed payload")
		}
	})
}

func TestDecodeStockDeducted(t *testing.T) {
	t.Run("round trips", func(t *testing.T) {
		payload, _ := json.Marshal(NewStockDeductedEvent("order-1"))

		event, err := DecodeStockDeducted(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if event.OrderID != "order-1" || event.Status != "success" {
			t.Errorf("unexpected event: %+v", event)
		}
	})

	t.Run("rejects missing order id", func(t *testing.T) {
		payload := []byte(`{"schema_version":1,"status":"success","timestamp":"2025-06-01T00:00:00Z"}`)

		if _, err := DecodeStockDeducted(payload); err == nil {
			t.Error("expected error for missing order_id")
		}
	})
}

func TestDecodeStockDeductionFailed(t *testing.T) {
	t.Run("carries failure details", func(t *testing.T) {
		available := 3
		details := []DeductionFailure{{
			ProductID:      "prod-1",
			Reason:         DeductionReasonInsufficientStock,
			AvailableStock: &available,
			Message:        "product prod-1 has 3 in stock, order needs 5",
		}}
		payload, _ := json.Marshal(NewStockDeductionFailedEvent("order-1", details))

		event, err := DecodeStockDeductionFailed(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(event.Details) != 1 {
			t.Fatalf("expected 1 detail, got %d", len(event.Details))
		}
		detail := event.Details[0]
		if detail.Reason != DeductionReasonInsufficientStock {
			t.Errorf("unexpected reason %s", detail.Reason)
		}
		if detail.AvailableStock == nil || *detail.AvailableStock != 3 {
			t.Errorf("unexpected available stock %v", detail.AvailableStock)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		payload := []byte(`{"schema_version":1,"order_id":"o1","status":"failed","timestamp":"2025-06-01T00:00:00Z","details":[],"extra":1}`)

		if _, err := DecodeStockDeductionFailed(payload); err == nil {
			t.Error("expected error for unknown field")
		}
	})
}
