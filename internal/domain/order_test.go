package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestItemTotal(t *testing.T) {
	t.Run("multiplies quantity by unit price", func(t *testing.T) {
		price := decimal.RequireFromString("19.99")
		total := ItemTotal(3, price)

		if total.String() != "59.97" {
			t.Errorf("expected 59.97, got %s", total)
		}
	})

	t.Run("keeps cents exact", func(t *testing.T) {
		price := decimal.RequireFromString("0.10")
		total := ItemTotal(3, price)

		if !total.Equal(decimal.RequireFromString("0.30")) {
			t.Errorf("expected 0.30, got %s", total)
		}
	})
}

func TestOrderTotal(t *testing.T) {
	t.Run("sums item totals", func(t *testing.T) {
		items := []OrderItem{
			{ItemTotal: decimal.RequireFromString("59.97")},
			{ItemTotal: decimal.RequireFromString("0.03")},
		}

		total := OrderTotal(items)
		if total.String() != "60" {
			t.Errorf("expected 60, got %s", total)
		}
	})

	t.Run("empty order totals zero", func(t *testing.T) {
		if !OrderTotal(nil).IsZero() {
			t.Error("expected zero total for no items")
		}
	})
}

func TestValidOrderStatus(t *testing.T) {
	valid := []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusFailed,
		OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled, OrderStatusCompleted,
	}
	for _, status := range valid {
		if !ValidOrderStatus(status) {
			t.Errorf("expected %s to be valid", status)
		}
	}

	if ValidOrderStatus("delivered") {
		t.Error("expected delivered to be invalid")
	}
	if ValidOrderStatus("") {
		t.Error("expected empty status to be invalid")
	}
}
