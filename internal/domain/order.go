package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"

	// Settable through the status endpoint but never produced by the
	// reservation flow itself.
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusCompleted  OrderStatus = "completed"
)

// ValidOrderStatus reports whether s is one of the known order statuses.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusFailed,
		OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled, OrderStatusCompleted:
		return true
	}
	return false
}

type OrderItem struct {
	ID              string          `json:"order_item_id"`
	OrderID         string          `json:"order_id"`
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	ItemTotal       decimal.Decimal `json:"item_total"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Order struct {
	ID              string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	OrderDate       time.Time       `json:"order_date"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	Items           []OrderItem     `json:"items"`
}

// ItemTotal computes quantity x unit price as an exact decimal.
func ItemTotal(quantity int, priceAtPurchase decimal.Decimal) decimal.Decimal {
	return priceAtPurchase.Mul(decimal.NewFromInt(int64(quantity)))
}

// OrderTotal sums the item totals of all items.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.ItemTotal)
	}
	return total
}
