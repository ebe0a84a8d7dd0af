package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys on the ecomm.events exchange.
const (
	RoutingKeyOrderPlaced          = "order.placed"
	RoutingKeyStockDeducted        = "product.stock.deducted"
	RoutingKeyStockDeductionFailed = "product.stock.deduction.failed"
)

// EventSchemaVersion is stamped on every published event. Consumers reject
// anything else so payload changes cannot be absorbed silently.
const EventSchemaVersion = 1

// Per-item reasons carried by StockDeductionFailedEvent.
const (
	DeductionReasonProductNotFound   = "product_not_found"
	DeductionReasonInsufficientStock = "insufficient_stock"
	DeductionReasonDatabaseError     = "database_error"
)

type OrderPlacedItem struct {
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type OrderPlacedEvent struct {
	SchemaVersion int               `json:"schema_version"`
	OrderID       string            `json:"order_id"`
	UserID        string            `json:"user_id"`
	Items         []OrderPlacedItem `json:"items"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	OrderDate     time.Time         `json:"order_date"`
	Status        OrderStatus       `json:"status"`
}

type StockDeductedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

type DeductionFailure struct {
	ProductID      string `json:"product_id,omitempty"`
	Reason         string `json:"reason"`
	AvailableStock *int   `json:"available_stock,omitempty"`
	Message        string `json:"message,omitempty"`
}

type StockDeductionFailedEvent struct {
	SchemaVersion int                `json:"schema_version"`
	OrderID       string             `json:"order_id"`
	Status        string             `json:"status"`
	Timestamp     time.Time          `json:"timestamp"`
	Details       []DeductionFailure `json:"details"`
}

func NewOrderPlacedEvent(order *Order) OrderPlacedEvent {
	items := make([]OrderPlacedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderPlacedItem{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		})
	}
	return OrderPlacedEvent{
		SchemaVersion: EventSchemaVersion,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Items:         items,
		TotalAmount:   order.TotalAmount,
		OrderDate:     order.OrderDate,
		Status:        order.Status,
	}
}

func NewStockDeductedEvent(orderID string) StockDeductedEvent {
	return StockDeductedEvent{
		SchemaVersion: EventSchemaVersion,
		OrderID:       orderID,
		Status:        "success",
		Timestamp:     time.Now().UTC(),
	}
}

func NewStockDeductionFailedEvent(orderID string, details []DeductionFailure) StockDeductionFailedEvent {
	return StockDeductionFailedEvent{
		SchemaVersion: EventSchemaVersion,
		OrderID:       orderID,
		Status:        "failed",
		Timestamp:     time.Now().UTC(),
		Details:       details,
	}
}

// DecodeOrderPlaced strictly decodes an order.placed payload. Unknown fields,
// an unexpected schema version, or missing required fields are errors.
func DecodeOrderPlaced(payload []byte) (OrderPlacedEvent, error) {
	var event OrderPlacedEvent
	if err := decodeStrict(payload, &event); err != nil {
		return OrderPlacedEvent{}, err
	}
	if err := checkVersion(event.SchemaVersion); err != nil {
		return OrderPlacedEvent{}, err
	}
	if event.OrderID == "" {
		return OrderPlacedEvent{}, fmt.Errorf("order.placed event: missing order_id")
	}
	if len(event.Items) == 0 {
		return OrderPlacedEvent{}, fmt.Errorf("order.placed event %s: empty item list", event.OrderID)
	}
	for _, item := range event.Items {
		if item.ProductID == "" {
			return OrderPlacedEvent{}, fmt.Errorf("order.placed event %s: item missing product_id", event.OrderID)
		}
		if item.Quantity <= 0 {
			return OrderPlacedEvent{}, fmt.Errorf("order.placed event %s: non-positive quantity for product %s", event.OrderID, item.ProductID)
		}
	}
	return event, nil
}

// DecodeStockDeducted strictly decodes a product.stock.deducted payload.
func DecodeStockDeducted(payload []byte) (StockDeductedEvent, error) {
	var event StockDeductedEvent
	if err := decodeStrict(payload, &event); err != nil {
		return StockDeductedEvent{}, err
	}
	if err := checkVersion(event.SchemaVersion); err != nil {
		return StockDeductedEvent{}, err
	}
	if event.OrderID == "" {
		return StockDeductedEvent{}, fmt.Errorf("stock.deducted event: missing order_id")
	}
	return event, nil
}

// DecodeStockDeductionFailed strictly decodes a product.stock.deduction.failed payload.
func DecodeStockDeductionFailed(payload []byte) (StockDeductionFailedEvent, error) {
	var event StockDeductionFailedEvent
	if err := decodeStrict(payload, &event); err != nil {
		return StockDeductionFailedEvent{}, err
	}
	if err := checkVersion(event.SchemaVersion); err != nil {
		return StockDeductionFailedEvent{}, err
	}
	if event.OrderID == "" {
		return StockDeductionFailedEvent{}, fmt.Errorf("stock.deduction.failed event: missing order_id")
	}
	return event, nil
}

func decodeStrict(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

func checkVersion(version int) error {
	if version != EventSchemaVersion {
		return fmt.Errorf("unsupported event schema version %d (want %d)", version, EventSchemaVersion)
	}
	return nil
}
