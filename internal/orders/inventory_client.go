package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInventoryUnavailable = errors.New("inventory service unavailable")
)

const stockCallTimeout = 5 * time.Second

// InventoryClient issues the direct stock calls used by the synchronous
// order path: one deduction per item, and the idempotent reversal used as
// compensation when a later item fails.
type InventoryClient struct {
	baseURL string
	client  *http.Client
}

func NewInventoryClient(baseURL string, transport http.RoundTripper) *InventoryClient {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &InventoryClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   stockCallTimeout,
			Transport: transport,
		},
	}
}

type deductStockRequest struct {
	QuantityToDeduct int    `json:"quantity_to_deduct"`
	OrderID          string `json:"order_id,omitempty"`
}

func (c *InventoryClient) Deduct(ctx context.Context, productID string, quantity int, orderID string) error {
	body := deductStockRequest{QuantityToDeduct: quantity, OrderID: orderID}
	url := fmt.Sprintf("%s/products/%s/deduct-stock", c.baseURL, productID)

	resp, err := c.send(ctx, http.MethodPatch, url, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: product %s", ErrInsufficientStock, productID)
	default:
		return fmt.Errorf("inventory service returned status %d for product %s", resp.StatusCode, productID)
	}
}

type restoreStockRequest struct {
	Quantity int    `json:"quantity"`
	OrderID  string `json:"order_id"`
}

// Restore reverses an earlier deduction for the given order. The endpoint is
// idempotent on (order, product), so retrying a failed compensation is safe.
func (c *InventoryClient) Restore(ctx context.Context, productID string, quantity int, orderID string) error {
	body := restoreStockRequest{Quantity: quantity, OrderID: orderID}
	url := fmt.Sprintf("%s/products/%s/restore-stock", c.baseURL, productID)

	resp, err := c.send(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	default:
		return fmt.Errorf("inventory service returned status %d restoring product %s", resp.StatusCode, productID)
	}
}

func (c *InventoryClient) send(ctx context.Context, method, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.client.Do(req)
}
