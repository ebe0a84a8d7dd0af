package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrCustomerNotFound           = errors.New("customer not found")
	ErrCustomerServiceUnavailable = errors.New("customer service unavailable")
)

// customerLookupTimeout bounds the synchronous validation call made before
// any order row is written.
const customerLookupTimeout = 3 * time.Second

type CustomerSummary struct {
	Email           string `json:"email"`
	ShippingAddress string `json:"shipping_address"`
}

type CustomerClient struct {
	baseURL string
	client  *http.Client
}

func NewCustomerClient(baseURL string, transport http.RoundTripper) *CustomerClient {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CustomerClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   customerLookupTimeout,
			Transport: transport,
		},
	}
}

// Lookup fetches the customer. A 404 maps to ErrCustomerNotFound, an
// unreachable service to ErrCustomerServiceUnavailable; anything else is an
// unexpected upstream error.
func (c *CustomerClient) Lookup(ctx context.Context, id string) (*CustomerSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/customers/"+id, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustomerServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var customer CustomerSummary
		if err := json.NewDecoder(resp.Body).Decode(&customer); err != nil {
			return nil, fmt.Errorf("decode customer %s: %w", id, err)
		}
		return &customer, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, id)
	default:
		return nil, fmt.Errorf("customer service returned status %d for customer %s", resp.StatusCode, id)
	}
}
