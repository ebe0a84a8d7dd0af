package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func TestCustomerClient_Lookup(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the customer summary", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/customers/cust-1" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"cust-1","email":"a@example.com","shipping_address":"1 Main St","first_name":"Ada"}`))
		}))
		defer server.Close()

		client := NewCustomerClient(server.URL, nil)
		customer, err := client.Lookup(ctx, "cust-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if customer.Email != "a@example.com" || customer.ShippingAddress != "1 Main St" {
			t.Errorf("unexpected customer: %+v", customer)
		}
	})

	t.Run("maps 404 to ErrCustomerNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewCustomerClient(server.URL, nil)
		_, err := client.Lookup(ctx, "ghost")
		if !errors.Is(err, ErrCustomerNotFound) {
			t.Errorf("expected ErrCustomerNotFound, got %v", err)
		}
	})

	t.Run("maps network failure to ErrCustomerServiceUnavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		server.Close()

		client := NewCustomerClient(server.URL, nil)
		_, err := client.Lookup(ctx, "cust-1")
		if !errors.Is(err, ErrCustomerServiceUnavailable) {
			t.Errorf("expected ErrCustomerServiceUnavailable, got %v", err)
		}
	})

	t.Run("other statuses are plain errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewCustomerClient(server.URL, nil)
		_, err := client.Lookup(ctx, "cust-1")
		if err == nil {
			t.Fatal("expected error")
		}
		if errors.Is(err, ErrCustomerNotFound) || errors.Is(err, ErrCustomerServiceUnavailable) {
			t.Errorf("expected generic error, got %v", err)
		}
	})
}

func TestInventoryClient_Deduct(t *testing.T) {
	ctx := context.Background()

	t.Run("sends quantity and order id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPatch {
				t.Errorf("expected PATCH, got %s", r.Method)
			}
			if r.URL.Path != "/products/prod-1/deduct-stock" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body deductStockRequest
			if err := decodeBody(r, &body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			if body.QuantityToDeduct != 3 || body.OrderID != "order-1" {
				t.Errorf("unexpected body: %+v", body)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewInventoryClient(server.URL, nil)
		if err := client.Deduct(ctx, "prod-1", 3, "order-1"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("maps 404 to ErrProductNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewInventoryClient(server.URL, nil)
		if err := client.Deduct(ctx, "ghost", 1, "order-1"); !errors.Is(err, ErrProductNotFound) {
			t.Errorf("expected ErrProductNotFound, got %v", err)
		}
	})

	t.Run("maps 400 to ErrInsufficientStock", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewInventoryClient(server.URL, nil)
		if err := client.Deduct(ctx, "prod-1", 99, "order-1"); !errors.Is(err, ErrInsufficientStock) {
			t.Errorf("expected ErrInsufficientStock, got %v", err)
		}
	})

	t.Run("maps network failure to ErrInventoryUnavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		server.Close()

		client := NewInventoryClient(server.URL, nil)
		if err := client.Deduct(ctx, "prod-1", 1, "order-1"); !errors.Is(err, ErrInventoryUnavailable) {
			t.Errorf("expected ErrInventoryUnavailable, got %v", err)
		}
	})
}

func TestInventoryClient_Restore(t *testing.T) {
	t.Run("posts the reversal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if r.URL.Path != "/products/prod-1/restore-stock" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body restoreStockRequest
			if err := decodeBody(r, &body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			if body.Quantity != 2 || body.OrderID != "order-1" {
				t.Errorf("unexpected body: %+v", body)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewInventoryClient(server.URL, nil)
		if err := client.Restore(context.Background(), "prod-1", 2, "order-1"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
