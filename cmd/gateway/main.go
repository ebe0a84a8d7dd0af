package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zeynabmousavii/week08/internal/gateway"
	"github.com/zeynabmousavii/week08/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := telemetry.NewLogger("gateway")

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	customersServiceURL := os.Getenv("CUSTOMERS_SERVICE_URL")
	if customersServiceURL == "" {
		logger.Error("CUSTOMERS_SERVICE_URL is required")
		os.Exit(1)
	}

	ordersServiceURL := os.Getenv("ORDERS_SERVICE_URL")
	if ordersServiceURL == "" {
		logger.Error("ORDERS_SERVICE_URL is required")
		os.Exit(1)
	}

	productsServiceURL := os.Getenv("PRODUCTS_SERVICE_URL")
	if productsServiceURL == "" {
		logger.Error("PRODUCTS_SERVICE_URL is required")
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	customersProxy := gateway.NewServiceProxy(customersServiceURL, httpClient)
	ordersProxy := gateway.NewServiceProxy(ordersServiceURL, httpClient)
	productsProxy := gateway.NewServiceProxy(productsServiceURL, httpClient)
	handler := gateway.NewHandler(customersProxy, ordersProxy, productsProxy, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /customers", telemetry.WithHTTPRoute(handler.HandleCustomers))
	mux.HandleFunc("POST /customers", telemetry.WithHTTPRoute(handler.HandleCustomers))
	mux.HandleFunc("GET /customers/{id}", telemetry.WithHTTPRoute(handler.HandleCustomers))
	mux.HandleFunc("PUT /customers/{id}", telemetry.WithHTTPRoute(handler.HandleCustomers))
	mux.HandleFunc("DELETE /customers/{id}", telemetry.WithHTTPRoute(handler.HandleCustomers))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("GET /orders/{id}/items", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(handler.HandleProducts))
	mux.HandleFunc("POST /products", telemetry.WithHTTPRoute(handler.HandleProducts))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(handler.HandleProducts))
	mux.HandleFunc("PUT /products/{id}", telemetry.WithHTTPRoute(handler.HandleProducts))
	mux.HandleFunc("DELETE /products/{id}", telemetry.WithHTTPRoute(handler.HandleProducts))
	mux.HandleFunc("PATCH /products/{id}/deduct-stock", telemetry.WithHTTPRoute(handler.HandleProducts))
	mux.HandleFunc("POST /products/{id}/restore-stock", telemetry.WithHTTPRoute(handler.HandleProducts))

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "gateway",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
