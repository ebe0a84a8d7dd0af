package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zeynabmousavii/week08/internal/domain"
	"github.com/zeynabmousavii/week08/internal/messaging"
	"github.com/zeynabmousavii/week08/internal/orders"
	"github.com/zeynabmousavii/week08/internal/telemetry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := telemetry.NewLogger("orders")

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if _, err := db.Exec("SET search_path TO orders"); err != nil {
		logger.Error("failed to set search_path", "error", err)
		os.Exit(1)
	}

	customersServiceURL := os.Getenv("CUSTOMERS_SERVICE_URL")
	if customersServiceURL == "" {
		logger.Error("CUSTOMERS_SERVICE_URL environment variable is required")
		os.Exit(1)
	}
	customerClient := orders.NewCustomerClient(customersServiceURL, otelhttp.NewTransport(http.DefaultTransport))

	// A broker outage must not keep the service from serving reads, so a
	// failed connection only disables the event flow.
	var broker *messaging.Client
	if rabbitURL := os.Getenv("RABBITMQ_URL"); rabbitURL != "" {
		broker, err = messaging.Dial(messaging.Config{URL: rabbitURL}, logger)
		if err != nil {
			logger.Error("broker unavailable, continuing without events", "error", err)
		} else {
			defer func() { _ = broker.Close() }()
		}
	}

	var publisher orders.EventPublisher
	if broker != nil {
		publisher = broker
	}

	// ORDER_PROCESSING_MODE=sync deducts stock through the product service
	// during order creation instead of publishing an event.
	var inventory orders.StockDeductor
	if os.Getenv("ORDER_PROCESSING_MODE") == "sync" {
		productsServiceURL := os.Getenv("PRODUCTS_SERVICE_URL")
		if productsServiceURL == "" {
			logger.Error("PRODUCTS_SERVICE_URL is required in sync mode")
			os.Exit(1)
		}
		inventory = orders.NewInventoryClient(productsServiceURL, otelhttp.NewTransport(http.DefaultTransport))
		logger.Info("running in synchronous deduction mode")
	}

	repo := orders.NewOrderRepository(db)
	handler := orders.NewHandler(repo, customerClient, publisher, inventory, logger)

	if broker != nil {
		reconciler := orders.NewReconciler(repo, logger)
		go func() {
			err := broker.Consume(ctx, "order-service.stock-results",
				[]string{domain.RoutingKeyStockDeducted, domain.RoutingKeyStockDeductionFailed},
				reconciler.Handle)
			if err != nil && ctx.Err() == nil {
				logger.Error("stock results consumer stopped", "error", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(handler.HandleCreate))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.HandleFunc("GET /orders/{id}/items", telemetry.WithHTTPRoute(handler.HandleListItems))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(handler.HandleUpdateStatus))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(handler.HandleDelete))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      otelhttp.NewHandler(mux, "orders"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
