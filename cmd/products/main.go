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
	"github.com/zeynabmousavii/week08/internal/products"
	"github.com/zeynabmousavii/week08/internal/telemetry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := telemetry.NewLogger("products")

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "products", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("products", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

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

	if _, err := db.Exec("SET search_path TO products"); err != nil {
		logger.Error("failed to set search_path", "error", err)
		os.Exit(1)
	}

	repo := products.NewProductRepository(db)
	handler := products.NewHandler(repo, logger)

	// Without a broker the HTTP surface still works; placed orders just sit
	// in pending until the consumer comes back.
	var broker *messaging.Client
	if rabbitURL := os.Getenv("RABBITMQ_URL"); rabbitURL != "" {
		broker, err = messaging.Dial(messaging.Config{URL: rabbitURL}, logger)
		if err != nil {
			logger.Error("broker unavailable, continuing without deduction worker", "error", err)
		} else {
			defer func() { _ = broker.Close() }()
		}
	}

	if broker != nil {
		worker := products.NewDeductionWorker(repo, broker, logger)
		go func() {
			err := broker.Consume(ctx, "product-service.order-placed",
				[]string{domain.RoutingKeyOrderPlaced}, worker.Handle)
			if err != nil && ctx.Err() == nil {
				logger.Error("order placed consumer stopped", "error", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("POST /products", telemetry.WithHTTPRoute(handler.HandleCreate))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.HandleFunc("PUT /products/{id}", telemetry.WithHTTPRoute(handler.HandleUpdate))
	mux.HandleFunc("DELETE /products/{id}", telemetry.WithHTTPRoute(handler.HandleDelete))
	mux.HandleFunc("PATCH /products/{id}/deduct-stock", telemetry.WithHTTPRoute(handler.HandleDeductStock))
	mux.HandleFunc("POST /products/{id}/restore-stock", telemetry.WithHTTPRoute(handler.HandleRestoreStock))
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      otelhttp.NewHandler(mux, "products"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting product service", "port", port)
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
