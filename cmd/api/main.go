package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/brisastore/checkout/internal/checkout"
	"github.com/brisastore/checkout/internal/config"
	"github.com/brisastore/checkout/internal/domain"
	"github.com/brisastore/checkout/internal/gateway"
	"github.com/brisastore/checkout/internal/handler"
	"github.com/brisastore/checkout/internal/logging"
	"github.com/brisastore/checkout/internal/methods"
	"github.com/brisastore/checkout/internal/middleware"
	"github.com/brisastore/checkout/internal/repository"
	"github.com/brisastore/checkout/internal/tokenizer"
	"github.com/brisastore/checkout/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("checkout-api", cfg.LogLevel, cfg.AppEnv)

	ctx := context.Background()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	attempts := repository.NewPaymentAttemptRepository(db)
	statusEvents := repository.NewStatusEventRepository(db)

	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL(), cfg.GatewayAccessToken)
	tokenizerClient := tokenizer.NewClient(cfg.GatewayBaseURL(), cfg.GatewayPublicKey)

	registry, err := methods.Load(ctx, gatewayClient, cfg.MaxInstallments)
	if err != nil {
		slog.Error("failed to load payment methods", "error", err)
		os.Exit(1)
	}

	// The tracker's terminal notifications resolve pending sessions; the
	// orchestrator exists after the tracker, so the hook closes over it.
	var orchestrator *checkout.Orchestrator
	statusTracker := tracker.New(logger, func(paymentID string, status domain.PaymentStatus, detail string) {
		orchestrator.ResolvePending(paymentID, status, detail)
	})

	orchestrator = checkout.NewOrchestrator(
		registry,
		checkout.TokenizerMounter{Client: tokenizerClient},
		gatewayClient,
		statusTracker,
		attempts,
		checkout.Config{
			PixDiscountPct: cfg.PixDiscountPct,
			PixExpiry:      time.Duration(cfg.PixExpirySeconds) * time.Second,
			BoletoExpiry:   time.Duration(cfg.BoletoExpiryDays) * 24 * time.Hour,
		},
		func(sessionID uuid.UUID, orderID string, status domain.PaymentStatus) {
			slog.Info("checkout resolved", "session_id", sessionID, "order_id", orderID, "status", status)
		},
	)

	checkoutHandler := handler.NewCheckoutHandler(orchestrator)
	methodsHandler := handler.NewMethodsHandler(registry)
	statusHandler := handler.NewStatusHandler(statusTracker, attempts)
	webhookHandler := handler.NewWebhookHandler(statusEvents, statusTracker, cfg.WebhookSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)

	mux.HandleFunc("GET /api/v1/payment-methods", methodsHandler.ListMethods)
	mux.HandleFunc("GET /api/v1/payment-methods/{id}/installments", methodsHandler.ListInstallments)

	mux.HandleFunc("POST /api/v1/checkout/sessions", checkoutHandler.CreateSession)
	mux.HandleFunc("GET /api/v1/checkout/sessions/{id}", checkoutHandler.GetSession)
	mux.HandleFunc("POST /api/v1/checkout/sessions/{id}/method", checkoutHandler.SelectMethod)
	mux.HandleFunc("PUT /api/v1/checkout/sessions/{id}/payer", checkoutHandler.UpdatePayer)
	mux.HandleFunc("POST /api/v1/checkout/sessions/{id}/submit", checkoutHandler.Submit)
	mux.HandleFunc("POST /api/v1/checkout/sessions/{id}/cancel", checkoutHandler.Cancel)

	mux.HandleFunc("GET /api/v1/payments/{id}/status", statusHandler.GetPaymentStatus)
	mux.HandleFunc("GET /api/v1/orders/{id}/attempts", statusHandler.ListOrderAttempts)

	mux.HandleFunc("POST /webhooks/gateway", webhookHandler.ReceiveGatewayNotification)

	var root http.Handler = mux
	root = middleware.Logging(root)
	root = middleware.Recovery(root)
	root = middleware.Tracing(root)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("failed to write health response", "error", err)
	}
}
