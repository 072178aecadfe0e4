package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/artattoo/payments-relay/internal/backend"
	"github.com/artattoo/payments-relay/internal/config"
	"github.com/artattoo/payments-relay/internal/handler"
	"github.com/artattoo/payments-relay/internal/logging"
	"github.com/artattoo/payments-relay/internal/mercadopago"
	"github.com/artattoo/payments-relay/internal/middleware"
	"github.com/artattoo/payments-relay/internal/service"
	"github.com/artattoo/payments-relay/internal/signature"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("payments-relay", cfg.LogLevel, cfg.AppEnv)

	clientTimeout := time.Duration(cfg.HTTPClientTimeoutS) * time.Second
	provider := mercadopago.NewClient(cfg.MercadoPagoBaseURL, cfg.AccessToken, clientTimeout)
	appointments := backend.NewClient(cfg.BackendBase, cfg.BackendWebhookToken, clientTimeout)

	checkout := service.NewCheckoutService(provider, appointments, cfg.PublicBase)
	confirm := service.NewConfirmService(provider, appointments)
	notifications := service.NewNotificationService(provider, appointments)

	payments := handler.NewPaymentHandler(checkout, confirm)
	webhook := handler.NewWebhookHandler(signature.NewVerifier(cfg.WebhookSecret), notifications)

	r := mux.NewRouter()
	r.Use(middleware.Tracing, middleware.Logging, middleware.Recovery, middleware.Metrics)

	r.HandleFunc("/payments/create", payments.CreatePayment).Methods(http.MethodPost)
	r.HandleFunc("/payments/confirm", payments.ConfirmPayment).Methods(http.MethodPost)
	r.HandleFunc("/webhook/mercadopago", webhook.ReceiveMercadoPago).Methods(http.MethodPost)
	r.HandleFunc("/health", handler.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// The checkout runs inside a mobile webview; the relay stays fully open.
	chain := cors.AllowAll().Handler(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chain,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
