package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/thepragmaticdev/meco/internal/adapters/sqlite"
	"github.com/thepragmaticdev/meco/internal/app/services"
	"github.com/thepragmaticdev/meco/internal/billing"
	"github.com/thepragmaticdev/meco/internal/config"
	"github.com/thepragmaticdev/meco/internal/db"
	"github.com/thepragmaticdev/meco/internal/observability"
	"github.com/thepragmaticdev/meco/internal/security/password"
	"github.com/thepragmaticdev/meco/internal/security/token"
	"github.com/thepragmaticdev/meco/internal/server"
	"github.com/thepragmaticdev/meco/internal/server/routes"
	stripewebhook "github.com/thepragmaticdev/meco/internal/webhooks/stripe"
)

func main() {
	log := slog.New(observability.WrapSlogHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOpenTelemetry(ctx, log, observability.OpenTelemetryConfig{
		Enabled:           cfg.Observability.Enabled,
		OTLPEndpoint:      cfg.Observability.OTLPEndpoint,
		OTLPTraceHeaders:  cfg.Observability.OTLPTraceHeaders,
		OTLPMetricHeaders: cfg.Observability.OTLPMetricHeaders,
		ServiceName:       cfg.Observability.ServiceName,
		ServiceVer:        cfg.Observability.ServiceVer,
		Environment:       cfg.Environment,
		SamplingRatio:     cfg.Observability.SamplingRatio,
		MetricsConsole:    cfg.Observability.MetricsConsole,
	})
	if err != nil {
		slog.Error("Failed to set up telemetry", "error", err)
		return
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	store := sqlite.NewStore(database)
	tokens := token.NewProvider(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	hasher := password.NewHasher(password.DefaultParams)

	var billingService *billing.Service
	var provisioner services.CustomerProvisioner
	if cfg.Stripe.SecretKey != "" {
		billingService = billing.NewService(store, billing.NewStripeGateway(cfg.Stripe.SecretKey))
		provisioner = billingService
	} else {
		slog.Warn("No Stripe secret key configured, billing sync disabled")
	}

	accounts := services.NewAccountService(store, hasher, tokens, provisioner, cfg.Auth.TokenTTL)
	keys := services.NewAPIKeyService(store)

	srv := server.New(log)
	srv.Use(routes.Authenticate(tokens))
	srv.RegisterRouter(routes.NewAuthRoutes(accounts))
	srv.RegisterRouter(routes.NewAccountRoutes(accounts))
	srv.RegisterRouter(routes.NewAPIKeyRoutes(keys))
	if billingService != nil {
		srv.RegisterRouter(routes.NewWebhookRoutes(
			stripewebhook.NewHandler(billingService, cfg.Stripe.WebhookSecret)))
	}

	go logDBLatencyStats(log, database)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down server", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Starting server", "port", cfg.Server.Port, "env", cfg.Environment)
	slog.Error("Closing server", "error", srv.Start(addr))
}

func logDBLatencyStats(log *slog.Logger, database *db.Database) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stats := database.TopQueryLatencies(5)
		if len(stats) == 0 {
			continue
		}
		for _, entry := range stats {
			log.Info("db_query_latency",
				"query", entry.Name,
				"count", entry.Count,
				"p50_ms", entry.P50.Milliseconds(),
				"p95_ms", entry.P95.Milliseconds(),
				"max_ms", entry.Max.Milliseconds(),
			)
		}
	}
}
