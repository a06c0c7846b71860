package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/blackdoglabs/pulse/internal/auth"
	corecfg "github.com/blackdoglabs/pulse/internal/core/config"
	"github.com/blackdoglabs/pulse/internal/core/storage"
	"github.com/blackdoglabs/pulse/internal/core/storage/memory"
	"github.com/blackdoglabs/pulse/internal/core/storage/postgres"
	redisledger "github.com/blackdoglabs/pulse/internal/core/storage/redis"
	"github.com/blackdoglabs/pulse/internal/ingestion"
	"github.com/blackdoglabs/pulse/internal/metrics"
	"github.com/blackdoglabs/pulse/internal/migrations"
	"github.com/blackdoglabs/pulse/internal/query"
	"github.com/blackdoglabs/pulse/internal/schema"
	"github.com/blackdoglabs/pulse/internal/server"
)

func main() {
	configPath := flag.String("config", "pulse.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"database", cfg.Database.Type,
		"auth", cfg.Auth.Mode,
		"idempotency", cfg.Idempotency.Backend,
		"schema_validation", cfg.Schema.Enabled)

	// 2. Initialize Storage
	var (
		store  storage.EventStore
		ledger storage.IdempotencyLedger
		db     *sql.DB
	)
	switch cfg.Database.Type {
	case "postgres":
		adapter, err := postgres.NewAdapter(
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
		)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer adapter.Close()
		db = adapter.DB()

		// 2.1. Run Database Migrations
		if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}

		pgLedger, err := postgres.NewLedger(db)
		if err != nil {
			slog.Error("Failed to initialize idempotency ledger", "error", err)
			os.Exit(1)
		}
		defer pgLedger.Close()

		store = adapter
		ledger = pgLedger
	case "memory":
		slog.Warn("Using in-memory storage; events will not survive restarts")
		store = memory.NewStore()
		ledger = memory.NewLedger()
	}

	// 2.2. Optional Redis-backed idempotency ledger
	if cfg.Idempotency.Backend == "redis" {
		ttl, _ := cfg.Idempotency.TTLDuration()
		rl, err := redisledger.NewLedger(cfg.Idempotency.RedisAddr, cfg.Idempotency.RedisDB, ttl)
		if err != nil {
			slog.Error("Failed to initialize redis ledger", "error", err)
			os.Exit(1)
		}
		defer rl.Close()
		ledger = rl
	}

	// 3. Initialize Property-Shape Validation
	var validator *schema.Validator
	if cfg.Schema.Enabled {
		validator = schema.NewValidator(schema.NewRegistry(cfg.Schema.Path))
	} else {
		validator = schema.NewValidator(nil)
	}

	// 4. Initialize Tenant-Scoping Gate
	verifier, err := buildVerifier(cfg)
	if err != nil {
		slog.Error("Failed to initialize credential verifier", "error", err)
		os.Exit(1)
	}

	// 5. Initialize Services
	ingestionSvc := ingestion.NewService(store, ledger, validator, cfg.Server.MaxBodySizeMB)
	querySvc := query.NewService(store)
	metricsSvc := metrics.NewService(metrics.NewAggregator(store))

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), db, cfg.Server.Mode)

	authed := srv.Engine.Group("/", auth.Middleware(verifier), auth.TenantGuard())
	ingestionSvc.RegisterRoutes(authed)
	querySvc.RegisterRoutes(authed)
	metricsSvc.RegisterRoutes(authed)

	// 7. Start
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func buildVerifier(cfg *corecfg.Config) (auth.Verifier, error) {
	switch cfg.Auth.Mode {
	case "jwt":
		skew, err := cfg.Auth.ClockSkewDuration()
		if err != nil {
			return nil, err
		}
		return auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, skew)
	case "apikey":
		return auth.NewAPIKeyVerifier(cfg.Auth.APIKeys)
	}
	return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
