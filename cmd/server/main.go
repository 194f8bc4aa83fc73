// Package main is the entry point for the ispledger HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ispledger/internal/domain"
	"ispledger/internal/domain/auth"
	httpv1 "ispledger/internal/infrastructure/http/v1"
	"ispledger/internal/infrastructure/http/v1/handlers"
	"ispledger/internal/infrastructure/http/v1/middleware"
	"ispledger/internal/infrastructure/config"
	"ispledger/internal/infrastructure/metrics"
	"ispledger/internal/infrastructure/numerator"
	"ispledger/internal/infrastructure/storage/postgres"
	"ispledger/internal/infrastructure/storage/postgres/ledger_repo"
	"ispledger/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.App.IsDevelopment(),
		OutputPaths: cfg.Log.Output,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting ispledger server", "env", cfg.App.Env)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	poolCfg.ApplicationName = cfg.App.Name
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool, postgres.WithStatementTimeout(cfg.Database.StatementTimeout))

	// --- Domain ---
	policy, err := cfg.Ledger.Policy()
	if err != nil {
		log.Fatalw("invalid ledger policy", "error", err)
	}
	rule, err := cfg.Ledger.Rule()
	if err != nil {
		log.Fatalw("invalid approval rule", "error", err)
	}
	auditor, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}
	numeratorService := numerator.NewWithTx(
		func(ctx context.Context) numerator.Querier { return txManager.GetQuerier(ctx) },
		txManager.Pool(),
	)

	services := domain.NewServices(domain.Config{
		Repos:     ledger_repo.NewRepositories(txManager),
		TxManager: txManager,
		Numerator: numeratorService,
		Notifier:  postgres.NewOutboxNotifier(txManager),
		Audit:     auditor,
		Policy:    policy,
		Rule:      rule,
	})
	log.Infow("ledger services initialized",
		"default_debt_limit", policy.DefaultLimit.String(),
		"approval_rule", rule != nil,
	)

	// --- HTTP ---
	jwtConfig := auth.DefaultJWTConfig(cfg.JWT.Secret)
	if cfg.JWT.Issuer != "" {
		jwtConfig.Issuer = cfg.JWT.Issuer
	}

	var idempotency middleware.IdempotencyStore
	if cfg.Idempotency.Enabled {
		idempotency = postgres.NewIdempotencyStore(txManager, cfg.Idempotency.TTL)
	}

	router := httpv1.NewRouter(httpv1.RouterConfig{
		Logger:       log,
		JWTValidator: auth.NewJWTService(jwtConfig),
		Services:     services,
		Idempotency:  idempotency,
		Metrics:      metrics.New(),
		Readiness:    map[string]handlers.ReadinessChecker{"postgres": pool},
		Debug:        cfg.App.IsDevelopment(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	pool.LogStats(shutdownCtx)

	log.Info("server stopped")
}
