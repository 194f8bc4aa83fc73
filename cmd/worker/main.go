// Package main is the entry point for the ispledger background worker.
// It relays committed ledger events from sys_outbox to Redis pub/sub.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"

	"ispledger/internal/infrastructure/config"
	"ispledger/internal/infrastructure/messaging"
	"ispledger/internal/infrastructure/metrics"
	"ispledger/internal/infrastructure/storage/postgres"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting ispledger worker", "channel", cfg.Worker.Channel, "batch_size", cfg.Worker.BatchSize)

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = 5
	poolCfg.ApplicationName = cfg.App.Name + "-worker"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool, postgres.WithStatementTimeout(cfg.Database.StatementTimeout))

	rdb, err := messaging.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer func() { _ = rdb.Close() }()

	publisher := messaging.NewRedisPublisher(rdb, cfg.Worker.Channel, cfg.Worker.DedupTTL)
	relay := postgres.NewOutboxRelay(txManager, cfg.Worker.BatchSize, publisher, metrics.New())

	worker := NewWorker(
		relay,
		postgres.NewIdempotencyStore(txManager, cfg.Idempotency.TTL),
		redisLocker{client: redislock.New(rdb)},
		log,
		workerSettings{
			PollInterval:         cfg.Worker.PollInterval,
			HousekeepingInterval: cfg.Worker.HousekeepingInterval,
			LockTTL:              cfg.Worker.LockTTL,
			OutboxRetention:      cfg.Worker.OutboxRetention,
		},
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}
