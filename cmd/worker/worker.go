package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"

	appctx "ispledger/internal/core/context"
	"ispledger/pkg/logger"
)

const housekeepingLockKey = "ispledger:lock:housekeeping"

// errLockHeld means another worker instance owns the housekeeping lock.
var errLockHeld = errors.New("housekeeping lock held elsewhere")

type relay interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
	PurgePublished(ctx context.Context, retention time.Duration) (int64, error)
}

type idempotencyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// locker hands out a cluster-wide lock. release must be called once.
type locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type redisLocker struct {
	client *redislock.Client
}

func (l redisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, errLockHeld
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// Worker relays the outbox on a short interval and runs housekeeping on a
// long one. Relaying is safe to run on every instance because rows are
// claimed with SKIP LOCKED; housekeeping runs on one instance at a time.
type Worker struct {
	relay       relay
	idempotency idempotencyCleaner
	locker      locker
	log         *logger.Logger

	pollInterval         time.Duration
	housekeepingInterval time.Duration
	lockTTL              time.Duration
	retention            time.Duration
}

func NewWorker(r relay, idem idempotencyCleaner, l locker, log *logger.Logger, cfg workerSettings) *Worker {
	return &Worker{
		relay:                r,
		idempotency:          idem,
		locker:               l,
		log:                  log.WithComponent("worker"),
		pollInterval:         cfg.PollInterval,
		housekeepingInterval: cfg.HousekeepingInterval,
		lockTTL:              cfg.LockTTL,
		retention:            cfg.OutboxRetention,
	}
}

type workerSettings struct {
	PollInterval         time.Duration
	HousekeepingInterval time.Duration
	LockTTL              time.Duration
	OutboxRetention      time.Duration
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ctx = logger.WithLogger(ctx, w.log)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.runRelay(ctx)
	}()
	go func() {
		defer wg.Done()
		w.runHousekeeping(ctx)
	}()
	wg.Wait()
}

func (w *Worker) runRelay(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainOutbox(ctx)
		}
	}
}

// drainOutbox processes batches until one comes back empty.
func (w *Worker) drainOutbox(ctx context.Context) {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())
	log := w.log.WithContext(ctx)
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n == 0 {
			return
		}
		log.Debugw("relayed outbox batch", "count", n)
	}
}

func (w *Worker) runHousekeeping(ctx context.Context) {
	ticker := time.NewTicker(w.housekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Housekeep(ctx); err != nil && !errors.Is(err, errLockHeld) {
				w.log.Errorw("housekeeping failed", "error", err)
			}
		}
	}
}

// Housekeep moves dead messages to the DLQ, purges delivered ones and drops
// expired idempotency keys, holding the housekeeping lock throughout.
func (w *Worker) Housekeep(ctx context.Context) error {
	release, err := w.locker.Obtain(ctx, housekeepingLockKey, w.lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			w.log.Warnw("failed to release housekeeping lock", "error", err)
		}
	}()

	var errs []error

	if moved, err := w.relay.MoveToDLQ(ctx); err != nil {
		errs = append(errs, err)
	} else if moved > 0 {
		w.log.Warnw("moved failed outbox messages to dead-letter table", "count", moved)
	}

	if purged, err := w.relay.PurgePublished(ctx, w.retention); err != nil {
		errs = append(errs, err)
	} else if purged > 0 {
		w.log.Infow("purged published outbox messages", "count", purged)
	}

	if removed, err := w.idempotency.CleanupExpired(ctx); err != nil {
		errs = append(errs, err)
	} else if removed > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", removed)
	}

	return errors.Join(errs...)
}
