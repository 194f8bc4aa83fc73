package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ispledger/pkg/logger"
)

type fakeRelay struct {
	batches   []int
	calls     int
	dlqErr    error
	moved     int64
	purged    int64
	retention time.Duration
}

func (r *fakeRelay) ProcessBatch(context.Context) (int, error) {
	r.calls++
	if len(r.batches) == 0 {
		return 0, nil
	}
	n := r.batches[0]
	r.batches = r.batches[1:]
	return n, nil
}

func (r *fakeRelay) MoveToDLQ(context.Context) (int64, error) {
	return r.moved, r.dlqErr
}

func (r *fakeRelay) PurgePublished(_ context.Context, retention time.Duration) (int64, error) {
	r.retention = retention
	return r.purged, nil
}

type fakeCleaner struct{ calls int }

func (c *fakeCleaner) CleanupExpired(context.Context) (int64, error) {
	c.calls++
	return 3, nil
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) Obtain(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if l.held {
		return nil, errLockHeld
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, nil
}

func newTestWorker(r *fakeRelay, c *fakeCleaner, l *fakeLocker) *Worker {
	return NewWorker(r, c, l, logger.NewNop(), workerSettings{
		PollInterval:         time.Second,
		HousekeepingInterval: time.Minute,
		LockTTL:              time.Minute,
		OutboxRetention:      48 * time.Hour,
	})
}

func TestDrainOutbox_StopsOnEmptyBatch(t *testing.T) {
	r := &fakeRelay{batches: []int{100, 100, 7}}
	w := newTestWorker(r, &fakeCleaner{}, &fakeLocker{})

	w.drainOutbox(context.Background())
	assert.Equal(t, 4, r.calls)
}

func TestHousekeep(t *testing.T) {
	t.Run("runs every task under the lock", func(t *testing.T) {
		r := &fakeRelay{moved: 2, purged: 10}
		c := &fakeCleaner{}
		l := &fakeLocker{}
		w := newTestWorker(r, c, l)

		require.NoError(t, w.Housekeep(context.Background()))
		assert.Equal(t, 1, c.calls)
		assert.Equal(t, 48*time.Hour, r.retention)
		assert.Equal(t, 1, l.released)
		assert.False(t, l.held)
	})

	t.Run("skips when another instance holds the lock", func(t *testing.T) {
		c := &fakeCleaner{}
		w := newTestWorker(&fakeRelay{}, c, &fakeLocker{held: true})

		err := w.Housekeep(context.Background())
		assert.ErrorIs(t, err, errLockHeld)
		assert.Zero(t, c.calls)
	})

	t.Run("keeps going after a failed task", func(t *testing.T) {
		r := &fakeRelay{dlqErr: errors.New("relation missing")}
		c := &fakeCleaner{}
		l := &fakeLocker{}
		w := newTestWorker(r, c, l)

		err := w.Housekeep(context.Background())
		assert.ErrorContains(t, err, "relation missing")
		assert.Equal(t, 1, c.calls)
		assert.Equal(t, 1, l.released)
	})
}
