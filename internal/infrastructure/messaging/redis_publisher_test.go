package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ispledger/internal/core/id"
	"ispledger/internal/infrastructure/storage/postgres"
)

type fakeRedis struct {
	keys       map[string]bool
	published  [][]byte
	publishErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]bool)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ any, _ time.Duration) *redis.BoolCmd {
	if f.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Publish(_ context.Context, _ string, message any) *redis.IntCmd {
	if f.publishErr != nil {
		return redis.NewIntResult(0, f.publishErr)
	}
	f.published = append(f.published, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.keys, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func outboxMessage() *postgres.OutboxMessage {
	return &postgres.OutboxMessage{
		ID:            id.New(),
		AggregateType: "checkout",
		AggregateID:   id.New(),
		EventType:     "checkout.created",
		Payload:       []byte(`{"type":"checkout.created"}`),
		CreatedAt:     time.Now().UTC(),
	}
}

func TestRedisPublisher_PublishesOnce(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	pub := NewRedisPublisher(rdb, "ledger.events", time.Hour)
	msg := outboxMessage()

	require.NoError(t, pub.Handle(ctx, msg))
	require.NoError(t, pub.Handle(ctx, msg))
	require.Len(t, rdb.published, 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(rdb.published[0], &env))
	assert.Equal(t, msg.ID.String(), env.ID)
	assert.Equal(t, "checkout.created", env.EventType)
	assert.JSONEq(t, `{"type":"checkout.created"}`, string(env.Payload))
}

func TestRedisPublisher_FailureAllowsRetry(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	rdb.publishErr = errors.New("connection refused")
	pub := NewRedisPublisher(rdb, "ledger.events", 0)
	msg := outboxMessage()

	assert.Error(t, pub.Handle(ctx, msg))
	assert.Empty(t, rdb.keys, "marker is cleared")

	rdb.publishErr = nil
	require.NoError(t, pub.Handle(ctx, msg))
	assert.Len(t, rdb.published, 1)
}
