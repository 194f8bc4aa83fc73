// Package messaging delivers outbox events to subscribers over Redis pub/sub.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ispledger/internal/infrastructure/storage/postgres"
	"ispledger/pkg/logger"
)

const defaultDedupPrefix = "ispledger:outbox:published:"

// redisClient is the part of *redis.Client the publisher uses.
type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Envelope is what subscribers receive on the channel.
type Envelope struct {
	ID            string          `json:"id"`
	EventType     string          `json:"eventType"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// RedisPublisher implements postgres.OutboxHandler.
//
// Each message is published at most once per dedup window: a SETNX marker
// keyed by the outbox ID is written before PUBLISH and removed again if the
// publish fails, so a relay retry after a crash does not double-deliver.
type RedisPublisher struct {
	client   redisClient
	channel  string
	dedupTTL time.Duration
	prefix   string
}

var _ postgres.OutboxHandler = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(client redisClient, channel string, dedupTTL time.Duration) *RedisPublisher {
	if dedupTTL <= 0 {
		dedupTTL = 24 * time.Hour
	}
	return &RedisPublisher{
		client:   client,
		channel:  channel,
		dedupTTL: dedupTTL,
		prefix:   defaultDedupPrefix,
	}
}

// NewRedisClient opens and pings a client.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return client, nil
}

// Handle publishes one outbox message.
func (p *RedisPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	key := p.prefix + msg.ID.String()

	fresh, err := p.client.SetNX(ctx, key, msg.EventType, p.dedupTTL).Result()
	if err != nil {
		return fmt.Errorf("mark outbox message %s: %w", msg.ID, err)
	}
	if !fresh {
		logger.Debug(ctx, "outbox message already published", "message_id", msg.ID, "event_type", msg.EventType)
		return nil
	}

	body, err := json.Marshal(Envelope{
		ID:            msg.ID.String(),
		EventType:     msg.EventType,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID.String(),
		Payload:       msg.Payload,
		CreatedAt:     msg.CreatedAt,
	})
	if err != nil {
		p.unmark(ctx, key)
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		p.unmark(ctx, key)
		return fmt.Errorf("publish %s to %s: %w", msg.EventType, p.channel, err)
	}
	return nil
}

func (p *RedisPublisher) unmark(ctx context.Context, key string) {
	if err := p.client.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
		logger.Warn(ctx, "failed to clear publish marker", "key", key, "error", err)
	}
}
