package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ispledger/internal/core/id"
	"ispledger/internal/domain/notify"
	"ispledger/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// DefaultMaxRetries is how many delivery attempts a message gets before it
// is marked failed and becomes eligible for the dead-letter table.
const DefaultMaxRetries = 5

// OutboxMessage is one sys_outbox row.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

var _ notify.Notifier = (*OutboxNotifier)(nil)

// OutboxNotifier stores ledger events in sys_outbox for the worker to relay.
// Notify runs after the ledger transaction committed, so each event is
// written by its own single-statement transaction on the pool.
type OutboxNotifier struct {
	txManager *TxManager
}

// NewOutboxNotifier creates an outbox-backed notifier.
func NewOutboxNotifier(txManager *TxManager) *OutboxNotifier {
	return &OutboxNotifier{txManager: txManager}
}

// Notify implements notify.Notifier.
func (n *OutboxNotifier) Notify(ctx context.Context, event notify.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = n.txManager.Pool().Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id.New(), event.AggregateType, event.AggregateID, string(event.Type), payload, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler delivers one message.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// RelayObserver is told about every delivery attempt. Optional.
type RelayObserver interface {
	ObservePublished(eventType string)
	ObserveFailed(eventType string)
}

// OutboxRelay reads pending messages and hands them to a handler.
type OutboxRelay struct {
	txManager  *TxManager
	batchSize  int
	maxRetries int
	handler    OutboxHandler
	observer   RelayObserver
}

// NewOutboxRelay creates a relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler, observer RelayObserver) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager:  txManager,
		batchSize:  batchSize,
		maxRetries: DefaultMaxRetries,
		handler:    handler,
		observer:   observer,
	}
}

// ProcessBatch locks a batch of due messages, delivers them and records the
// outcome. Locked rows are skipped by concurrent relays.
// Returns the number of messages delivered.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)
		rows, err := q.Query(ctx, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, OutboxStatusPending, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		messages, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[OutboxMessage])
		if err != nil {
			return fmt.Errorf("collect outbox messages: %w", err)
		}

		for _, msg := range messages {
			delivered, err := r.processMessage(ctx, q, msg)
			if err != nil {
				return err
			}
			if delivered {
				processed++
			}
		}
		return nil
	})
	return processed, err
}

// processMessage delivers msg and updates its row. A handler error is
// recorded on the row, not returned; only bookkeeping failures are.
func (r *OutboxRelay) processMessage(ctx context.Context, q Querier, msg *OutboxMessage) (bool, error) {
	if handleErr := r.handler.Handle(ctx, msg); handleErr != nil {
		attempt := msg.RetryCount + 1
		status := OutboxStatusPending
		if attempt >= r.maxRetries {
			status = OutboxStatusFailed
		}

		_, err := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = $1, last_error = $2, next_retry_at = $3, status = $4
			WHERE id = $5
		`, attempt, handleErr.Error(), time.Now().UTC().Add(Backoff(attempt)), status, msg.ID)
		if err != nil {
			return false, fmt.Errorf("update failed message: %w", err)
		}

		logger.Warn(ctx, "outbox delivery failed",
			"message_id", msg.ID,
			"event_type", msg.EventType,
			"attempt", attempt,
			"error", handleErr,
		)
		if r.observer != nil {
			r.observer.ObserveFailed(msg.EventType)
		}
		return false, nil
	}

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	if err != nil {
		return false, fmt.Errorf("mark published: %w", err)
	}
	if r.observer != nil {
		r.observer.ObservePublished(msg.EventType)
	}
	return true, nil
}

// Backoff is the delay before retry attempt n: 30s, 1m, 2m, 4m, ... capped at 1h.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := 30 * time.Second
	for i := 1; i < attempt && d < time.Hour; i++ {
		d *= 2
	}
	return min(d, time.Hour)
}

// MoveToDLQ moves failed messages to sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at
		)
		INSERT INTO sys_outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload, retry_count, failure_reason, created_at, failed_at)
		SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at, NOW()
		FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return result.RowsAffected(), nil
}

// PurgePublished deletes published messages older than retention.
func (r *OutboxRelay) PurgePublished(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge published: %w", err)
	}
	return result.RowsAffected(), nil
}
