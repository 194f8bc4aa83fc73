// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the Postgres and in-memory
// implementations live in infrastructure/storage.
package tx

import (
	"context"
)

// Manager defines the contract for a unit of work.
//
// Every ledger operation that touches more than one row runs inside exactly one
// RunInTransaction call: either all of its row mutations commit, or none do.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
