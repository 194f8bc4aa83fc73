// Package audit defines how ledger services record state changes.
//
// Entries are written inside the caller's unit of work, so a rolled-back
// operation leaves no audit trail behind.
package audit

import (
	"context"

	"ispledger/internal/core/id"
)

// Action is the audited operation.
type Action string

const (
	ActionCreate     Action = "create"
	ActionTransition Action = "transition"
	ActionReserve    Action = "reserve"
	ActionRelease    Action = "release"
	ActionReceive    Action = "receive"
	ActionReduce     Action = "reduce"
	ActionSettle     Action = "settle"
	ActionWriteOff   Action = "write_off"
	ActionCorrect    Action = "correct"
)

// Recorder appends audit entries.
type Recorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// Nop discards entries.
type Nop struct{}

// LogChange implements Recorder.
func (Nop) LogChange(context.Context, string, id.ID, Action, map[string]any) error { return nil }

// Change builds a before/after pair for one field.
func Change(before, after any) map[string]any {
	return map[string]any{"old": before, "new": after}
}
