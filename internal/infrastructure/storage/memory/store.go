// Package memory is an in-process implementation of every ledger repository.
//
// Transactions are serialised by a single mutex and rolled back by restoring
// a snapshot taken when the outermost transaction started. Stored records are
// never mutated in place: writes store copies and reads return copies, so a
// snapshot is a shallow copy of the maps. Used by unit tests and the scenario
// suite; production uses the postgres package.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	appctx "ispledger/internal/core/context"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/audit"
	"ispledger/internal/domain/checkout"
	"ispledger/internal/domain/installation"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/domain/maintenance"
)

type txKey struct{}

// Store holds all ledger state.
type Store struct {
	mu   sync.Mutex
	data *state
}

type state struct {
	assets          map[id.ID]*inventory.Asset
	units           map[id.ID]*inventory.TrackedUnit
	debts           map[id.ID]*ledger.Debt
	settlements     map[id.ID]*ledger.Settlement
	checkouts       map[id.ID]*checkout.Checkout
	installed       map[id.ID]*installation.InstalledAsset
	repairs         map[id.ID]*maintenance.Repair
	supplierReturns map[id.ID]*maintenance.SupplierReturn
	writeOffs       map[id.ID]*maintenance.WriteOff
	limits          map[string]types.Money
	audit           []AuditEntry
}

// New creates an empty store.
func New() *Store {
	return &Store{data: &state{
		assets:          make(map[id.ID]*inventory.Asset),
		units:           make(map[id.ID]*inventory.TrackedUnit),
		debts:           make(map[id.ID]*ledger.Debt),
		settlements:     make(map[id.ID]*ledger.Settlement),
		checkouts:       make(map[id.ID]*checkout.Checkout),
		installed:       make(map[id.ID]*installation.InstalledAsset),
		repairs:         make(map[id.ID]*maintenance.Repair),
		supplierReturns: make(map[id.ID]*maintenance.SupplierReturn),
		writeOffs:       make(map[id.ID]*maintenance.WriteOff),
		limits:          make(map[string]types.Money),
	}}
}

func (st *state) snapshot() *state {
	return &state{
		assets:          cloneMap(st.assets),
		units:           cloneMap(st.units),
		debts:           cloneMap(st.debts),
		settlements:     cloneMap(st.settlements),
		checkouts:       cloneMap(st.checkouts),
		installed:       cloneMap(st.installed),
		repairs:         cloneMap(st.repairs),
		supplierReturns: cloneMap(st.supplierReturns),
		writeOffs:       cloneMap(st.writeOffs),
		limits:          cloneMap(st.limits),
		audit:           slices.Clone(st.audit),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// with runs fn against the current state, taking the lock unless ctx already holds it.
func (s *Store) with(ctx context.Context, fn func(st *state) error) error {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.data)
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// --- Accessors ---

// Inventory returns the inventory repository.
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{s: s} }

// Ledger returns the debt ledger repository.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// Checkouts returns the checkout repository.
func (s *Store) Checkouts() *CheckoutRepo { return &CheckoutRepo{s: s} }

// Installations returns the installation repository.
func (s *Store) Installations() *InstallationRepo { return &InstallationRepo{s: s} }

// Maintenance returns the maintenance repository.
func (s *Store) Maintenance() *MaintenanceRepo { return &MaintenanceRepo{s: s} }

// Limits returns the per-technician limit store.
func (s *Store) Limits() *LimitRepo { return &LimitRepo{s: s} }

// Audit returns the audit log.
func (s *Store) Audit() *AuditLog { return &AuditLog{s: s} }

// --- Audit ---

// AuditEntry is one recorded change.
type AuditEntry struct {
	EntityType string
	EntityID   id.ID
	Action     audit.Action
	Changes    map[string]any
	UserID     string
	At         time.Time
}

// AuditLog implements audit.Recorder.
type AuditLog struct{ s *Store }

// LogChange implements audit.Recorder.
func (a *AuditLog) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	return a.s.with(ctx, func(st *state) error {
		st.audit = append(st.audit, AuditEntry{
			EntityType: entityType,
			EntityID:   entityID,
			Action:     action,
			Changes:    changes,
			UserID:     appctx.Actor(ctx),
			At:         time.Now().UTC(),
		})
		return nil
	})
}

// Entries returns entries for one entity, oldest first.
func (a *AuditLog) Entries(ctx context.Context, entityID id.ID) []AuditEntry {
	var out []AuditEntry
	_ = a.s.with(ctx, func(st *state) error {
		for _, e := range st.audit {
			if e.EntityID == entityID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out
}

// --- Limits ---

// LimitRepo implements debtpolicy.LimitProvider.
type LimitRepo struct{ s *Store }

// SetLimit stores a per-technician override.
func (l *LimitRepo) SetLimit(ctx context.Context, technicianID string, limit types.Money) error {
	return l.s.with(ctx, func(st *state) error {
		st.limits[technicianID] = limit
		return nil
	})
}

// LimitOverride implements debtpolicy.LimitProvider.
func (l *LimitRepo) LimitOverride(ctx context.Context, technicianID string) (*types.Money, error) {
	var out *types.Money
	err := l.s.with(ctx, func(st *state) error {
		if v, ok := st.limits[technicianID]; ok {
			out = &v
		}
		return nil
	})
	return out, err
}
