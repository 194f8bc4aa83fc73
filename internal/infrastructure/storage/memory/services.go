package memory

import (
	"ispledger/internal/core/numerator"
	"ispledger/internal/domain"
	"ispledger/internal/domain/debtpolicy"
	"ispledger/internal/domain/notify"
)

// Repositories returns every repository backed by the store.
func (s *Store) Repositories() domain.Repositories {
	return domain.Repositories{
		Inventory:     s.Inventory(),
		Ledger:        s.Ledger(),
		Checkouts:     s.Checkouts(),
		Installations: s.Installations(),
		Maintenance:   s.Maintenance(),
		Limits:        s.Limits(),
	}
}

// NewServices wires the ledger services over a fresh store, recording
// notifications in rec.
func NewServices(policy debtpolicy.Config, rec *notify.Recorder) (*domain.Services, *Store) {
	store := New()
	var notifier notify.Notifier
	if rec != nil {
		notifier = rec
	}
	svc := domain.NewServices(domain.Config{
		Repos:     store.Repositories(),
		TxManager: store,
		Numerator: &numerator.MockGenerator{},
		Notifier:  notifier,
		Audit:     store.Audit(),
		Policy:    policy,
	})
	return svc, store
}
