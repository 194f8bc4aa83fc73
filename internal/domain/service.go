package domain

import (
	"ispledger/internal/core/numerator"
	"ispledger/internal/core/tx"
	"ispledger/internal/domain/audit"
	"ispledger/internal/domain/checkout"
	"ispledger/internal/domain/debtpolicy"
	"ispledger/internal/domain/installation"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/domain/maintenance"
	"ispledger/internal/domain/notify"
)

// Config wires the services together.
type Config struct {
	Repos     Repositories
	TxManager tx.Manager
	Numerator numerator.Generator
	// Notifier receives post-commit events. Optional.
	Notifier notify.Notifier
	// Audit records state changes. Optional.
	Audit  audit.Recorder
	Policy debtpolicy.Config
	// Rule replaces the default approval verdict. Optional.
	Rule *debtpolicy.Rule
}

// Services are the ledger's operations.
type Services struct {
	Inventory    *inventory.Service
	Ledger       *ledger.Service
	Policy       *debtpolicy.Policy
	Checkout     *checkout.Service
	Installation *installation.Service
	Maintenance  *maintenance.Service
}

// NewServices builds every service over the given storage.
func NewServices(cfg Config) *Services {
	inv := inventory.NewService(cfg.Repos.Inventory, cfg.TxManager, cfg.Audit)
	led := ledger.NewService(cfg.Repos.Ledger, inv, cfg.TxManager, cfg.Numerator, cfg.Notifier, cfg.Audit)

	var opts []debtpolicy.Option
	if cfg.Repos.Limits != nil {
		opts = append(opts, debtpolicy.WithLimitProvider(cfg.Repos.Limits))
	}
	if cfg.Rule != nil {
		opts = append(opts, debtpolicy.WithRule(cfg.Rule))
	}
	policy := debtpolicy.New(cfg.Policy, led, opts...)

	return &Services{
		Inventory:    inv,
		Ledger:       led,
		Policy:       policy,
		Checkout:     checkout.NewService(cfg.Repos.Checkouts, inv, led, policy, cfg.TxManager, cfg.Numerator, cfg.Notifier),
		Installation: installation.NewService(cfg.Repos.Installations, inv, led, cfg.TxManager, cfg.Notifier, cfg.Audit),
		Maintenance:  maintenance.NewService(cfg.Repos.Maintenance, inv, led, cfg.TxManager, cfg.Notifier),
	}
}
