// Package domain assembles the ledger services from their repositories.
package domain

import (
	"ispledger/internal/domain/checkout"
	"ispledger/internal/domain/debtpolicy"
	"ispledger/internal/domain/installation"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/domain/maintenance"
)

// Repositories is the storage a ledger deployment provides.
type Repositories struct {
	Inventory     inventory.Repository
	Ledger        ledger.Repository
	Checkouts     checkout.Repository
	Installations installation.Repository
	Maintenance   maintenance.Repository
	// Limits is optional; without it every technician gets the default limit.
	Limits debtpolicy.LimitProvider
}
