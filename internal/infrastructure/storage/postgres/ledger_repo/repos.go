package ledger_repo

import (
	"ispledger/internal/domain"
	"ispledger/internal/infrastructure/storage/postgres"
)

// NewRepositories wires every ledger repository onto one transaction manager.
func NewRepositories(txm *postgres.TxManager) domain.Repositories {
	return domain.Repositories{
		Inventory:     NewInventoryRepo(txm),
		Ledger:        NewLedgerRepo(txm),
		Checkouts:     NewCheckoutRepo(txm),
		Installations: NewInstallationRepo(txm),
		Maintenance:   NewMaintenanceRepo(txm),
		Limits:        NewLimitRepo(txm),
	}
}
