package ledger

import (
	"context"

	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
)

// Repository persists debts and settlements.
type Repository interface {
	// LockTechnician serialises work on one technician's debt set until the
	// transaction ends. It is always the first lock an operation takes.
	LockTechnician(ctx context.Context, technicianID string) error

	CreateDebts(ctx context.Context, debts []*Debt) error
	GetDebt(ctx context.Context, debtID id.ID) (*Debt, error)
	// GetDebtsForUpdate locks debts in ascending ID order. Missing IDs are NotFound.
	GetDebtsForUpdate(ctx context.Context, debtIDs []id.ID) ([]*Debt, error)
	// OpenDebtsForUnit reads, without locking, the open debts referencing the unit.
	OpenDebtsForUnit(ctx context.Context, unitID id.ID) ([]*Debt, error)
	UpdateDebt(ctx context.Context, debt *Debt) error
	ListDebts(ctx context.Context, filter DebtFilter) ([]*Debt, error)

	// OutstandingDebt sums current_debt_value over open debts.
	OutstandingDebt(ctx context.Context, technicianID string) (types.Money, error)

	CreateSettlement(ctx context.Context, s *Settlement) error
	GetSettlement(ctx context.Context, settlementID id.ID) (*Settlement, error)
	ListSettlements(ctx context.Context, filter SettlementFilter) ([]*Settlement, error)
}

// DebtFilter narrows ListDebts.
type DebtFilter struct {
	TechnicianID  *string
	AssetID       *id.ID
	TrackedUnitID *id.ID
	CheckoutID    *id.ID
	Statuses      []DebtStatus
	Limit         int
	Offset        int
}

// SettlementFilter narrows ListSettlements.
type SettlementFilter struct {
	TechnicianID *string
	Limit        int
	Offset       int
}
