package maintenance

import (
	"context"

	"ispledger/internal/core/id"
)

// Repository persists maintenance records.
type Repository interface {
	CreateRepair(ctx context.Context, r *Repair) error
	// OpenRepairForUpdate returns the in-progress repair for a unit, or NotFound.
	OpenRepairForUpdate(ctx context.Context, unitID id.ID) (*Repair, error)
	CloseRepair(ctx context.Context, r *Repair) error

	CreateSupplierReturn(ctx context.Context, r *SupplierReturn) error
	// OpenSupplierReturnForUpdate returns the sent return for a unit, or NotFound.
	OpenSupplierReturnForUpdate(ctx context.Context, unitID id.ID) (*SupplierReturn, error)
	CloseSupplierReturn(ctx context.Context, r *SupplierReturn) error

	CreateWriteOff(ctx context.Context, w *WriteOff) error

	History(ctx context.Context, unitID id.ID) (*History, error)
}
