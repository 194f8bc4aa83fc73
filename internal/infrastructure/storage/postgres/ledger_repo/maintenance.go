package ledger_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"ispledger/internal/core/id"
	"ispledger/internal/domain/maintenance"
	"ispledger/internal/infrastructure/storage/postgres"
)

const (
	repairsTable         = "repairs"
	supplierReturnsTable = "supplier_returns"
	writeOffsTable       = "unit_write_offs"
)

var (
	repairColumns         = postgres.ExtractDBColumns[maintenance.Repair]()
	supplierReturnColumns = postgres.ExtractDBColumns[maintenance.SupplierReturn]()
	writeOffColumns       = postgres.ExtractDBColumns[maintenance.WriteOff]()
)

// MaintenanceRepo implements maintenance.Repository.
type MaintenanceRepo struct {
	base
}

var _ maintenance.Repository = (*MaintenanceRepo)(nil)

func NewMaintenanceRepo(txm *postgres.TxManager) *MaintenanceRepo {
	return &MaintenanceRepo{base: newBase(txm)}
}

func (r *MaintenanceRepo) CreateRepair(ctx context.Context, rep *maintenance.Repair) error {
	return r.insert(ctx, repairsTable, repairColumns, rep, "repair")
}

func (r *MaintenanceRepo) OpenRepairForUpdate(ctx context.Context, unitID id.ID) (*maintenance.Repair, error) {
	q := r.builder.Select(repairColumns...).
		From(repairsTable).
		Where(squirrel.Eq{"tracked_unit_id": unitID, "status": string(maintenance.RepairInProgress)}).
		Suffix("FOR UPDATE")

	var rep maintenance.Repair
	if err := r.get(ctx, &rep, q, "repair", unitID); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *MaintenanceRepo) CloseRepair(ctx context.Context, rep *maintenance.Repair) error {
	q := r.builder.Update(repairsTable).
		Set("status", rep.Status).
		Set("outcome", rep.Outcome).
		Set("cost", rep.Cost).
		Set("notes", rep.Notes).
		Set("closed_by", rep.ClosedBy).
		Set("closed_at", rep.ClosedAt).
		Where(squirrel.Eq{"id": rep.ID, "status": string(maintenance.RepairInProgress)})
	return r.execOne(ctx, q, "repair", rep.ID)
}

func (r *MaintenanceRepo) CreateSupplierReturn(ctx context.Context, ret *maintenance.SupplierReturn) error {
	return r.insert(ctx, supplierReturnsTable, supplierReturnColumns, ret, "supplier_return")
}

func (r *MaintenanceRepo) OpenSupplierReturnForUpdate(ctx context.Context, unitID id.ID) (*maintenance.SupplierReturn, error) {
	q := r.builder.Select(supplierReturnColumns...).
		From(supplierReturnsTable).
		Where(squirrel.Eq{"tracked_unit_id": unitID, "status": string(maintenance.SupplierSent)}).
		Suffix("FOR UPDATE")

	var ret maintenance.SupplierReturn
	if err := r.get(ctx, &ret, q, "supplier_return", unitID); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *MaintenanceRepo) CloseSupplierReturn(ctx context.Context, ret *maintenance.SupplierReturn) error {
	q := r.builder.Update(supplierReturnsTable).
		Set("status", ret.Status).
		Set("replacement_unit_id", ret.ReplacementUnitID).
		Set("outcome", ret.Outcome).
		Set("notes", ret.Notes).
		Set("resolved_by", ret.ResolvedBy).
		Set("resolved_at", ret.ResolvedAt).
		Where(squirrel.Eq{"id": ret.ID, "status": string(maintenance.SupplierSent)})
	return r.execOne(ctx, q, "supplier_return", ret.ID)
}

func (r *MaintenanceRepo) CreateWriteOff(ctx context.Context, w *maintenance.WriteOff) error {
	if w.DebtIDs == nil {
		w.DebtIDs = []id.ID{}
	}
	return r.insert(ctx, writeOffsTable, writeOffColumns, w, "unit_write_off")
}

// History reads the three record kinds for a unit, each oldest first.
func (r *MaintenanceRepo) History(ctx context.Context, unitID id.ID) (*maintenance.History, error) {
	h := &maintenance.History{
		Repairs:         []*maintenance.Repair{},
		SupplierReturns: []*maintenance.SupplierReturn{},
		WriteOffs:       []*maintenance.WriteOff{},
	}
	byUnit := squirrel.Eq{"tracked_unit_id": unitID}

	q := r.builder.Select(repairColumns...).From(repairsTable).Where(byUnit).OrderBy("started_at", "id")
	if err := r.list(ctx, &h.Repairs, q, "repair"); err != nil {
		return nil, err
	}

	q = r.builder.Select(supplierReturnColumns...).From(supplierReturnsTable).Where(byUnit).OrderBy("sent_at", "id")
	if err := r.list(ctx, &h.SupplierReturns, q, "supplier_return"); err != nil {
		return nil, err
	}

	q = r.builder.Select(writeOffColumns...).From(writeOffsTable).Where(byUnit).OrderBy("created_at", "id")
	if err := r.list(ctx, &h.WriteOffs, q, "unit_write_off"); err != nil {
		return nil, err
	}
	return h, nil
}
