package memory

import (
	"context"
	"slices"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/domain/maintenance"
)

// MaintenanceRepo implements maintenance.Repository.
type MaintenanceRepo struct{ s *Store }

var _ maintenance.Repository = (*MaintenanceRepo)(nil)

func (r *MaintenanceRepo) CreateRepair(ctx context.Context, rep *maintenance.Repair) error {
	return r.s.with(ctx, func(st *state) error {
		st.repairs[rep.ID] = clone(rep)
		return nil
	})
}

func (r *MaintenanceRepo) OpenRepairForUpdate(ctx context.Context, unitID id.ID) (*maintenance.Repair, error) {
	var out *maintenance.Repair
	err := r.s.with(ctx, func(st *state) error {
		for _, rep := range st.repairs {
			if rep.TrackedUnitID == unitID && rep.Status == maintenance.RepairInProgress {
				out = clone(rep)
				return nil
			}
		}
		return apperror.NewNotFound("repair", unitID)
	})
	return out, err
}

func (r *MaintenanceRepo) CloseRepair(ctx context.Context, rep *maintenance.Repair) error {
	return r.s.with(ctx, func(st *state) error {
		current, ok := st.repairs[rep.ID]
		if !ok {
			return apperror.NewNotFound("repair", rep.ID)
		}
		if current.Status != maintenance.RepairInProgress {
			return apperror.NewConflict("repair is already closed")
		}
		st.repairs[rep.ID] = clone(rep)
		return nil
	})
}

func (r *MaintenanceRepo) CreateSupplierReturn(ctx context.Context, sr *maintenance.SupplierReturn) error {
	return r.s.with(ctx, func(st *state) error {
		st.supplierReturns[sr.ID] = clone(sr)
		return nil
	})
}

func (r *MaintenanceRepo) OpenSupplierReturnForUpdate(ctx context.Context, unitID id.ID) (*maintenance.SupplierReturn, error) {
	var out *maintenance.SupplierReturn
	err := r.s.with(ctx, func(st *state) error {
		for _, sr := range st.supplierReturns {
			if sr.TrackedUnitID == unitID && sr.Status == maintenance.SupplierSent {
				out = clone(sr)
				return nil
			}
		}
		return apperror.NewNotFound("supplier_return", unitID)
	})
	return out, err
}

func (r *MaintenanceRepo) CloseSupplierReturn(ctx context.Context, sr *maintenance.SupplierReturn) error {
	return r.s.with(ctx, func(st *state) error {
		current, ok := st.supplierReturns[sr.ID]
		if !ok {
			return apperror.NewNotFound("supplier_return", sr.ID)
		}
		if current.Status != maintenance.SupplierSent {
			return apperror.NewConflict("supplier return is already resolved")
		}
		st.supplierReturns[sr.ID] = clone(sr)
		return nil
	})
}

func (r *MaintenanceRepo) CreateWriteOff(ctx context.Context, w *maintenance.WriteOff) error {
	return r.s.with(ctx, func(st *state) error {
		c := clone(w)
		c.DebtIDs = slices.Clone(w.DebtIDs)
		st.writeOffs[w.ID] = c
		return nil
	})
}

func (r *MaintenanceRepo) History(ctx context.Context, unitID id.ID) (*maintenance.History, error) {
	h := &maintenance.History{}
	err := r.s.with(ctx, func(st *state) error {
		for _, rep := range st.repairs {
			if rep.TrackedUnitID == unitID {
				h.Repairs = append(h.Repairs, clone(rep))
			}
		}
		for _, sr := range st.supplierReturns {
			if sr.TrackedUnitID == unitID {
				h.SupplierReturns = append(h.SupplierReturns, clone(sr))
			}
		}
		for _, w := range st.writeOffs {
			if w.TrackedUnitID == unitID {
				c := clone(w)
				c.DebtIDs = slices.Clone(w.DebtIDs)
				h.WriteOffs = append(h.WriteOffs, c)
			}
		}
		return nil
	})
	slices.SortFunc(h.Repairs, func(a, b *maintenance.Repair) int { return a.StartedAt.Compare(b.StartedAt) })
	slices.SortFunc(h.SupplierReturns, func(a, b *maintenance.SupplierReturn) int { return a.SentAt.Compare(b.SentAt) })
	slices.SortFunc(h.WriteOffs, func(a, b *maintenance.WriteOff) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return h, err
}
