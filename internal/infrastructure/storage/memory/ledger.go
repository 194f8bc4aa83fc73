package memory

import (
	"context"
	"slices"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/ledger"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct{ s *Store }

var _ ledger.Repository = (*LedgerRepo)(nil)

// LockTechnician is a no-op: the store mutex already serialises transactions.
func (r *LedgerRepo) LockTechnician(context.Context, string) error { return nil }

func (r *LedgerRepo) CreateDebts(ctx context.Context, debts []*ledger.Debt) error {
	return r.s.with(ctx, func(st *state) error {
		for _, d := range debts {
			if _, ok := st.debts[d.ID]; ok {
				return apperror.NewDuplicate("debt", "id", d.ID.String())
			}
			st.debts[d.ID] = clone(d)
		}
		return nil
	})
}

func (r *LedgerRepo) GetDebt(ctx context.Context, debtID id.ID) (*ledger.Debt, error) {
	var out *ledger.Debt
	err := r.s.with(ctx, func(st *state) error {
		d, ok := st.debts[debtID]
		if !ok {
			return apperror.NewNotFound("debt", debtID)
		}
		out = clone(d)
		return nil
	})
	return out, err
}

func (r *LedgerRepo) GetDebtsForUpdate(ctx context.Context, debtIDs []id.ID) ([]*ledger.Debt, error) {
	var out []*ledger.Debt
	err := r.s.with(ctx, func(st *state) error {
		for _, debtID := range id.SortedUnique(debtIDs) {
			d, ok := st.debts[debtID]
			if !ok {
				return apperror.NewNotFound("debt", debtID)
			}
			out = append(out, clone(d))
		}
		return nil
	})
	return out, err
}

func (r *LedgerRepo) OpenDebtsForUnit(ctx context.Context, unitID id.ID) ([]*ledger.Debt, error) {
	return r.ListDebts(ctx, ledger.DebtFilter{TrackedUnitID: &unitID, Statuses: ledger.OpenStatuses})
}

func (r *LedgerRepo) UpdateDebt(ctx context.Context, d *ledger.Debt) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.debts[d.ID]; !ok {
			return apperror.NewNotFound("debt", d.ID)
		}
		st.debts[d.ID] = clone(d)
		return nil
	})
}

func (r *LedgerRepo) ListDebts(ctx context.Context, f ledger.DebtFilter) ([]*ledger.Debt, error) {
	var out []*ledger.Debt
	err := r.s.with(ctx, func(st *state) error {
		for _, d := range st.debts {
			if f.TechnicianID != nil && d.TechnicianID != *f.TechnicianID {
				continue
			}
			if f.AssetID != nil && d.AssetID != *f.AssetID {
				continue
			}
			if f.TrackedUnitID != nil && (d.TrackedUnitID == nil || *d.TrackedUnitID != *f.TrackedUnitID) {
				continue
			}
			if f.CheckoutID != nil && (d.CheckoutID == nil || *d.CheckoutID != *f.CheckoutID) {
				continue
			}
			if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, d.Status) {
				continue
			}
			out = append(out, clone(d))
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *ledger.Debt) int { return id.Compare(a.ID, b.ID) })
	return page(out, f.Limit, f.Offset), err
}

func (r *LedgerRepo) OutstandingDebt(ctx context.Context, technicianID string) (types.Money, error) {
	total := types.Zero()
	err := r.s.with(ctx, func(st *state) error {
		for _, d := range st.debts {
			if d.TechnicianID == technicianID && d.Status.IsOpen() {
				total = total.Add(d.CurrentDebtValue)
			}
		}
		return nil
	})
	return total, err
}

func (r *LedgerRepo) CreateSettlement(ctx context.Context, s *ledger.Settlement) error {
	return r.s.with(ctx, func(st *state) error {
		c := clone(s)
		c.Lines = slices.Clone(s.Lines)
		st.settlements[s.ID] = c
		return nil
	})
}

func (r *LedgerRepo) GetSettlement(ctx context.Context, settlementID id.ID) (*ledger.Settlement, error) {
	var out *ledger.Settlement
	err := r.s.with(ctx, func(st *state) error {
		s, ok := st.settlements[settlementID]
		if !ok {
			return apperror.NewNotFound("settlement", settlementID)
		}
		out = clone(s)
		out.Lines = slices.Clone(s.Lines)
		return nil
	})
	return out, err
}

func (r *LedgerRepo) ListSettlements(ctx context.Context, f ledger.SettlementFilter) ([]*ledger.Settlement, error) {
	var out []*ledger.Settlement
	err := r.s.with(ctx, func(st *state) error {
		for _, s := range st.settlements {
			if f.TechnicianID != nil && s.TechnicianID != *f.TechnicianID {
				continue
			}
			c := clone(s)
			c.Lines = slices.Clone(s.Lines)
			out = append(out, c)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *ledger.Settlement) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return page(out, f.Limit, f.Offset), err
}
