package ledger

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/audit"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/notify"
	"ispledger/pkg/logger"
)

// ReturnLine returns part or all of one debt.
type ReturnLine struct {
	DebtID   id.ID
	Quantity types.Quantity
	// Condition is the unit's physical state on return; nil means available.
	// Only tracked units may come back in another condition.
	Condition *inventory.UnitStatus
}

// ReturnRequest hands assets back from a technician to a warehouse.
type ReturnRequest struct {
	TechnicianID string
	WarehouseID  id.ID
	Lines        []ReturnLine
}

// ReturnResult lists the updated debts.
type ReturnResult struct {
	Debts         []*Debt     `json:"debts"`
	ValueReturned types.Money `json:"valueReturned"`
}

func (r ReturnRequest) validate() error {
	if r.TechnicianID == "" {
		return apperror.NewValidation("technician is required").WithDetail("field", "technicianId")
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	seen := make(map[id.ID]bool, len(r.Lines))
	for i, l := range r.Lines {
		if !l.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").WithDetail("line", i)
		}
		if l.Condition != nil && !slices.Contains(inventory.ReturnConditions, *l.Condition) {
			return apperror.NewValidation("invalid return condition").
				WithDetail("line", i).
				WithDetail("value", string(*l.Condition))
		}
		if seen[l.DebtID] {
			return apperror.NewValidation("debt listed twice").WithDetail("debtId", l.DebtID.String())
		}
		seen[l.DebtID] = true
	}
	return nil
}

// Return reduces each named debt and puts the assets back: tracked units
// move to the destination warehouse in the stated condition, bulk quantity
// is released to the asset. All lines commit together or not at all.
func (s *Service) Return(ctx context.Context, req ReturnRequest) (*ReturnResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Return", trace.WithAttributes(
		attribute.String("technician_id", req.TechnicianID),
		attribute.Int("lines", len(req.Lines)),
	))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	result := &ReturnResult{ValueReturned: types.Zero()}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.LockTechnician(ctx, req.TechnicianID); err != nil {
			return err
		}

		ids := make([]id.ID, 0, len(req.Lines))
		for _, l := range req.Lines {
			ids = append(ids, l.DebtID)
		}
		locked, err := s.repo.GetDebtsForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[id.ID]*Debt, len(locked))
		for _, d := range locked {
			byID[d.ID] = d
		}

		// Every line is checked before anything is mutated.
		var unitIDs, assetIDs []id.ID
		for _, l := range req.Lines {
			d := byID[l.DebtID]
			if err := checkReturnLine(d, l, req.TechnicianID); err != nil {
				return err
			}
			if d.TrackedUnitID != nil {
				unitIDs = append(unitIDs, *d.TrackedUnitID)
			} else {
				assetIDs = append(assetIDs, d.AssetID)
			}
		}
		if err := s.lockUnitsThenAssets(ctx, unitIDs, assetIDs); err != nil {
			return err
		}

		for _, l := range req.Lines {
			d := byID[l.DebtID]
			qty := l.Quantity.Min(d.CurrentDebtQuantity)
			result.ValueReturned = result.ValueReturned.Add(qty.Value(d.UnitPrice))

			if err := s.save(ctx, d, audit.ActionReduce, func() error { return d.Reduce(qty) }); err != nil {
				return err
			}

			if d.TrackedUnitID != nil {
				if err := s.returnUnit(ctx, *d.TrackedUnitID, l.Condition, req.WarehouseID); err != nil {
					return err
				}
			} else if _, err := s.inventory.Release(ctx, d.AssetID, qty); err != nil {
				return err
			}
			result.Debts = append(result.Debts, d)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "debts returned",
		"technician_id", req.TechnicianID,
		"warehouse_id", req.WarehouseID,
		"lines", len(result.Debts),
		"value", result.ValueReturned,
	)
	event := notify.NewEvent(notify.EventDebtReturned, entityDebt, result.Debts[0].ID).
		ForTechnician(req.TechnicianID)
	for _, d := range result.Debts {
		event = event.With(entityDebt, d.ID)
	}
	notify.Dispatch(ctx, s.notifier, event)
	return result, nil
}

func checkReturnLine(d *Debt, l ReturnLine, technicianID string) error {
	if err := checkReturnable(d, technicianID); err != nil {
		return err
	}
	if l.Quantity > d.CurrentDebtQuantity+types.QuantityEpsilon {
		return apperror.NewOverReturn(d.ID, l.Quantity.String(), d.CurrentDebtQuantity.String())
	}
	if d.TrackedUnitID == nil {
		if l.Condition != nil && *l.Condition != inventory.UnitAvailable {
			return apperror.NewValidation("only tracked units can be returned in a non-available condition").
				WithDetail("debtId", d.ID.String())
		}
		return nil
	}
	// A unit, or a whole reel, comes back in one piece.
	if (d.CurrentDebtQuantity - l.Quantity).Abs() > types.QuantityEpsilon {
		msg := "tracked units are returned whole"
		if d.LengthDenominated {
			msg = "cable reels are returned whole"
		}
		return apperror.NewValidation(msg).
			WithDetail("debtId", d.ID.String()).
			WithDetail("remaining", d.CurrentDebtQuantity.String())
	}
	return nil
}

// lockUnitsThenAssets takes row locks in the global order: units by ID, then assets by ID.
func (s *Service) lockUnitsThenAssets(ctx context.Context, unitIDs, assetIDs []id.ID) error {
	for _, uid := range id.SortedUnique(unitIDs) {
		if _, err := s.inventory.GetUnitForUpdate(ctx, uid); err != nil {
			return err
		}
	}
	for _, aid := range id.SortedUnique(assetIDs) {
		if _, err := s.inventory.GetAssetForUpdate(ctx, aid); err != nil {
			return err
		}
	}
	return nil
}

// returnUnit books a tracked unit back. Loaned units take the stated
// condition; units already reported damaged or lost keep their status and
// only change location.
func (s *Service) returnUnit(ctx context.Context, unitID id.ID, condition *inventory.UnitStatus, warehouseID id.ID) error {
	cond := inventory.UnitAvailable
	if condition != nil {
		cond = *condition
	}
	loc := inventory.AtWarehouse(warehouseID)
	if cond == inventory.UnitLost {
		loc = inventory.InField()
	}

	unit, err := s.inventory.GetUnitForUpdate(ctx, unitID)
	if err != nil {
		return err
	}

	switch unit.Status {
	case inventory.UnitLoaned:
		_, err = s.inventory.Transition(ctx, unitID, []inventory.UnitStatus{inventory.UnitLoaned}, cond, loc)
	case inventory.UnitDamaged, inventory.UnitLost:
		if cond == inventory.UnitLost {
			return nil
		}
		_, err = s.inventory.Relocate(ctx, unitID, []inventory.UnitStatus{inventory.UnitDamaged, inventory.UnitLost}, loc)
	default:
		err = apperror.NewAssetNotAvailable(unitID.String(), string(unit.Status))
	}
	return err
}
