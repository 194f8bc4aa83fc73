package maintenance

import (
	"context"
	"fmt"
	"slices"
	"time"

	"ispledger/internal/core/apperror"
	appctx "ispledger/internal/core/context"
	"ispledger/internal/core/id"
	"ispledger/internal/core/tx"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/domain/notify"
	"ispledger/pkg/logger"
)

// DebtCloser closes the open debts of a unit that leaves a technician's
// custody through maintenance. LockUnitDebts runs before the unit is locked.
type DebtCloser interface {
	LockUnitDebts(ctx context.Context, unitID id.ID) ([]*ledger.Debt, error)
	WriteOffLocked(ctx context.Context, debts []*ledger.Debt, reason string) error
	RecoverLocked(ctx context.Context, debts []*ledger.Debt) error
}

var (
	repairable     = []inventory.UnitStatus{inventory.UnitDamaged, inventory.UnitLost, inventory.UnitScrap}
	sendable       = []inventory.UnitStatus{inventory.UnitDamaged, inventory.UnitLost, inventory.UnitScrap, inventory.UnitAvailable}
	failedOutcomes = []inventory.UnitStatus{inventory.UnitDamaged, inventory.UnitWrittenOff, inventory.UnitScrap}
)

// Service runs the maintenance state machine.
type Service struct {
	repo      Repository
	inventory *inventory.Service
	debts     DebtCloser
	txManager tx.Manager
	notifier  notify.Notifier
}

// NewService creates a new maintenance service.
func NewService(repo Repository, inv *inventory.Service, debts DebtCloser, txManager tx.Manager, notifier notify.Notifier) *Service {
	return &Service{
		repo:      repo,
		inventory: inv,
		debts:     debts,
		txManager: txManager,
		notifier:  notifier,
	}
}

// unitWork is one maintenance transaction. debts holds the unit's open debts,
// locked before the unit; written and recovered record how they were closed.
type unitWork struct {
	debts     []*ledger.Debt
	written   *WriteOff
	recovered []*ledger.Debt
}

// lockDebts takes the unit's debt locks ahead of any unit or maintenance row.
func (s *Service) lockDebts(ctx context.Context, w *unitWork, unitID id.ID) error {
	debts, err := s.debts.LockUnitDebts(ctx, unitID)
	if err != nil {
		return fmt.Errorf("lock unit debts: %w", err)
	}
	w.debts = debts
	return nil
}

// recoverDebts closes the unit's debts once it is back in stock in working order.
func (s *Service) recoverDebts(ctx context.Context, w *unitWork) error {
	if err := s.debts.RecoverLocked(ctx, w.debts); err != nil {
		return fmt.Errorf("close recovered unit debts: %w", err)
	}
	w.recovered = w.debts
	return nil
}

func (s *Service) run(ctx context.Context, fn func(ctx context.Context, w *unitWork) error) (*unitWork, error) {
	w := &unitWork{}
	if err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, w)
	}); err != nil {
		return nil, err
	}
	if w.written != nil {
		s.announceWriteOff(ctx, w.written)
	}
	if len(w.recovered) > 0 {
		s.announceRecovery(ctx, w.recovered)
	}
	return w, nil
}

// --- Repair ---

// StartRepair moves a damaged, lost or scrapped unit into repair.
func (s *Service) StartRepair(ctx context.Context, unitID id.ID, description string) (*Repair, error) {
	r := &Repair{
		ID:            id.New(),
		TrackedUnitID: unitID,
		Status:        RepairInProgress,
		Description:   optional(description),
		StartedBy:     appctx.Actor(ctx),
		StartedAt:     time.Now().UTC(),
	}
	_, err := s.run(ctx, func(ctx context.Context, _ *unitWork) error {
		if _, err := s.inventory.Transition(ctx, unitID, repairable, inventory.UnitInRepair, inventory.Unchanged()); err != nil {
			return err
		}
		if err := s.repo.CreateRepair(ctx, r); err != nil {
			return fmt.Errorf("create repair: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "repair started", "unit_id", unitID, "repair_id", r.ID)
	return r, nil
}

// CompleteRepair returns a repaired unit to stock at warehouseID and clears
// its damage notes. A debt still open on the unit is closed as returned.
func (s *Service) CompleteRepair(ctx context.Context, unitID, warehouseID id.ID, cost *types.Money, notes string) (*Repair, error) {
	if cost != nil && cost.IsNegative() {
		return nil, apperror.NewValidation("cost cannot be negative").WithDetail("field", "cost")
	}

	var r *Repair
	_, err := s.run(ctx, func(ctx context.Context, w *unitWork) error {
		if err := s.lockDebts(ctx, w, unitID); err != nil {
			return err
		}
		var err error
		if r, err = s.repo.OpenRepairForUpdate(ctx, unitID); err != nil {
			return err
		}
		if _, err := s.inventory.Transition(ctx, unitID,
			[]inventory.UnitStatus{inventory.UnitInRepair}, inventory.UnitAvailable, inventory.AtWarehouse(warehouseID)); err != nil {
			return err
		}
		if err := s.inventory.SetDamageNotes(ctx, unitID, nil); err != nil {
			return err
		}
		if err := s.recoverDebts(ctx, w); err != nil {
			return err
		}
		r.Cost = cost
		return s.closeRepair(ctx, r, RepairCompleted, inventory.UnitAvailable, notes)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "repair completed", "unit_id", unitID, "repair_id", r.ID)
	return r, nil
}

// FailRepair ends a repair with outcome damaged, scrap or written_off.
func (s *Service) FailRepair(ctx context.Context, unitID id.ID, outcome inventory.UnitStatus, notes string) (*Repair, error) {
	if !slices.Contains(failedOutcomes, outcome) {
		return nil, invalidOutcome(outcome)
	}

	var r *Repair
	_, err := s.run(ctx, func(ctx context.Context, w *unitWork) error {
		if outcome == inventory.UnitWrittenOff {
			if err := s.lockDebts(ctx, w, unitID); err != nil {
				return err
			}
		}
		var err error
		if r, err = s.repo.OpenRepairForUpdate(ctx, unitID); err != nil {
			return err
		}
		if _, err := s.inventory.Transition(ctx, unitID,
			[]inventory.UnitStatus{inventory.UnitInRepair}, outcome, inventory.Unchanged()); err != nil {
			return err
		}
		if err := s.closeRepair(ctx, r, RepairFailed, outcome, notes); err != nil {
			return err
		}
		if outcome == inventory.UnitWrittenOff {
			w.written, err = s.recordWriteOff(ctx, w, unitID, inventory.UnitInRepair, withDefault(notes, "repair failed"))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "repair failed", "unit_id", unitID, "repair_id", r.ID, "outcome", outcome)
	return r, nil
}

func (s *Service) closeRepair(ctx context.Context, r *Repair, status RepairStatus, outcome inventory.UnitStatus, notes string) error {
	by, at := appctx.Actor(ctx), time.Now().UTC()
	r.Status = status
	r.Outcome = &outcome
	r.ClosedBy = &by
	r.ClosedAt = &at
	r.Notes = optional(notes)
	if err := s.repo.CloseRepair(ctx, r); err != nil {
		return fmt.Errorf("close repair: %w", err)
	}
	return nil
}

// --- Supplier return ---

// SendToSupplier ships a unit back to its supplier.
func (s *Service) SendToSupplier(ctx context.Context, unitID id.ID, supplierID, reason string) (*SupplierReturn, error) {
	if supplierID == "" {
		return nil, apperror.NewValidation("supplier is required").WithDetail("field", "supplierId")
	}
	r := &SupplierReturn{
		ID:            id.New(),
		TrackedUnitID: unitID,
		SupplierID:    supplierID,
		Status:        SupplierSent,
		Reason:        optional(reason),
		SentBy:        appctx.Actor(ctx),
		SentAt:        time.Now().UTC(),
	}
	_, err := s.run(ctx, func(ctx context.Context, _ *unitWork) error {
		if _, err := s.inventory.Transition(ctx, unitID, sendable,
			inventory.UnitAwaitingReturnToSupplier, inventory.InField()); err != nil {
			return err
		}
		if err := s.repo.CreateSupplierReturn(ctx, r); err != nil {
			return fmt.Errorf("create supplier return: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "unit sent to supplier", "unit_id", unitID, "supplier_id", supplierID)
	return r, nil
}

// ReceiveRequest books the supplier's answer into a warehouse.
type ReceiveRequest struct {
	UnitID      id.ID
	WarehouseID id.ID
	// Replacement, when set, is a brand-new unit from the supplier: it is
	// registered as available and the original unit is written off.
	Replacement *inventory.TrackedUnit
	Notes       string
}

// ReceiveFromSupplier takes back the repaired unit, or a replacement for it.
// Open debts on the original close as returned or written off accordingly.
func (s *Service) ReceiveFromSupplier(ctx context.Context, req ReceiveRequest) (*SupplierReturn, error) {
	var r *SupplierReturn
	_, err := s.run(ctx, func(ctx context.Context, w *unitWork) error {
		if err := s.lockDebts(ctx, w, req.UnitID); err != nil {
			return err
		}
		var err error
		if r, err = s.repo.OpenSupplierReturnForUpdate(ctx, req.UnitID); err != nil {
			return err
		}
		from := []inventory.UnitStatus{inventory.UnitAwaitingReturnToSupplier}

		if req.Replacement == nil {
			if _, err := s.inventory.Transition(ctx, req.UnitID, from,
				inventory.UnitAvailable, inventory.AtWarehouse(req.WarehouseID)); err != nil {
				return err
			}
			if err := s.recoverDebts(ctx, w); err != nil {
				return err
			}
			return s.closeSupplierReturn(ctx, r, SupplierReceived, inventory.UnitAvailable, req.Notes)
		}

		original, err := s.inventory.Transition(ctx, req.UnitID, from, inventory.UnitWrittenOff, inventory.InField())
		if err != nil {
			return err
		}
		if w.written, err = s.recordWriteOff(ctx, w, req.UnitID, inventory.UnitAwaitingReturnToSupplier,
			withDefault(req.Notes, "replaced by supplier")); err != nil {
			return err
		}

		replacement := req.Replacement
		if id.IsNil(replacement.AssetID) {
			replacement.AssetID = original.AssetID
		}
		warehouseID := req.WarehouseID
		replacement.WarehouseID = &warehouseID
		replacement.Status = inventory.UnitAvailable
		if err := s.inventory.RegisterUnit(ctx, replacement); err != nil {
			return err
		}

		r.ReplacementUnitID = &replacement.ID
		return s.closeSupplierReturn(ctx, r, SupplierReplaced, inventory.UnitWrittenOff, req.Notes)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "supplier return received", "unit_id", req.UnitID, "status", r.Status)
	return r, nil
}

// RejectBySupplier books a unit the supplier refused, in outcome damaged,
// scrap or written_off. A warehouse, when given, receives the unit.
func (s *Service) RejectBySupplier(ctx context.Context, unitID id.ID, outcome inventory.UnitStatus, warehouseID *id.ID, notes string) (*SupplierReturn, error) {
	if !slices.Contains(failedOutcomes, outcome) {
		return nil, invalidOutcome(outcome)
	}
	loc := inventory.Unchanged()
	if warehouseID != nil && outcome != inventory.UnitWrittenOff {
		loc = inventory.AtWarehouse(*warehouseID)
	}

	var r *SupplierReturn
	_, err := s.run(ctx, func(ctx context.Context, w *unitWork) error {
		if outcome == inventory.UnitWrittenOff {
			if err := s.lockDebts(ctx, w, unitID); err != nil {
				return err
			}
		}
		var err error
		if r, err = s.repo.OpenSupplierReturnForUpdate(ctx, unitID); err != nil {
			return err
		}
		if _, err := s.inventory.Transition(ctx, unitID,
			[]inventory.UnitStatus{inventory.UnitAwaitingReturnToSupplier}, outcome, loc); err != nil {
			return err
		}
		if err := s.closeSupplierReturn(ctx, r, SupplierRejected, outcome, notes); err != nil {
			return err
		}
		if outcome == inventory.UnitWrittenOff {
			w.written, err = s.recordWriteOff(ctx, w, unitID, inventory.UnitAwaitingReturnToSupplier,
				withDefault(notes, "rejected by supplier"))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "supplier return rejected", "unit_id", unitID, "outcome", outcome)
	return r, nil
}

func (s *Service) closeSupplierReturn(ctx context.Context, r *SupplierReturn, status SupplierReturnStatus, outcome inventory.UnitStatus, notes string) error {
	by, at := appctx.Actor(ctx), time.Now().UTC()
	r.Status = status
	r.Outcome = &outcome
	r.ResolvedBy = &by
	r.ResolvedAt = &at
	r.Notes = optional(notes)
	if err := s.repo.CloseSupplierReturn(ctx, r); err != nil {
		return fmt.Errorf("close supplier return: %w", err)
	}
	return nil
}

// --- Write-off ---

// WriteOffUnit removes a damaged, lost or scrapped unit from inventory for good.
func (s *Service) WriteOffUnit(ctx context.Context, unitID id.ID, reason string) (*WriteOff, error) {
	if reason == "" {
		return nil, apperror.NewValidation("reason is required").WithDetail("field", "reason")
	}

	w, err := s.run(ctx, func(ctx context.Context, w *unitWork) error {
		if err := s.lockDebts(ctx, w, unitID); err != nil {
			return err
		}
		unit, err := s.inventory.GetUnitForUpdate(ctx, unitID)
		if err != nil {
			return err
		}
		previous := unit.Status
		if _, err := s.inventory.Transition(ctx, unitID, repairable, inventory.UnitWrittenOff, inventory.InField()); err != nil {
			return err
		}
		w.written, err = s.recordWriteOff(ctx, w, unitID, previous, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w.written, nil
}

// recordWriteOff is the coordinator step after a unit reaches written_off:
// the debts locked in w are extinguished and the write-off is recorded.
func (s *Service) recordWriteOff(ctx context.Context, w *unitWork, unitID id.ID, previous inventory.UnitStatus, reason string) (*WriteOff, error) {
	debts := w.debts
	if err := s.debts.WriteOffLocked(ctx, debts, reason); err != nil {
		return nil, fmt.Errorf("write off unit debts: %w", err)
	}

	wo := &WriteOff{
		ID:             id.New(),
		TrackedUnitID:  unitID,
		PreviousStatus: previous,
		Reason:         reason,
		DebtIDs:        make([]id.ID, 0, len(debts)),
		RecordedBy:     appctx.Actor(ctx),
		CreatedAt:      time.Now().UTC(),
	}
	for _, d := range debts {
		wo.DebtIDs = append(wo.DebtIDs, d.ID)
	}
	if err := s.repo.CreateWriteOff(ctx, wo); err != nil {
		return nil, fmt.Errorf("create write-off: %w", err)
	}
	return wo, nil
}

func (s *Service) announceWriteOff(ctx context.Context, w *WriteOff) {
	logger.Info(ctx, "unit written off", "unit_id", w.TrackedUnitID, "debts", len(w.DebtIDs))

	events := []notify.Event{
		notify.NewEvent(notify.EventUnitWrittenOff, "tracked_unit", w.TrackedUnitID).With("debt", w.DebtIDs...),
	}
	for _, debtID := range w.DebtIDs {
		events = append(events, notify.NewEvent(notify.EventDebtWrittenOff, "debt", debtID).
			With("tracked_unit", w.TrackedUnitID))
	}
	notify.Dispatch(ctx, s.notifier, events...)
}

func (s *Service) announceRecovery(ctx context.Context, debts []*ledger.Debt) {
	events := make([]notify.Event, 0, len(debts))
	for _, d := range debts {
		events = append(events, notify.NewEvent(notify.EventDebtReturned, "debt", d.ID).
			ForTechnician(d.TechnicianID).
			With("tracked_unit", *d.TrackedUnitID))
	}
	notify.Dispatch(ctx, s.notifier, events...)
}

// History returns the unit's maintenance records from one consistent read.
func (s *Service) History(ctx context.Context, unitID id.ID) (*History, error) {
	var h *History
	read := func(ctx context.Context) error {
		if _, err := s.inventory.GetUnit(ctx, unitID); err != nil {
			return err
		}
		var err error
		h, err = s.repo.History(ctx, unitID)
		return err
	}

	var err error
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok {
		err = ro.ReadOnly(ctx, read)
	} else {
		err = read(ctx)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func invalidOutcome(outcome inventory.UnitStatus) error {
	return apperror.NewValidation("outcome must be damaged, scrap or written_off").
		WithDetail("field", "outcome").
		WithDetail("value", string(outcome))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
