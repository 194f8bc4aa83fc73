package ledger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"

	"ispledger/internal/core/apperror"
	appctx "ispledger/internal/core/context"
	"ispledger/internal/core/id"
	"ispledger/internal/core/numerator"
	"ispledger/internal/core/tx"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/audit"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/notify"
	"ispledger/pkg/logger"
)

const entityDebt = "debt"

var tracer = otel.Tracer("ispledger/ledger")

// SettlementNumberStrategy keeps settlement numbers gapless for payroll.
var SettlementNumberStrategy = numerator.StrategyStrict

// Service owns debt mutations. Every public mutating method is one unit of
// work; the *Locked helpers run inside a caller's transaction.
type Service struct {
	repo      Repository
	inventory *inventory.Service
	txManager tx.Manager
	numerator numerator.Generator
	notifier  notify.Notifier
	audit     audit.Recorder
}

// NewService creates a new debt ledger service.
func NewService(
	repo Repository,
	inv *inventory.Service,
	txManager tx.Manager,
	num numerator.Generator,
	notifier notify.Notifier,
	auditor audit.Recorder,
) *Service {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		inventory: inv,
		txManager: txManager,
		numerator: num,
		notifier:  notifier,
		audit:     auditor,
	}
}

// --- Building blocks used by checkout, installation and maintenance ---

// LockTechnician takes the technician's debt-set lock for the current transaction.
func (s *Service) LockTechnician(ctx context.Context, technicianID string) error {
	if err := s.repo.LockTechnician(ctx, technicianID); err != nil {
		return fmt.Errorf("lock technician: %w", err)
	}
	return nil
}

// CreateDebts inserts new active debts inside the caller's transaction.
func (s *Service) CreateDebts(ctx context.Context, debts []*Debt) error {
	for _, d := range debts {
		if err := d.Validate(ctx); err != nil {
			return err
		}
	}
	if err := s.repo.CreateDebts(ctx, debts); err != nil {
		return fmt.Errorf("create debts: %w", err)
	}
	for _, d := range debts {
		if err := s.audit.LogChange(ctx, entityDebt, d.ID, audit.ActionCreate, map[string]any{
			"technician_id":  d.TechnicianID,
			"asset_id":       d.AssetID,
			"quantity_taken": d.QuantityTaken,
			"unit_price":     d.UnitPrice,
		}); err != nil {
			return err
		}
	}
	return nil
}

// LockOpenDebt locks the technician, then the debt, and checks that the debt
// is the technician's and still open.
func (s *Service) LockOpenDebt(ctx context.Context, technicianID string, debtID id.ID) (*Debt, error) {
	if err := s.LockTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	debts, err := s.repo.GetDebtsForUpdate(ctx, []id.ID{debtID})
	if err != nil {
		return nil, err
	}
	debt := debts[0]
	if err := checkReturnable(debt, technicianID); err != nil {
		return nil, err
	}
	return debt, nil
}

// ReduceLocked takes qty off a locked debt, as installation does.
func (s *Service) ReduceLocked(ctx context.Context, debt *Debt, qty types.Quantity) error {
	if qty > debt.CurrentDebtQuantity+types.QuantityEpsilon {
		return apperror.NewInsufficientDebtQuantity(debt.ID, qty.String(), debt.CurrentDebtQuantity.String())
	}
	return s.save(ctx, debt, audit.ActionReduce, func() error { return debt.Reduce(qty) })
}

// LockUnitDebts locks the open debts of a tracked unit in the global lock
// order: owning technicians, then the debts by ID. Callers lock the unit
// itself afterwards. Debts closed between the read and the lock are dropped.
func (s *Service) LockUnitDebts(ctx context.Context, unitID id.ID) ([]*Debt, error) {
	open, err := s.repo.OpenDebtsForUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("open debts for unit: %w", err)
	}
	if len(open) == 0 {
		return nil, nil
	}

	technicians := make([]string, 0, len(open))
	debtIDs := make([]id.ID, 0, len(open))
	for _, d := range open {
		technicians = append(technicians, d.TechnicianID)
		debtIDs = append(debtIDs, d.ID)
	}
	slices.Sort(technicians)
	for _, technicianID := range slices.Compact(technicians) {
		if err := s.LockTechnician(ctx, technicianID); err != nil {
			return nil, err
		}
	}

	locked, err := s.repo.GetDebtsForUpdate(ctx, debtIDs)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(locked, func(d *Debt) bool { return !d.Status.IsOpen() }), nil
}

// WriteOffLocked extinguishes debts taken by LockUnitDebts once their unit
// has been written off.
func (s *Service) WriteOffLocked(ctx context.Context, debts []*Debt, reason string) error {
	for _, d := range debts {
		if err := s.save(ctx, d, audit.ActionWriteOff, func() error { return d.WriteOff(reason) }); err != nil {
			return err
		}
	}
	if len(debts) > 0 {
		logger.Info(ctx, "debts written off with unit", "unit_id", *debts[0].TrackedUnitID, "count", len(debts))
	}
	return nil
}

// RecoverLocked closes debts taken by LockUnitDebts whose unit is back in
// stock in working order. The debt ends fully settled, as a full return does.
func (s *Service) RecoverLocked(ctx context.Context, debts []*Debt) error {
	for _, d := range debts {
		if err := s.save(ctx, d, audit.ActionReduce, func() error { return d.Reduce(d.CurrentDebtQuantity) }); err != nil {
			return err
		}
	}
	if len(debts) > 0 {
		logger.Info(ctx, "debts closed by unit recovery", "unit_id", *debts[0].TrackedUnitID, "count", len(debts))
	}
	return nil
}

// save applies mutate to a locked debt, persists it and audits the change.
func (s *Service) save(ctx context.Context, d *Debt, action audit.Action, mutate func() error) error {
	qtyBefore, statusBefore := d.CurrentDebtQuantity, d.Status
	if err := mutate(); err != nil {
		return err
	}
	if err := s.repo.UpdateDebt(ctx, d); err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	return s.audit.LogChange(ctx, entityDebt, d.ID, action, map[string]any{
		"current_debt_quantity": audit.Change(qtyBefore, d.CurrentDebtQuantity),
		"current_debt_value":    d.CurrentDebtValue,
		"status":                audit.Change(statusBefore, d.Status),
	})
}

func checkReturnable(d *Debt, technicianID string) error {
	if d.TechnicianID != technicianID {
		return apperror.NewDebtOwnershipMismatch(d.ID, technicianID)
	}
	if !d.Status.IsOpen() {
		return apperror.NewDebtNotReturnable(d.ID, string(d.Status))
	}
	return nil
}

// --- Write-off ---

// WriteOffDebt forces an open debt to written_off by management decision.
// Physical unit state is left alone.
func (s *Service) WriteOffDebt(ctx context.Context, debtID id.ID, reason string) (*Debt, error) {
	if reason == "" {
		return nil, apperror.NewValidation("reason is required").WithDetail("field", "reason")
	}

	peek, err := s.repo.GetDebt(ctx, debtID)
	if err != nil {
		return nil, err
	}

	var debt *Debt
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		debt, err = s.LockOpenDebt(ctx, peek.TechnicianID, debtID)
		if err != nil {
			return err
		}
		return s.save(ctx, debt, audit.ActionWriteOff, func() error { return debt.WriteOff(reason) })
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "debt written off", "debt_id", debtID, "technician_id", debt.TechnicianID)
	notify.Dispatch(ctx, s.notifier,
		notify.NewEvent(notify.EventDebtWrittenOff, entityDebt, debt.ID).ForTechnician(debt.TechnicianID))
	return debt, nil
}

// --- Field incident ---

// IncidentRequest reports a loaned unit damaged or lost in the field.
type IncidentRequest struct {
	TechnicianID string
	DebtID       id.ID
	Condition    inventory.UnitStatus
	Notes        string
}

// ReportIncident moves the debt's loaned unit to damaged or lost. The debt
// stays open until the unit is returned, written off or the debt is settled.
func (s *Service) ReportIncident(ctx context.Context, req IncidentRequest) (*inventory.TrackedUnit, error) {
	if req.Condition != inventory.UnitDamaged && req.Condition != inventory.UnitLost {
		return nil, apperror.NewValidation("condition must be damaged or lost").
			WithDetail("field", "condition").
			WithDetail("value", string(req.Condition))
	}

	var unit *inventory.TrackedUnit
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		debt, err := s.LockOpenDebt(ctx, req.TechnicianID, req.DebtID)
		if err != nil {
			return err
		}
		if debt.TrackedUnitID == nil {
			return apperror.NewValidation("debt has no tracked unit").WithDetail("debtId", debt.ID.String())
		}
		unit, err = s.inventory.Transition(ctx, *debt.TrackedUnitID,
			[]inventory.UnitStatus{inventory.UnitLoaned}, req.Condition, inventory.InField())
		if err != nil {
			return err
		}
		if req.Notes != "" {
			notes := req.Notes
			unit.DamageNotes = &notes
			return s.inventory.SetDamageNotes(ctx, unit.ID, &notes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "field incident reported",
		"debt_id", req.DebtID,
		"unit_id", unit.ID,
		"condition", req.Condition,
	)
	return unit, nil
}

// --- Queries ---

// GetDebt returns a debt by ID.
func (s *Service) GetDebt(ctx context.Context, debtID id.ID) (*Debt, error) {
	return s.repo.GetDebt(ctx, debtID)
}

// ListDebts returns debts matching filter.
func (s *Service) ListDebts(ctx context.Context, filter DebtFilter) ([]*Debt, error) {
	return s.repo.ListDebts(ctx, filter)
}

// OutstandingDebt implements debtpolicy.DebtSource.
func (s *Service) OutstandingDebt(ctx context.Context, technicianID string) (types.Money, error) {
	return s.repo.OutstandingDebt(ctx, technicianID)
}

// GetSettlement returns a settlement with its lines.
func (s *Service) GetSettlement(ctx context.Context, settlementID id.ID) (*Settlement, error) {
	return s.repo.GetSettlement(ctx, settlementID)
}

// ListSettlements returns settlements matching filter.
func (s *Service) ListSettlements(ctx context.Context, filter SettlementFilter) ([]*Settlement, error) {
	return s.repo.ListSettlements(ctx, filter)
}

func now() time.Time { return time.Now().UTC() }

func actor(ctx context.Context) string { return appctx.Actor(ctx) }
