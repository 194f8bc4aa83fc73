package installation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/tx"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/audit"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/domain/notify"
	"ispledger/pkg/logger"
)

const entityInstalled = "installed_asset"

var tracer = otel.Tracer("ispledger/installation")

// Service installs, removes and replaces customer assets.
type Service struct {
	repo      Repository
	inventory *inventory.Service
	ledger    *ledger.Service
	txManager tx.Manager
	notifier  notify.Notifier
	audit     audit.Recorder
}

// NewService creates a new installation service.
func NewService(
	repo Repository,
	inv *inventory.Service,
	led *ledger.Service,
	txManager tx.Manager,
	notifier notify.Notifier,
	auditor audit.Recorder,
) *Service {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		inventory: inv,
		ledger:    led,
		txManager: txManager,
		notifier:  notifier,
		audit:     auditor,
	}
}

// Install converts part or all of a debt into an installed asset.
func (s *Service) Install(ctx context.Context, req InstallRequest) (*InstalledAsset, error) {
	ctx, span := tracer.Start(ctx, "installation.Install")
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	var row *InstalledAsset
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		row, err = s.install(ctx, req)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "asset installed",
		"installed_id", row.ID,
		"customer_id", row.CustomerID,
		"debt_id", row.SourceDebtID,
		"quantity", row.QuantityInstalled,
	)
	notify.Dispatch(ctx, s.notifier, installedEvent(notify.EventInstallationCreated, row))
	return row, nil
}

// install runs inside the caller's transaction. Locks: technician, debt, unit.
func (s *Service) install(ctx context.Context, req InstallRequest) (*InstalledAsset, error) {
	debt, err := s.ledger.LockOpenDebt(ctx, req.TechnicianID, req.SourceDebtID)
	if err != nil {
		return nil, err
	}
	if debt.AssetID != req.AssetID {
		return nil, apperror.NewValidation("debt is for a different asset").
			WithDetail("debtId", debt.ID.String()).
			WithDetail("assetId", req.AssetID.String())
	}
	if req.TrackedUnitID != nil && (debt.TrackedUnitID == nil || *debt.TrackedUnitID != *req.TrackedUnitID) {
		return nil, apperror.NewValidation("debt does not cover this tracked unit").
			WithDetail("debtId", debt.ID.String()).
			WithDetail("trackedUnitId", req.TrackedUnitID.String())
	}

	asset, err := s.inventory.GetAsset(ctx, debt.AssetID)
	if err != nil {
		return nil, err
	}

	var (
		qty    types.Quantity
		length *types.Quantity
	)
	switch {
	case asset.Tracked && debt.TrackedUnitID == nil:
		return nil, apperror.NewValidation("debt for a tracked asset has no unit").WithDetail("debtId", debt.ID.String())

	case asset.Cable:
		if req.InstalledLength == nil {
			return nil, apperror.NewValidation("installed length is required for cable").
				WithDetail("field", "installedLength")
		}
		l := *req.InstalledLength
		if _, err := s.inventory.ConsumeLength(ctx, *debt.TrackedUnitID, l); err != nil {
			return nil, err
		}
		qty, length = l, &l

	case asset.Tracked:
		qty = req.Quantity
		if qty.IsZero() {
			qty = types.NewQuantity(1)
		}
		if qty != types.NewQuantity(1) {
			return nil, apperror.NewValidation("tracked units are installed one at a time").WithDetail("field", "quantity")
		}
		if qty > debt.CurrentDebtQuantity+types.QuantityEpsilon {
			return nil, apperror.NewInsufficientDebtQuantity(debt.ID, qty.String(), debt.CurrentDebtQuantity.String())
		}
		if _, err := s.inventory.Transition(ctx, *debt.TrackedUnitID,
			[]inventory.UnitStatus{inventory.UnitLoaned}, inventory.UnitInstalled, inventory.InField()); err != nil {
			return nil, err
		}

	default:
		// Bulk stock left the asset at checkout; only the debt moves.
		if !req.Quantity.IsPositive() {
			return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
		}
		qty = req.Quantity
	}

	if err := s.ledger.ReduceLocked(ctx, debt, qty); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := &InstalledAsset{
		ID:                id.New(),
		CustomerID:        req.CustomerID,
		ServiceLocationID: req.ServiceLocationID,
		TechnicianID:      req.TechnicianID,
		AssetID:           debt.AssetID,
		TrackedUnitID:     debt.TrackedUnitID,
		SourceDebtID:      debt.ID,
		QuantityInstalled: qty,
		UnitValue:         debt.UnitPrice,
		TotalAssetValue:   qty.Value(debt.UnitPrice),
		Status:            StatusInstalled,
		InstalledAt:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if length != nil {
		current := *length
		row.InstalledLength = length
		row.CurrentLength = &current
	}
	if req.TicketID != "" {
		ticket := req.TicketID
		row.TicketID = &ticket
	}
	if req.Notes != "" {
		notes := req.Notes
		row.Notes = &notes
	}

	if err := s.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("create installed asset: %w", err)
	}
	if err := s.audit.LogChange(ctx, entityInstalled, row.ID, audit.ActionCreate, map[string]any{
		"debt_id":  row.SourceDebtID,
		"quantity": row.QuantityInstalled,
		"value":    row.TotalAssetValue,
	}); err != nil {
		return nil, err
	}
	return row, nil
}

// Remove takes an installed asset out of service. A tracked unit goes to the
// stated condition (default damaged) at the given warehouse, or to lost when
// no physical return is confirmed.
func (s *Service) Remove(ctx context.Context, req RemoveRequest) (*InstalledAsset, error) {
	var row *InstalledAsset
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		row, err = s.remove(ctx, req, StatusRemoved)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "installed asset removed", "installed_id", row.ID, "customer_id", row.CustomerID)
	notify.Dispatch(ctx, s.notifier, installedEvent(notify.EventInstallationRemoved, row))
	return row, nil
}

func (s *Service) remove(ctx context.Context, req RemoveRequest, to Status) (*InstalledAsset, error) {
	cond := inventory.UnitDamaged
	if req.Condition != nil {
		cond = *req.Condition
	}
	if !slices.Contains(removalConditions, cond) {
		return nil, apperror.NewValidation("invalid removal condition").
			WithDetail("field", "condition").
			WithDetail("value", string(cond))
	}

	row, err := s.repo.GetForUpdate(ctx, req.InstalledID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(removable, row.Status) {
		return nil, apperror.NewInvalidStateTransition(entityInstalled, row.ID, string(row.Status), string(to))
	}

	// Only a row still in place has something physical to move.
	if row.Status == StatusInstalled {
		switch {
		case row.IsCable():
			// Cable in the walls is not recovered.
		case row.TrackedUnitID != nil:
			target, loc := inventory.UnitLost, inventory.InField()
			if req.WarehouseID != nil && cond != inventory.UnitLost {
				target, loc = cond, inventory.AtWarehouse(*req.WarehouseID)
			}
			if _, err := s.inventory.Transition(ctx, *row.TrackedUnitID,
				[]inventory.UnitStatus{inventory.UnitInstalled}, target, loc); err != nil {
				return nil, err
			}
		case req.WarehouseID != nil && cond == inventory.UnitAvailable:
			if _, err := s.inventory.Release(ctx, row.AssetID, row.QuantityInstalled); err != nil {
				return nil, err
			}
		}
	}

	before := row.Status
	row.markRemoved(to, req.Reason)
	if err := s.repo.Update(ctx, row); err != nil {
		return nil, fmt.Errorf("update installed asset: %w", err)
	}
	if err := s.audit.LogChange(ctx, entityInstalled, row.ID, audit.ActionTransition, map[string]any{
		"status": audit.Change(before, row.Status),
	}); err != nil {
		return nil, err
	}
	return row, nil
}

// ReplaceResult pairs the retired row with its successor.
type ReplaceResult struct {
	Removed   *InstalledAsset `json:"removed"`
	Installed *InstalledAsset `json:"installed"`
}

// Replace removes an installed asset and installs a new one from a different
// debt, both halves in one unit of work.
func (s *Service) Replace(ctx context.Context, req ReplaceRequest) (*ReplaceResult, error) {
	ctx, span := tracer.Start(ctx, "installation.Replace")
	defer span.End()

	old, err := s.repo.Get(ctx, req.Removal.InstalledID)
	if err != nil {
		return nil, err
	}
	if old.Status != StatusInstalled {
		return nil, apperror.NewInvalidStateTransition(entityInstalled, old.ID, string(old.Status), string(StatusReplaced))
	}
	if req.Install.SourceDebtID == old.SourceDebtID {
		return nil, apperror.NewValidation("replacement must be installed from a new debt").
			WithDetail("field", "sourceDebtId")
	}
	if req.Install.CustomerID == "" {
		req.Install.CustomerID = old.CustomerID
	}
	if req.Install.ServiceLocationID == "" {
		req.Install.ServiceLocationID = old.ServiceLocationID
	}
	if err := req.Install.validate(); err != nil {
		return nil, err
	}

	result := &ReplaceResult{}
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		removed, err := s.remove(ctx, req.Removal, StatusReplaced)
		if err != nil {
			return err
		}
		installed, err := s.install(ctx, req.Install)
		if err != nil {
			return err
		}
		removed.ReplacedByID = &installed.ID
		if err := s.repo.Update(ctx, removed); err != nil {
			return fmt.Errorf("link replacement: %w", err)
		}
		result.Removed, result.Installed = removed, installed
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "installed asset replaced",
		"removed_id", result.Removed.ID,
		"installed_id", result.Installed.ID,
	)
	notify.Dispatch(ctx, s.notifier,
		installedEvent(notify.EventInstallationReplaced, result.Installed).
			With(entityInstalled, result.Removed.ID))
	return result, nil
}

// AuditInstalledLength corrects the measured length of installed cable.
func (s *Service) AuditInstalledLength(ctx context.Context, installedID id.ID, measured types.Quantity) (*InstalledAsset, error) {
	var row *InstalledAsset
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		row, err = s.repo.GetForUpdate(ctx, installedID)
		if err != nil {
			return err
		}
		if !row.IsCable() {
			return apperror.NewValidation("installed asset is not cable").WithDetail("installedId", installedID.String())
		}
		if row.Status != StatusInstalled {
			return apperror.NewInvalidStateTransition(entityInstalled, row.ID, string(row.Status), "length_audit")
		}
		if measured.IsNegative() || measured > *row.InstalledLength {
			return apperror.NewValidation("measured length must be within [0, installed length]").
				WithDetail("measured", measured.String()).
				WithDetail("installedLength", row.InstalledLength.String())
		}

		var before types.Quantity
		if row.CurrentLength != nil {
			before = *row.CurrentLength
		}
		row.CurrentLength = &measured
		row.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, row); err != nil {
			return fmt.Errorf("update installed asset: %w", err)
		}
		return s.audit.LogChange(ctx, entityInstalled, row.ID, audit.ActionCorrect, map[string]any{
			"current_length": audit.Change(before, measured),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "installed length audited", "installed_id", installedID, "measured", measured)
	return row, nil
}

// Get returns an installed asset by ID.
func (s *Service) Get(ctx context.Context, installedID id.ID) (*InstalledAsset, error) {
	return s.repo.Get(ctx, installedID)
}

// List returns installed assets matching filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*InstalledAsset, error) {
	return s.repo.List(ctx, filter)
}

func installedEvent(t notify.EventType, row *InstalledAsset) notify.Event {
	e := notify.NewEvent(t, entityInstalled, row.ID).
		With("debt", row.SourceDebtID).
		ForTechnician(row.TechnicianID)
	if row.TrackedUnitID != nil {
		e = e.With("tracked_unit", *row.TrackedUnitID)
	}
	return e
}
