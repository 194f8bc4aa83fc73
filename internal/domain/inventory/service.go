package inventory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/tx"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/audit"
	"ispledger/pkg/logger"
)

const (
	entityAsset = "asset"
	entityUnit  = "tracked_unit"
)

// Service mutates asset counters and tracked-unit state.
//
// Reserve, Release, FindAvailableTrackedUnit, Transition and ConsumeLength
// expect to run inside the caller's transaction. The standalone operations
// (ReceiveStock, RegisterUnit, DispatchUnit, ReceiveTransfer, AuditReelLength)
// open their own, which joins an outer one when present.
type Service struct {
	repo      Repository
	txManager tx.Manager
	audit     audit.Recorder
}

// NewService creates a new inventory service.
func NewService(repo Repository, txManager tx.Manager, auditor audit.Recorder) *Service {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		audit:     auditor,
	}
}

// --- Bulk counters ---

// Reserve decrements available_quantity of a bulk asset.
func (s *Service) Reserve(ctx context.Context, assetID id.ID, qty types.Quantity) (*Asset, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}

	asset, err := s.bulkAssetForUpdate(ctx, assetID)
	if err != nil {
		return nil, err
	}

	before := asset.AvailableQuantity
	if err := asset.reserve(qty); err != nil {
		return nil, err
	}
	if err := s.saveAsset(ctx, asset, audit.ActionReserve, before); err != nil {
		return nil, err
	}
	return asset, nil
}

// Release increments available_quantity, capped at total_quantity.
func (s *Service) Release(ctx context.Context, assetID id.ID, qty types.Quantity) (*Asset, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}

	asset, err := s.bulkAssetForUpdate(ctx, assetID)
	if err != nil {
		return nil, err
	}

	before := asset.AvailableQuantity
	if released := asset.release(qty); released != qty {
		logger.Warn(ctx, "release capped at total quantity",
			"asset_id", assetID,
			"requested", qty,
			"released", released,
		)
	}
	if err := s.saveAsset(ctx, asset, audit.ActionRelease, before); err != nil {
		return nil, err
	}
	return asset, nil
}

// ReceiveStock books a delivery: total and available both grow by qty.
func (s *Service) ReceiveStock(ctx context.Context, assetID id.ID, qty types.Quantity) (*Asset, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}

	var asset *Asset
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		asset, err = s.bulkAssetForUpdate(ctx, assetID)
		if err != nil {
			return err
		}
		before := asset.AvailableQuantity
		asset.receive(qty)
		return s.saveAsset(ctx, asset, audit.ActionReceive, before)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock received", "asset_id", assetID, "quantity", qty, "total", asset.TotalQuantity)
	return asset, nil
}

func (s *Service) bulkAssetForUpdate(ctx context.Context, assetID id.ID) (*Asset, error) {
	asset, err := s.repo.GetAssetForUpdate(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Tracked {
		return nil, apperror.NewValidation("asset is tracked per unit and has no bulk counters").
			WithDetail("assetId", assetID.String())
	}
	return asset, nil
}

func (s *Service) saveAsset(ctx context.Context, asset *Asset, action audit.Action, availableBefore types.Quantity) error {
	if err := s.repo.UpdateAssetQuantities(ctx, asset); err != nil {
		return fmt.Errorf("update asset quantities: %w", err)
	}
	return s.audit.LogChange(ctx, entityAsset, asset.ID, action, map[string]any{
		"available_quantity": audit.Change(availableBefore, asset.AvailableQuantity),
		"total_quantity":     asset.TotalQuantity,
	})
}

// --- Tracked units ---

// FindAvailableTrackedUnit locks a unit that is available at warehouseID.
// With unitID set, that exact unit must qualify; otherwise any matching unit
// of the asset is taken.
func (s *Service) FindAvailableTrackedUnit(ctx context.Context, assetID, warehouseID id.ID, unitID *id.ID) (*TrackedUnit, error) {
	if unitID == nil {
		unit, err := s.repo.FindAvailableUnitForUpdate(ctx, assetID, warehouseID)
		if apperror.IsNotFound(err) {
			return nil, apperror.NewAssetNotAvailable(assetID.String(), "none available at warehouse").
				WithDetail("warehouseId", warehouseID.String())
		}
		return unit, err
	}

	unit, err := s.repo.GetUnitForUpdate(ctx, *unitID)
	if err != nil {
		return nil, err
	}
	if unit.AssetID != assetID {
		return nil, apperror.NewValidation("tracked unit belongs to a different asset").
			WithDetail("trackedUnitId", unitID.String()).
			WithDetail("assetId", assetID.String())
	}
	if unit.Status != UnitAvailable || unit.WarehouseID == nil || *unit.WarehouseID != warehouseID {
		return nil, apperror.NewAssetNotAvailable(unit.ID.String(), string(unit.Status)).
			WithDetail("warehouseId", warehouseID.String())
	}
	return unit, nil
}

// Transition moves a unit to status `to` if it currently is in one of `from`
// (any status when from is empty) and the table allows the move.
func (s *Service) Transition(ctx context.Context, unitID id.ID, from []UnitStatus, to UnitStatus, loc Location) (*TrackedUnit, error) {
	unit, err := s.repo.GetUnitForUpdate(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, unit, from, to, loc); err != nil {
		return nil, err
	}
	return unit, nil
}

func (s *Service) transition(ctx context.Context, unit *TrackedUnit, from []UnitStatus, to UnitStatus, loc Location) error {
	current := unit.Status
	if len(from) > 0 && !slices.Contains(from, current) {
		return apperror.NewInvalidStateTransition(entityUnit, unit.ID, string(current), string(to)).
			WithDetail("expected", from)
	}
	if !CanTransition(current, to) {
		return apperror.NewInvalidStateTransition(entityUnit, unit.ID, string(current), string(to))
	}

	warehouseBefore := unit.WarehouseID
	unit.Status = to
	loc.apply(unit)
	unit.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateUnit(ctx, unit); err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	return s.audit.LogChange(ctx, entityUnit, unit.ID, audit.ActionTransition, map[string]any{
		"status":    audit.Change(current, to),
		"warehouse": audit.Change(warehouseBefore, unit.WarehouseID),
	})
}

// Relocate changes where a unit sits without changing its status. The unit
// must be in one of allowed.
func (s *Service) Relocate(ctx context.Context, unitID id.ID, allowed []UnitStatus, loc Location) (*TrackedUnit, error) {
	unit, err := s.repo.GetUnitForUpdate(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, unit.Status) {
		return nil, apperror.NewAssetNotAvailable(unitID.String(), string(unit.Status))
	}

	before := unit.WarehouseID
	loc.apply(unit)
	unit.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateUnit(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit: %w", err)
	}
	if err := s.audit.LogChange(ctx, entityUnit, unit.ID, audit.ActionTransition, map[string]any{
		"warehouse": audit.Change(before, unit.WarehouseID),
	}); err != nil {
		return nil, err
	}
	return unit, nil
}

// SetDamageNotes records or clears (nil) the unit's damage notes.
func (s *Service) SetDamageNotes(ctx context.Context, unitID id.ID, notes *string) error {
	unit, err := s.repo.GetUnitForUpdate(ctx, unitID)
	if err != nil {
		return err
	}
	unit.DamageNotes = notes
	unit.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateUnit(ctx, unit); err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	return nil
}

// ConsumeLength cuts length off a loaned reel. A reel cut to zero has all of
// its material at customer sites and becomes installed.
func (s *Service) ConsumeLength(ctx context.Context, unitID id.ID, length types.Quantity) (*TrackedUnit, error) {
	if !length.IsPositive() {
		return nil, apperror.NewValidation("installed length must be positive").WithDetail("field", "installedLength")
	}

	unit, err := s.repo.GetUnitForUpdate(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if !unit.IsReel() {
		return nil, apperror.NewValidation("tracked unit is not a cable reel").
			WithDetail("trackedUnitId", unitID.String())
	}
	if unit.Status != UnitLoaned {
		return nil, apperror.NewAssetNotAvailable(unitID.String(), string(unit.Status))
	}

	remaining := unit.RemainingLength()
	if length > remaining {
		return nil, apperror.NewLengthExceedsRemaining(unitID, length.String(), remaining.String())
	}

	left := remaining - length
	unit.CurrentLength = &left
	unit.UpdatedAt = time.Now().UTC()

	if left.IsNegligible() {
		zero := types.Quantity(0)
		unit.CurrentLength = &zero
		if err := s.transition(ctx, unit, []UnitStatus{UnitLoaned}, UnitInstalled, InField()); err != nil {
			return nil, err
		}
	} else if err := s.repo.UpdateUnit(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit: %w", err)
	}

	if err := s.audit.LogChange(ctx, entityUnit, unit.ID, audit.ActionReduce, map[string]any{
		"current_length": audit.Change(remaining, *unit.CurrentLength),
	}); err != nil {
		return nil, err
	}
	return unit, nil
}

// AuditReelLength corrects a reel's measured length. Loaned reels back a
// length-denominated debt and cannot be corrected.
func (s *Service) AuditReelLength(ctx context.Context, unitID id.ID, measured types.Quantity) (*TrackedUnit, error) {
	var unit *TrackedUnit
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		unit, err = s.repo.GetUnitForUpdate(ctx, unitID)
		if err != nil {
			return err
		}
		if !unit.IsReel() {
			return apperror.NewValidation("tracked unit is not a cable reel").
				WithDetail("trackedUnitId", unitID.String())
		}
		if unit.Status == UnitLoaned {
			return apperror.NewInvalidStateTransition(entityUnit, unitID, string(unit.Status), "length_audit")
		}
		if measured.IsNegative() || measured > *unit.InitialLength {
			return apperror.NewValidation("measured length must be within [0, initial length]").
				WithDetail("measured", measured.String()).
				WithDetail("initialLength", unit.InitialLength.String())
		}

		before := unit.RemainingLength()
		unit.CurrentLength = &measured
		unit.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateUnit(ctx, unit); err != nil {
			return fmt.Errorf("update unit: %w", err)
		}
		return s.audit.LogChange(ctx, entityUnit, unit.ID, audit.ActionCorrect, map[string]any{
			"current_length": audit.Change(before, measured),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "reel length audited", "unit_id", unitID, "measured", measured)
	return unit, nil
}

// CreateAsset adds an asset to the catalog. Bulk assets may start with stock
// already on hand; tracked assets start empty and grow through RegisterUnit.
func (s *Service) CreateAsset(ctx context.Context, asset *Asset) error {
	if id.IsNil(asset.ID) {
		asset.ID = id.New()
	}
	if asset.UnitOfMeasure == "" {
		asset.UnitOfMeasure = UoMPiece
	}
	if asset.Tracked && !asset.TotalQuantity.IsZero() {
		return apperror.NewValidation("tracked assets have no bulk counters").WithDetail("field", "totalQuantity")
	}
	asset.AvailableQuantity = asset.TotalQuantity
	now := time.Now().UTC()
	asset.CreatedAt, asset.UpdatedAt = now, now

	if err := asset.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateAsset(ctx, asset); err != nil {
			return fmt.Errorf("create asset: %w", err)
		}
		return s.audit.LogChange(ctx, entityAsset, asset.ID, audit.ActionCreate, map[string]any{
			"code":  asset.Code,
			"type":  asset.Type,
			"price": asset.StandardPrice,
			"total": asset.TotalQuantity,
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "asset created", "asset_id", asset.ID, "code", asset.Code)
	return nil
}

// RegisterUnit creates a tracked unit, available at its warehouse.
// Reels start full: current_length = initial_length.
func (s *Service) RegisterUnit(ctx context.Context, unit *TrackedUnit) error {
	if id.IsNil(unit.ID) {
		unit.ID = id.New()
	}
	if unit.Status == "" {
		unit.Status = UnitAvailable
	}
	if unit.Status != UnitAvailable {
		return apperror.NewValidation("new units are registered as available").WithDetail("field", "status")
	}
	if unit.WarehouseID == nil {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if unit.InitialLength != nil {
		length := *unit.InitialLength
		unit.CurrentLength = &length
	}
	now := time.Now().UTC()
	unit.CreatedAt, unit.UpdatedAt = now, now

	if err := unit.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		asset, err := s.repo.GetAsset(ctx, unit.AssetID)
		if err != nil {
			return err
		}
		if !asset.Tracked {
			return apperror.NewValidation("asset is not tracked per unit").WithDetail("assetId", asset.ID.String())
		}
		if asset.Cable != unit.IsReel() {
			return apperror.NewValidation("cable assets require initialLength, other assets must omit it").
				WithDetail("field", "initialLength")
		}
		if err := s.repo.CreateUnit(ctx, unit); err != nil {
			return fmt.Errorf("create unit: %w", err)
		}
		return s.audit.LogChange(ctx, entityUnit, unit.ID, audit.ActionCreate, map[string]any{
			"asset_id":  unit.AssetID,
			"status":    unit.Status,
			"warehouse": unit.WarehouseID,
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "tracked unit registered", "unit_id", unit.ID, "asset_id", unit.AssetID)
	return nil
}

// DispatchUnit sends an available unit out of its warehouse.
func (s *Service) DispatchUnit(ctx context.Context, unitID id.ID) (*TrackedUnit, error) {
	return s.standaloneTransition(ctx, unitID, []UnitStatus{UnitAvailable}, UnitInTransit, InField())
}

// ReceiveTransfer books an in-transit unit into warehouseID.
func (s *Service) ReceiveTransfer(ctx context.Context, unitID, warehouseID id.ID) (*TrackedUnit, error) {
	return s.standaloneTransition(ctx, unitID, []UnitStatus{UnitInTransit}, UnitAvailable, AtWarehouse(warehouseID))
}

func (s *Service) standaloneTransition(ctx context.Context, unitID id.ID, from []UnitStatus, to UnitStatus, loc Location) (*TrackedUnit, error) {
	var unit *TrackedUnit
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		unit, err = s.Transition(ctx, unitID, from, to, loc)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "tracked unit moved", "unit_id", unitID, "status", to)
	return unit, nil
}

// --- Queries ---

// GetAsset returns an asset by ID.
func (s *Service) GetAsset(ctx context.Context, assetID id.ID) (*Asset, error) {
	return s.repo.GetAsset(ctx, assetID)
}

// GetAssetForUpdate locks and returns an asset inside the caller's transaction.
func (s *Service) GetAssetForUpdate(ctx context.Context, assetID id.ID) (*Asset, error) {
	return s.repo.GetAssetForUpdate(ctx, assetID)
}

// ListAssets returns assets matching filter.
func (s *Service) ListAssets(ctx context.Context, filter AssetFilter) ([]*Asset, error) {
	return s.repo.ListAssets(ctx, filter)
}

// GetUnit returns a tracked unit by ID.
func (s *Service) GetUnit(ctx context.Context, unitID id.ID) (*TrackedUnit, error) {
	return s.repo.GetUnit(ctx, unitID)
}

// GetUnitForUpdate locks and returns a unit inside the caller's transaction.
func (s *Service) GetUnitForUpdate(ctx context.Context, unitID id.ID) (*TrackedUnit, error) {
	return s.repo.GetUnitForUpdate(ctx, unitID)
}

// ListUnits returns tracked units matching filter.
func (s *Service) ListUnits(ctx context.Context, filter UnitFilter) ([]*TrackedUnit, error) {
	return s.repo.ListUnits(ctx, filter)
}
