package ledger_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"ispledger/internal/core/id"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/infrastructure/storage/postgres"
)

const (
	assetsTable = "assets"
	unitsTable  = "tracked_units"
)

var (
	assetColumns = postgres.ExtractDBColumns[inventory.Asset]()
	unitColumns  = postgres.ExtractDBColumns[inventory.TrackedUnit]()
)

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	base
}

var _ inventory.Repository = (*InventoryRepo)(nil)

// NewInventoryRepo creates the inventory repository.
func NewInventoryRepo(txm *postgres.TxManager) *InventoryRepo {
	return &InventoryRepo{base: newBase(txm)}
}

func (r *InventoryRepo) CreateAsset(ctx context.Context, asset *inventory.Asset) error {
	return r.insert(ctx, assetsTable, assetColumns, asset, "asset")
}

func (r *InventoryRepo) selectAsset(assetID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(assetColumns...).From(assetsTable).Where(squirrel.Eq{"id": assetID})
}

func (r *InventoryRepo) GetAsset(ctx context.Context, assetID id.ID) (*inventory.Asset, error) {
	var a inventory.Asset
	if err := r.get(ctx, &a, r.selectAsset(assetID), "asset", assetID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *InventoryRepo) GetAssetForUpdate(ctx context.Context, assetID id.ID) (*inventory.Asset, error) {
	var a inventory.Asset
	if err := r.get(ctx, &a, r.selectAsset(assetID).Suffix("FOR UPDATE"), "asset", assetID); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAssetQuantities writes the counters only; master data is immutable here.
func (r *InventoryRepo) UpdateAssetQuantities(ctx context.Context, asset *inventory.Asset) error {
	q := r.builder.Update(assetsTable).
		Set("total_quantity", asset.TotalQuantity).
		Set("available_quantity", asset.AvailableQuantity).
		Set("updated_at", asset.UpdatedAt).
		Where(squirrel.Eq{"id": asset.ID})
	return r.execOne(ctx, q, "asset", asset.ID)
}

func (r *InventoryRepo) ListAssets(ctx context.Context, f inventory.AssetFilter) ([]*inventory.Asset, error) {
	q := r.builder.Select(assetColumns...).From(assetsTable).OrderBy("code")
	if f.Category != nil {
		q = q.Where(squirrel.Eq{"category": *f.Category})
	}
	if f.Tracked != nil {
		q = q.Where(squirrel.Eq{"tracked": *f.Tracked})
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}

	var out []*inventory.Asset
	if err := r.list(ctx, &out, paginate(q, f.Limit, f.Offset), "asset"); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *InventoryRepo) CreateUnit(ctx context.Context, unit *inventory.TrackedUnit) error {
	return r.insert(ctx, unitsTable, unitColumns, unit, "tracked_unit")
}

func (r *InventoryRepo) selectUnits() squirrel.SelectBuilder {
	return r.builder.Select(unitColumns...).From(unitsTable)
}

func (r *InventoryRepo) GetUnit(ctx context.Context, unitID id.ID) (*inventory.TrackedUnit, error) {
	var u inventory.TrackedUnit
	if err := r.get(ctx, &u, r.selectUnits().Where(squirrel.Eq{"id": unitID}), "tracked_unit", unitID); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *InventoryRepo) GetUnitForUpdate(ctx context.Context, unitID id.ID) (*inventory.TrackedUnit, error) {
	var u inventory.TrackedUnit
	q := r.selectUnits().Where(squirrel.Eq{"id": unitID}).Suffix("FOR UPDATE")
	if err := r.get(ctx, &u, q, "tracked_unit", unitID); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindAvailableUnitForUpdate picks the oldest available unit at the warehouse.
// SKIP LOCKED lets two technicians checking out the same asset get different units.
func (r *InventoryRepo) FindAvailableUnitForUpdate(ctx context.Context, assetID, warehouseID id.ID) (*inventory.TrackedUnit, error) {
	var u inventory.TrackedUnit
	if err := r.get(ctx, &u, r.availableUnitQuery(assetID, warehouseID), "tracked_unit", assetID); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *InventoryRepo) availableUnitQuery(assetID, warehouseID id.ID) squirrel.SelectBuilder {
	return r.selectUnits().
		Where(squirrel.Eq{
			"asset_id":             assetID,
			"current_warehouse_id": warehouseID,
			"current_status":       string(inventory.UnitAvailable),
		}).
		OrderBy("id").
		Limit(1).
		Suffix("FOR UPDATE SKIP LOCKED")
}

func (r *InventoryRepo) UpdateUnit(ctx context.Context, unit *inventory.TrackedUnit) error {
	q := r.builder.Update(unitsTable).
		Set("current_status", unit.Status).
		Set("current_warehouse_id", unit.WarehouseID).
		Set("initial_length", unit.InitialLength).
		Set("current_length", unit.CurrentLength).
		Set("damage_notes", unit.DamageNotes).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": unit.ID})
	return r.execOne(ctx, q, "tracked_unit", unit.ID)
}

func (r *InventoryRepo) ListUnits(ctx context.Context, f inventory.UnitFilter) ([]*inventory.TrackedUnit, error) {
	q := r.selectUnits().OrderBy("id")
	if f.AssetID != nil {
		q = q.Where(squirrel.Eq{"asset_id": *f.AssetID})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"current_warehouse_id": *f.WarehouseID})
	}
	if len(f.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"current_status": statusStrings(f.Statuses)})
	}

	var out []*inventory.TrackedUnit
	if err := r.list(ctx, &out, paginate(q, f.Limit, f.Offset), "tracked_unit"); err != nil {
		return nil, err
	}
	return out, nil
}

// statusStrings converts a typed status list for squirrel's IN expansion.
func statusStrings[S ~string](in []S) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
