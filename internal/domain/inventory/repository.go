package inventory

import (
	"context"

	"ispledger/internal/core/id"
)

// Repository persists assets and tracked units.
// ForUpdate variants lock the row until the surrounding transaction ends.
type Repository interface {
	// Assets

	CreateAsset(ctx context.Context, asset *Asset) error
	GetAsset(ctx context.Context, assetID id.ID) (*Asset, error)
	GetAssetForUpdate(ctx context.Context, assetID id.ID) (*Asset, error)
	// UpdateAssetQuantities writes total/available counters only.
	UpdateAssetQuantities(ctx context.Context, asset *Asset) error
	ListAssets(ctx context.Context, filter AssetFilter) ([]*Asset, error)

	// Tracked units

	CreateUnit(ctx context.Context, unit *TrackedUnit) error
	GetUnit(ctx context.Context, unitID id.ID) (*TrackedUnit, error)
	GetUnitForUpdate(ctx context.Context, unitID id.ID) (*TrackedUnit, error)
	// FindAvailableUnitForUpdate locks one available unit of the asset at the
	// warehouse, skipping rows other transactions already hold.
	FindAvailableUnitForUpdate(ctx context.Context, assetID, warehouseID id.ID) (*TrackedUnit, error)
	// UpdateUnit writes status, warehouse, lengths and damage notes.
	UpdateUnit(ctx context.Context, unit *TrackedUnit) error
	ListUnits(ctx context.Context, filter UnitFilter) ([]*TrackedUnit, error)
}

// AssetFilter narrows ListAssets.
type AssetFilter struct {
	Category *string
	Tracked  *bool
	Search   string
	Limit    int
	Offset   int
}

// UnitFilter narrows ListUnits.
type UnitFilter struct {
	AssetID     *id.ID
	WarehouseID *id.ID
	Statuses    []UnitStatus
	Limit       int
	Offset      int
}
