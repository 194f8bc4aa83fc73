package memory

import (
	"context"

	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/inventory"
)

// SeedBulkAsset stores a bulk asset with qty in stock.
func (s *Store) SeedBulkAsset(ctx context.Context, code string, price types.Money, qty types.Quantity) *inventory.Asset {
	a := inventory.NewAsset(code, code, inventory.TypeConsumable, price)
	a.TotalQuantity, a.AvailableQuantity = qty, qty
	s.mustCreateAsset(ctx, a)
	return a
}

// SeedTrackedAsset stores an asset tracked per unit.
func (s *Store) SeedTrackedAsset(ctx context.Context, code string, price types.Money) *inventory.Asset {
	a := inventory.NewAsset(code, code, inventory.TypeFixed, price)
	a.Tracked = true
	s.mustCreateAsset(ctx, a)
	return a
}

// SeedCableAsset stores a cable asset priced per metre.
func (s *Store) SeedCableAsset(ctx context.Context, code string, pricePerMetre types.Money) *inventory.Asset {
	a := inventory.NewAsset(code, code, inventory.TypeConsumable, pricePerMetre)
	a.Tracked, a.Cable, a.UnitOfMeasure = true, true, inventory.UoMMetre
	s.mustCreateAsset(ctx, a)
	return a
}

// SeedUnit stores a tracked unit in the given status. warehouseID may be nil.
// A positive length makes it a full reel.
func (s *Store) SeedUnit(ctx context.Context, asset *inventory.Asset, status inventory.UnitStatus, warehouseID *id.ID, length types.Quantity) *inventory.TrackedUnit {
	uid := id.New().String()
	serial := "SN-" + uid[len(uid)-12:]
	u := &inventory.TrackedUnit{
		ID:           id.New(),
		AssetID:      asset.ID,
		SerialNumber: &serial,
		Status:       status,
		WarehouseID:  warehouseID,
	}
	if length.IsPositive() {
		initial, current := length, length
		u.InitialLength, u.CurrentLength = &initial, &current
	}
	if err := s.Inventory().CreateUnit(ctx, u); err != nil {
		panic(err)
	}
	return u
}

func (s *Store) mustCreateAsset(ctx context.Context, a *inventory.Asset) {
	if err := s.Inventory().CreateAsset(ctx, a); err != nil {
		panic(err)
	}
}
