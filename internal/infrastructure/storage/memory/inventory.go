package memory

import (
	"context"
	"slices"
	"sort"
	"strings"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/domain/inventory"
)

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct{ s *Store }

var _ inventory.Repository = (*InventoryRepo)(nil)

func (r *InventoryRepo) CreateAsset(ctx context.Context, a *inventory.Asset) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.assets[a.ID]; ok {
			return apperror.NewDuplicate("asset", "id", a.ID.String())
		}
		for _, existing := range st.assets {
			if existing.Code == a.Code {
				return apperror.NewDuplicate("asset", "code", a.Code)
			}
		}
		st.assets[a.ID] = clone(a)
		return nil
	})
}

func (r *InventoryRepo) GetAsset(ctx context.Context, assetID id.ID) (*inventory.Asset, error) {
	var out *inventory.Asset
	err := r.s.with(ctx, func(st *state) error {
		a, ok := st.assets[assetID]
		if !ok {
			return apperror.NewNotFound("asset", assetID)
		}
		out = clone(a)
		return nil
	})
	return out, err
}

func (r *InventoryRepo) GetAssetForUpdate(ctx context.Context, assetID id.ID) (*inventory.Asset, error) {
	return r.GetAsset(ctx, assetID)
}

func (r *InventoryRepo) UpdateAssetQuantities(ctx context.Context, a *inventory.Asset) error {
	return r.s.with(ctx, func(st *state) error {
		current, ok := st.assets[a.ID]
		if !ok {
			return apperror.NewNotFound("asset", a.ID)
		}
		next := clone(current)
		next.TotalQuantity = a.TotalQuantity
		next.AvailableQuantity = a.AvailableQuantity
		next.UpdatedAt = a.UpdatedAt
		st.assets[a.ID] = next
		return nil
	})
}

func (r *InventoryRepo) ListAssets(ctx context.Context, f inventory.AssetFilter) ([]*inventory.Asset, error) {
	var out []*inventory.Asset
	err := r.s.with(ctx, func(st *state) error {
		for _, a := range st.assets {
			if f.Category != nil && a.Category != *f.Category {
				continue
			}
			if f.Tracked != nil && a.Tracked != *f.Tracked {
				continue
			}
			if f.Search != "" && !strings.Contains(strings.ToLower(a.Name+" "+a.Code), strings.ToLower(f.Search)) {
				continue
			}
			out = append(out, clone(a))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return page(out, f.Limit, f.Offset), err
}

func (r *InventoryRepo) CreateUnit(ctx context.Context, u *inventory.TrackedUnit) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.units[u.ID]; ok {
			return apperror.NewDuplicate("tracked_unit", "id", u.ID.String())
		}
		for _, existing := range st.units {
			if u.QRCode != nil && existing.QRCode != nil && *existing.QRCode == *u.QRCode {
				return apperror.NewDuplicate("tracked_unit", "qr_code", *u.QRCode)
			}
			if u.SerialNumber != nil && existing.SerialNumber != nil && *existing.SerialNumber == *u.SerialNumber {
				return apperror.NewDuplicate("tracked_unit", "serial_number", *u.SerialNumber)
			}
		}
		st.units[u.ID] = clone(u)
		return nil
	})
}

func (r *InventoryRepo) GetUnit(ctx context.Context, unitID id.ID) (*inventory.TrackedUnit, error) {
	var out *inventory.TrackedUnit
	err := r.s.with(ctx, func(st *state) error {
		u, ok := st.units[unitID]
		if !ok {
			return apperror.NewNotFound("tracked_unit", unitID)
		}
		out = clone(u)
		return nil
	})
	return out, err
}

func (r *InventoryRepo) GetUnitForUpdate(ctx context.Context, unitID id.ID) (*inventory.TrackedUnit, error) {
	return r.GetUnit(ctx, unitID)
}

func (r *InventoryRepo) FindAvailableUnitForUpdate(ctx context.Context, assetID, warehouseID id.ID) (*inventory.TrackedUnit, error) {
	var out *inventory.TrackedUnit
	err := r.s.with(ctx, func(st *state) error {
		for _, u := range sortedUnits(st) {
			if u.AssetID == assetID && u.Status == inventory.UnitAvailable &&
				u.WarehouseID != nil && *u.WarehouseID == warehouseID {
				out = clone(u)
				return nil
			}
		}
		return apperror.NewNotFound("tracked_unit", assetID)
	})
	return out, err
}

func (r *InventoryRepo) UpdateUnit(ctx context.Context, u *inventory.TrackedUnit) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.units[u.ID]; !ok {
			return apperror.NewNotFound("tracked_unit", u.ID)
		}
		st.units[u.ID] = clone(u)
		return nil
	})
}

func (r *InventoryRepo) ListUnits(ctx context.Context, f inventory.UnitFilter) ([]*inventory.TrackedUnit, error) {
	var out []*inventory.TrackedUnit
	err := r.s.with(ctx, func(st *state) error {
		for _, u := range sortedUnits(st) {
			if f.AssetID != nil && u.AssetID != *f.AssetID {
				continue
			}
			if f.WarehouseID != nil && (u.WarehouseID == nil || *u.WarehouseID != *f.WarehouseID) {
				continue
			}
			if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, u.Status) {
				continue
			}
			out = append(out, clone(u))
		}
		return nil
	})
	return page(out, f.Limit, f.Offset), err
}

func sortedUnits(st *state) []*inventory.TrackedUnit {
	out := make([]*inventory.TrackedUnit, 0, len(st.units))
	for _, u := range st.units {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b *inventory.TrackedUnit) int { return id.Compare(a.ID, b.ID) })
	return out
}
