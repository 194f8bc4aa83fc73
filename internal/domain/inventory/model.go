// Package inventory holds assets (master types) and tracked units
// (serialized instances) together with their quantity and state fields.
package inventory

import (
	"context"
	"time"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
)

// AssetType classifies an asset.
type AssetType string

const (
	TypeConsumable AssetType = "consumable"
	TypeFixed      AssetType = "fixed"
)

// UnitOfMeasure is how an asset's quantities are counted.
type UnitOfMeasure string

const (
	UoMPiece UnitOfMeasure = "piece"
	UoMMetre UnitOfMeasure = "metre"
)

// Asset is a master type. Bulk assets carry aggregate counters;
// tracked assets have one TrackedUnit per physical item.
type Asset struct {
	ID       id.ID     `db:"id" json:"id"`
	Code     string    `db:"code" json:"code"`
	Name     string    `db:"name" json:"name"`
	Category string    `db:"category" json:"category"`
	Type     AssetType `db:"type" json:"type"`

	// Tracked means individual units exist and the counters below are unused.
	Tracked bool `db:"tracked" json:"tracked"`

	// Cable assets are priced per metre and their units are reels.
	Cable         bool          `db:"is_cable" json:"isCable"`
	UnitOfMeasure UnitOfMeasure `db:"unit_of_measure" json:"unitOfMeasure"`

	StandardPrice types.Money `db:"standard_price" json:"standardPrice"`

	TotalQuantity     types.Quantity `db:"total_quantity" json:"totalQuantity"`
	AvailableQuantity types.Quantity `db:"available_quantity" json:"availableQuantity"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewAsset creates an asset with a fresh ID.
func NewAsset(code, name string, assetType AssetType, price types.Money) *Asset {
	now := time.Now().UTC()
	return &Asset{
		ID:            id.New(),
		Code:          code,
		Name:          name,
		Type:          assetType,
		UnitOfMeasure: UoMPiece,
		StandardPrice: price,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate checks the asset's static invariants.
func (a *Asset) Validate(_ context.Context) error {
	if a.Code == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if a.Type != TypeConsumable && a.Type != TypeFixed {
		return apperror.NewValidation("invalid asset type").
			WithDetail("field", "type").
			WithDetail("value", string(a.Type))
	}
	if a.StandardPrice.IsNegative() {
		return apperror.NewValidation("standard price cannot be negative").WithDetail("field", "standardPrice")
	}
	if a.Cable && !a.Tracked {
		return apperror.NewValidation("cable assets must be tracked as reels").WithDetail("field", "tracked")
	}
	if a.AvailableQuantity.IsNegative() || a.AvailableQuantity > a.TotalQuantity {
		return apperror.NewValidation("available quantity must be within [0, total]").
			WithDetail("available", a.AvailableQuantity.String()).
			WithDetail("total", a.TotalQuantity.String())
	}
	return nil
}

// reserve takes qty out of available stock.
func (a *Asset) reserve(qty types.Quantity) error {
	if qty > a.AvailableQuantity {
		return apperror.NewInsufficientStock(a.ID.String(), qty.String(), a.AvailableQuantity.String())
	}
	a.AvailableQuantity -= qty
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// release puts qty back, never above total. Returns what was actually released.
func (a *Asset) release(qty types.Quantity) types.Quantity {
	released := qty.Min(a.TotalQuantity - a.AvailableQuantity)
	a.AvailableQuantity += released
	a.UpdatedAt = time.Now().UTC()
	return released
}

// receive adds newly delivered stock.
func (a *Asset) receive(qty types.Quantity) {
	a.TotalQuantity += qty
	a.AvailableQuantity += qty
	a.UpdatedAt = time.Now().UTC()
}

// TrackedUnit is one individually identified physical item.
type TrackedUnit struct {
	ID      id.ID `db:"id" json:"id"`
	AssetID id.ID `db:"asset_id" json:"assetId"`

	QRCode       *string `db:"qr_code" json:"qrCode,omitempty"`
	SerialNumber *string `db:"serial_number" json:"serialNumber,omitempty"`
	MACAddress   *string `db:"mac_address" json:"macAddress,omitempty"`

	Status UnitStatus `db:"current_status" json:"status"`

	// WarehouseID is nil while the unit is with a technician or at a customer.
	WarehouseID *id.ID `db:"current_warehouse_id" json:"warehouseId,omitempty"`

	// Reel lengths, set only for cable assets.
	InitialLength *types.Quantity `db:"initial_length" json:"initialLength,omitempty"`
	CurrentLength *types.Quantity `db:"current_length" json:"currentLength,omitempty"`

	DamageNotes *string `db:"damage_notes" json:"damageNotes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsReel reports whether the unit carries a length.
func (u *TrackedUnit) IsReel() bool {
	return u.InitialLength != nil && u.CurrentLength != nil
}

// RemainingLength returns the reel's current length, or zero.
func (u *TrackedUnit) RemainingLength() types.Quantity {
	if u.CurrentLength == nil {
		return 0
	}
	return *u.CurrentLength
}

// Validate checks identifiers, status and reel lengths.
func (u *TrackedUnit) Validate(_ context.Context) error {
	if id.IsNil(u.AssetID) {
		return apperror.NewValidation("asset is required").WithDetail("field", "assetId")
	}
	if blank(u.QRCode) && blank(u.SerialNumber) && blank(u.MACAddress) {
		return apperror.NewValidation("at least one of qrCode, serialNumber, macAddress is required").
			WithDetail("field", "qrCode")
	}
	if !u.Status.IsValid() {
		return apperror.NewValidation("invalid unit status").WithDetail("value", string(u.Status))
	}
	if (u.InitialLength == nil) != (u.CurrentLength == nil) {
		return apperror.NewValidation("initial and current length must be set together").
			WithDetail("field", "currentLength")
	}
	if u.IsReel() {
		if !u.InitialLength.IsPositive() {
			return apperror.NewValidation("initial length must be positive").WithDetail("field", "initialLength")
		}
		if u.CurrentLength.IsNegative() || *u.CurrentLength > *u.InitialLength {
			return apperror.NewValidation("current length must be within [0, initial]").
				WithDetail("field", "currentLength")
		}
	}
	return nil
}

func blank(s *string) bool {
	return s == nil || *s == ""
}

// Location is where a unit sits after a transition.
type Location struct {
	WarehouseID *id.ID
	keep        bool
}

// AtWarehouse places the unit in stock at a warehouse.
func AtWarehouse(warehouseID id.ID) Location {
	return Location{WarehouseID: &warehouseID}
}

// InField means with a technician, at a customer, or otherwise outside stock.
func InField() Location {
	return Location{}
}

// Unchanged leaves the unit's warehouse as it is.
func Unchanged() Location {
	return Location{keep: true}
}

func (l Location) apply(u *TrackedUnit) {
	if l.keep {
		return
	}
	u.WarehouseID = l.WarehouseID
}
