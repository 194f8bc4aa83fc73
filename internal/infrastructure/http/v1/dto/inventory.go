package dto

import (
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/inventory"
)

// CreateAssetRequest for POST /assets.
type CreateAssetRequest struct {
	Code          string          `json:"code" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Category      string          `json:"category"`
	Type          string          `json:"type" binding:"required,oneof=consumable fixed"`
	Tracked       bool            `json:"tracked"`
	Cable         bool            `json:"isCable"`
	StandardPrice *types.Money    `json:"standardPrice" binding:"required"`
	TotalQuantity *types.Quantity `json:"totalQuantity"`
}

// ToDomain builds the asset. Cable assets are counted in metres.
func (r CreateAssetRequest) ToDomain() *inventory.Asset {
	a := inventory.NewAsset(r.Code, r.Name, inventory.AssetType(r.Type), *r.StandardPrice)
	a.Category = r.Category
	a.Tracked = r.Tracked
	a.Cable = r.Cable
	if r.Cable {
		a.UnitOfMeasure = inventory.UoMMetre
	}
	if r.TotalQuantity != nil {
		a.TotalQuantity = *r.TotalQuantity
	}
	return a
}

// AssetListRequest for GET /assets.
type AssetListRequest struct {
	PaginationRequest
	Category string `form:"category"`
	Tracked  *bool  `form:"tracked"`
	Search   string `form:"search"`
}

// ToFilter converts query parameters to an inventory.AssetFilter.
func (r AssetListRequest) ToFilter() inventory.AssetFilter {
	f := inventory.AssetFilter{Tracked: r.Tracked, Search: r.Search, Limit: r.Limit, Offset: r.Offset}
	if r.Category != "" {
		f.Category = &r.Category
	}
	return f
}

// ReceiptRequest for POST /assets/:id/receipts.
type ReceiptRequest struct {
	Quantity types.Quantity `json:"quantity"`
}

// RegisterUnitRequest for POST /units.
type RegisterUnitRequest struct {
	AssetID       string          `json:"assetId" binding:"required"`
	WarehouseID   string          `json:"warehouseId" binding:"required"`
	QRCode        *string         `json:"qrCode"`
	SerialNumber  *string         `json:"serialNumber"`
	MACAddress    *string         `json:"macAddress"`
	InitialLength *types.Quantity `json:"initialLength"`
}

// ToDomain builds the unit.
func (r RegisterUnitRequest) ToDomain() (*inventory.TrackedUnit, error) {
	assetID, err := parseID("assetId", r.AssetID)
	if err != nil {
		return nil, err
	}
	warehouseID, err := parseID("warehouseId", r.WarehouseID)
	if err != nil {
		return nil, err
	}
	return &inventory.TrackedUnit{
		AssetID:       assetID,
		WarehouseID:   &warehouseID,
		QRCode:        nonEmpty(r.QRCode),
		SerialNumber:  nonEmpty(r.SerialNumber),
		MACAddress:    nonEmpty(r.MACAddress),
		InitialLength: r.InitialLength,
	}, nil
}

// UnitListRequest for GET /units.
type UnitListRequest struct {
	PaginationRequest
	AssetID     string   `form:"assetId"`
	WarehouseID string   `form:"warehouseId"`
	Status      []string `form:"status"`
}

// ToFilter converts query parameters to an inventory.UnitFilter.
func (r UnitListRequest) ToFilter() (inventory.UnitFilter, error) {
	f := inventory.UnitFilter{Limit: r.Limit, Offset: r.Offset}
	var err error
	if f.AssetID, err = parseOptionalID("assetId", &r.AssetID); err != nil {
		return f, err
	}
	if f.WarehouseID, err = parseOptionalID("warehouseId", &r.WarehouseID); err != nil {
		return f, err
	}
	for _, s := range r.Status {
		f.Statuses = append(f.Statuses, inventory.UnitStatus(s))
	}
	return f, nil
}

// WarehouseRequest names a destination warehouse.
type WarehouseRequest struct {
	WarehouseID string `json:"warehouseId" binding:"required"`
}

// Parse returns the warehouse ID.
func (r WarehouseRequest) Parse() (id.ID, error) {
	return parseID("warehouseId", r.WarehouseID)
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
