package dto

import (
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/maintenance"
)

// StartRepairRequest for POST /units/:id/repair/start.
type StartRepairRequest struct {
	Description string `json:"description"`
}

// CompleteRepairRequest for POST /units/:id/repair/complete.
type CompleteRepairRequest struct {
	WarehouseID string       `json:"warehouseId" binding:"required"`
	Cost        *types.Money `json:"cost"`
	Notes       string       `json:"notes"`
}

// FailedOutcomeRequest ends a repair or supplier return unsuccessfully.
type FailedOutcomeRequest struct {
	Outcome     string  `json:"outcome" binding:"required,oneof=damaged scrap written_off"`
	WarehouseID *string `json:"warehouseId"`
	Notes       string  `json:"notes"`
}

// ParsedOutcome returns the outcome status and optional warehouse.
func (r FailedOutcomeRequest) ParsedOutcome() (inventory.UnitStatus, *id.ID, error) {
	warehouseID, err := parseOptionalID("warehouseId", r.WarehouseID)
	if err != nil {
		return "", nil, err
	}
	return inventory.UnitStatus(r.Outcome), warehouseID, nil
}

// SendToSupplierRequest for POST /units/:id/supplier/send.
type SendToSupplierRequest struct {
	SupplierID string `json:"supplierId" binding:"required"`
	Reason     string `json:"reason"`
}

// ReplacementUnitRequest identifies the new unit a supplier sent back.
type ReplacementUnitRequest struct {
	AssetID       *string         `json:"assetId"`
	QRCode        *string         `json:"qrCode"`
	SerialNumber  *string         `json:"serialNumber"`
	MACAddress    *string         `json:"macAddress"`
	InitialLength *types.Quantity `json:"initialLength"`
}

// ReceiveFromSupplierRequest for POST /units/:id/supplier/receive.
type ReceiveFromSupplierRequest struct {
	WarehouseID string                  `json:"warehouseId" binding:"required"`
	Replacement *ReplacementUnitRequest `json:"replacement"`
	Notes       string                  `json:"notes"`
}

// ToDomain converts the request for unitID.
func (r ReceiveFromSupplierRequest) ToDomain(unitID id.ID) (maintenance.ReceiveRequest, error) {
	warehouseID, err := parseID("warehouseId", r.WarehouseID)
	if err != nil {
		return maintenance.ReceiveRequest{}, err
	}
	req := maintenance.ReceiveRequest{UnitID: unitID, WarehouseID: warehouseID, Notes: r.Notes}

	if rep := r.Replacement; rep != nil {
		unit := &inventory.TrackedUnit{
			QRCode:        nonEmpty(rep.QRCode),
			SerialNumber:  nonEmpty(rep.SerialNumber),
			MACAddress:    nonEmpty(rep.MACAddress),
			InitialLength: rep.InitialLength,
		}
		assetID, err := parseOptionalID("replacement.assetId", rep.AssetID)
		if err != nil {
			return maintenance.ReceiveRequest{}, err
		}
		if assetID != nil {
			unit.AssetID = *assetID
		}
		req.Replacement = unit
	}
	return req, nil
}
