package dto

import (
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/installation"
	"ispledger/internal/domain/inventory"
)

// InstallRequest for POST /installations.
type InstallRequest struct {
	TicketID          string          `json:"ticketId"`
	CustomerID        string          `json:"customerId" binding:"required"`
	ServiceLocationID string          `json:"serviceLocationId" binding:"required"`
	TechnicianID      string          `json:"technicianId" binding:"required"`
	AssetID           string          `json:"assetId" binding:"required"`
	TrackedUnitID     *string         `json:"trackedUnitId"`
	SourceDebtID      string          `json:"sourceDebtId" binding:"required"`
	Quantity          types.Quantity  `json:"quantity"`
	InstalledLength   *types.Quantity `json:"installedLength"`
	Notes             string          `json:"notes"`
}

// ToDomain converts the request to an installation.InstallRequest.
func (r InstallRequest) ToDomain() (installation.InstallRequest, error) {
	assetID, err := parseID("assetId", r.AssetID)
	if err != nil {
		return installation.InstallRequest{}, err
	}
	debtID, err := parseID("sourceDebtId", r.SourceDebtID)
	if err != nil {
		return installation.InstallRequest{}, err
	}
	unitID, err := parseOptionalID("trackedUnitId", r.TrackedUnitID)
	if err != nil {
		return installation.InstallRequest{}, err
	}

	return installation.InstallRequest{
		TicketID:          r.TicketID,
		CustomerID:        r.CustomerID,
		ServiceLocationID: r.ServiceLocationID,
		TechnicianID:      r.TechnicianID,
		AssetID:           assetID,
		TrackedUnitID:     unitID,
		SourceDebtID:      debtID,
		Quantity:          r.Quantity,
		InstalledLength:   r.InstalledLength,
		Notes:             r.Notes,
	}, nil
}

// RemoveRequest for POST /installations/:id/remove.
type RemoveRequest struct {
	Condition   *string `json:"condition" binding:"omitempty,oneof=available damaged scrap lost"`
	WarehouseID *string `json:"warehouseId"`
	Reason      string  `json:"reason"`
}

// ToDomain converts the request for installedID.
func (r RemoveRequest) ToDomain(installedID id.ID) (installation.RemoveRequest, error) {
	warehouseID, err := parseOptionalID("warehouseId", r.WarehouseID)
	if err != nil {
		return installation.RemoveRequest{}, err
	}
	req := installation.RemoveRequest{
		InstalledID: installedID,
		WarehouseID: warehouseID,
		Reason:      r.Reason,
	}
	if r.Condition != nil {
		cond := inventory.UnitStatus(*r.Condition)
		req.Condition = &cond
	}
	return req, nil
}

// ReplaceRequest for POST /installations/:id/replace.
type ReplaceRequest struct {
	Removal RemoveRequest  `json:"removal"`
	Install InstallRequest `json:"install" binding:"required"`
}

// ToDomain converts the request for installedID.
func (r ReplaceRequest) ToDomain(installedID id.ID) (installation.ReplaceRequest, error) {
	removal, err := r.Removal.ToDomain(installedID)
	if err != nil {
		return installation.ReplaceRequest{}, err
	}
	install, err := r.Install.ToDomain()
	if err != nil {
		return installation.ReplaceRequest{}, err
	}
	return installation.ReplaceRequest{Removal: removal, Install: install}, nil
}

// LengthAuditRequest for the audit-length routes.
type LengthAuditRequest struct {
	Measured *types.Quantity `json:"measured" binding:"required"`
}

// InstallationListRequest for GET /installations.
type InstallationListRequest struct {
	PaginationRequest
	CustomerID        string   `form:"customerId"`
	ServiceLocationID string   `form:"serviceLocationId"`
	TechnicianID      string   `form:"technicianId"`
	Status            []string `form:"status" binding:"omitempty,dive,oneof=installed removed replaced damaged"`
}

// ToFilter converts query parameters to an installation.Filter.
func (r InstallationListRequest) ToFilter() installation.Filter {
	f := installation.Filter{Limit: r.Limit, Offset: r.Offset}
	if r.CustomerID != "" {
		f.CustomerID = &r.CustomerID
	}
	if r.ServiceLocationID != "" {
		f.ServiceLocationID = &r.ServiceLocationID
	}
	if r.TechnicianID != "" {
		f.TechnicianID = &r.TechnicianID
	}
	for _, s := range r.Status {
		f.Statuses = append(f.Statuses, installation.Status(s))
	}
	return f
}
