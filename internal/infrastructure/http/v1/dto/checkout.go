package dto

import (
	"ispledger/internal/core/types"
	"ispledger/internal/domain/checkout"
)

// CheckoutLineRequest is one requested asset.
type CheckoutLineRequest struct {
	AssetID       string         `json:"assetId" binding:"required"`
	Quantity      types.Quantity `json:"quantity"`
	TrackedUnitID *string        `json:"trackedUnitId"`
}

// CheckoutRequest for POST /checkouts.
type CheckoutRequest struct {
	TechnicianID string                `json:"technicianId" binding:"required"`
	WarehouseID  string                `json:"warehouseId" binding:"required"`
	Lines        []CheckoutLineRequest `json:"lines" binding:"required,min=1,dive"`
	Notes        string                `json:"notes"`
}

// ToDomain converts the request to a checkout.Request.
func (r CheckoutRequest) ToDomain() (checkout.Request, error) {
	warehouseID, err := parseID("warehouseId", r.WarehouseID)
	if err != nil {
		return checkout.Request{}, err
	}

	lines := make([]checkout.Line, len(r.Lines))
	for i, l := range r.Lines {
		assetID, err := parseID("lines.assetId", l.AssetID)
		if err != nil {
			return checkout.Request{}, err
		}
		unitID, err := parseOptionalID("lines.trackedUnitId", l.TrackedUnitID)
		if err != nil {
			return checkout.Request{}, err
		}
		lines[i] = checkout.Line{AssetID: assetID, Quantity: l.Quantity, TrackedUnitID: unitID}
	}

	return checkout.Request{
		TechnicianID: r.TechnicianID,
		WarehouseID:  warehouseID,
		Lines:        lines,
		Notes:        r.Notes,
	}, nil
}

// CheckoutListRequest for GET /checkouts.
type CheckoutListRequest struct {
	PaginationRequest
	TechnicianID   string `form:"technicianId"`
	ApprovalStatus string `form:"approvalStatus" binding:"omitempty,oneof=not_required pending approved rejected"`
}

// ToFilter converts query parameters to a checkout.Filter.
func (r CheckoutListRequest) ToFilter() checkout.Filter {
	f := checkout.Filter{Limit: r.Limit, Offset: r.Offset}
	if r.TechnicianID != "" {
		f.TechnicianID = &r.TechnicianID
	}
	if r.ApprovalStatus != "" {
		s := checkout.ApprovalStatus(r.ApprovalStatus)
		f.ApprovalStatus = &s
	}
	return f
}
