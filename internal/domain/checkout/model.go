// Package checkout converts a technician's request into loaned units,
// reserved stock and new debts, flagging checkouts above the debt limit.
package checkout

import (
	"time"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
)

// ApprovalStatus tracks NOC sign-off for checkouts above the limit.
type ApprovalStatus string

const (
	ApprovalNotRequired ApprovalStatus = "not_required"
	ApprovalPending     ApprovalStatus = "pending"
	ApprovalApproved    ApprovalStatus = "approved"
	ApprovalRejected    ApprovalStatus = "rejected"
)

// Checkout is the summary record of one checkout call.
type Checkout struct {
	ID           id.ID  `db:"id" json:"id"`
	Number       string `db:"number" json:"number"`
	TechnicianID string `db:"technician_id" json:"technicianId"`
	WarehouseID  id.ID  `db:"warehouse_id" json:"warehouseId"`

	TotalValue types.Money `db:"total_value" json:"totalValue"`
	// Debt position at checkout time.
	CurrentDebt types.Money `db:"current_debt" json:"currentDebt"`
	DebtLimit   types.Money `db:"debt_limit" json:"debtLimit"`

	ExceedLimit      bool           `db:"exceed_limit" json:"exceedLimit"`
	RequiresApproval bool           `db:"requires_approval" json:"requiresApproval"`
	ApprovalStatus   ApprovalStatus `db:"approval_status" json:"approvalStatus"`
	ApprovedBy       *string        `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time     `db:"approved_at" json:"approvedAt,omitempty"`
	ApprovalNotes    *string        `db:"approval_notes" json:"approvalNotes,omitempty"`

	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	DebtIDs []id.ID `db:"-" json:"debtIds"`
}

// resolve moves a pending checkout to approved or rejected.
func (c *Checkout) resolve(to ApprovalStatus, by, notes string) error {
	if c.ApprovalStatus != ApprovalPending {
		return apperror.NewInvalidStateTransition("checkout", c.ID, string(c.ApprovalStatus), string(to))
	}
	at := time.Now().UTC()
	c.ApprovalStatus = to
	c.ApprovedBy = &by
	c.ApprovedAt = &at
	if notes != "" {
		c.ApprovalNotes = &notes
	}
	return nil
}

// Line requests one asset. Tracked lines carry quantity 1 implicitly and may
// name the exact unit; without one, any available unit at the warehouse is used.
type Line struct {
	AssetID       id.ID
	Quantity      types.Quantity
	TrackedUnitID *id.ID
}

// Request is one checkout call.
type Request struct {
	TechnicianID string
	WarehouseID  id.ID
	Lines        []Line
	Notes        string
}

func (r Request) validate() error {
	if r.TechnicianID == "" {
		return apperror.NewValidation("technician is required").WithDetail("field", "technicianId")
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	units := make(map[id.ID]bool)
	for i, l := range r.Lines {
		if id.IsNil(l.AssetID) {
			return apperror.NewValidation("asset is required").WithDetail("line", i)
		}
		if l.Quantity.IsNegative() {
			return apperror.NewValidation("quantity cannot be negative").WithDetail("line", i)
		}
		if l.TrackedUnitID != nil {
			if units[*l.TrackedUnitID] {
				return apperror.NewValidation("tracked unit listed twice").
					WithDetail("trackedUnitId", l.TrackedUnitID.String())
			}
			units[*l.TrackedUnitID] = true
		}
	}
	return nil
}

// Result is what a checkout returns to the caller.
type Result struct {
	Checkout *Checkout `json:"checkout"`
	DebtIDs  []id.ID   `json:"debtIds"`
}
