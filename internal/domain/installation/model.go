// Package installation converts technician custody into assets placed at
// customer sites, and handles their removal and replacement.
package installation

import (
	"time"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/inventory"
)

// Status of an installed asset.
type Status string

const (
	StatusInstalled Status = "installed"
	StatusRemoved   Status = "removed"
	StatusReplaced  Status = "replaced"
	StatusDamaged   Status = "damaged"
)

// removable lists the statuses Remove accepts.
var removable = []Status{StatusInstalled, StatusReplaced}

// InstalledAsset is an asset placed at a customer's service location.
type InstalledAsset struct {
	ID                id.ID   `db:"id" json:"id"`
	TicketID          *string `db:"ticket_id" json:"ticketId,omitempty"`
	CustomerID        string  `db:"customer_id" json:"customerId"`
	ServiceLocationID string  `db:"service_location_id" json:"serviceLocationId"`
	TechnicianID      string  `db:"technician_id" json:"technicianId"`

	AssetID       id.ID  `db:"asset_id" json:"assetId"`
	TrackedUnitID *id.ID `db:"tracked_unit_id" json:"trackedUnitId,omitempty"`
	SourceDebtID  id.ID  `db:"source_debt_id" json:"sourceDebtId"`

	QuantityInstalled types.Quantity `db:"quantity_installed" json:"quantityInstalled"`
	UnitValue         types.Money    `db:"unit_value" json:"unitValue"`
	TotalAssetValue   types.Money    `db:"total_asset_value" json:"totalAssetValue"`

	// Cable rows only.
	InstalledLength *types.Quantity `db:"installed_length" json:"installedLength,omitempty"`
	CurrentLength   *types.Quantity `db:"current_length" json:"currentLength,omitempty"`

	Status        Status     `db:"status" json:"status"`
	InstalledAt   time.Time  `db:"installed_at" json:"installedAt"`
	RemovedAt     *time.Time `db:"removed_at" json:"removedAt,omitempty"`
	RemovalReason *string    `db:"removal_reason" json:"removalReason,omitempty"`
	ReplacedByID  *id.ID     `db:"replaced_by_id" json:"replacedById,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsCable reports whether the row tracks a length.
func (a *InstalledAsset) IsCable() bool {
	return a.InstalledLength != nil
}

// markRemoved zeroes the value and clears any cable length.
func (a *InstalledAsset) markRemoved(to Status, reason string) {
	at := time.Now().UTC()
	a.Status = to
	a.TotalAssetValue = types.Zero()
	a.CurrentLength = nil
	a.RemovedAt = &at
	a.UpdatedAt = at
	if reason != "" {
		a.RemovalReason = &reason
	}
}

// InstallRequest installs from one of the technician's debts.
type InstallRequest struct {
	TicketID          string
	CustomerID        string
	ServiceLocationID string
	TechnicianID      string
	AssetID           id.ID
	TrackedUnitID     *id.ID
	SourceDebtID      id.ID
	Quantity          types.Quantity
	// InstalledLength is required for cable reels and ignored otherwise.
	InstalledLength *types.Quantity
	Notes           string
}

func (r InstallRequest) validate() error {
	if r.CustomerID == "" {
		return apperror.NewValidation("customer is required").WithDetail("field", "customerId")
	}
	if r.ServiceLocationID == "" {
		return apperror.NewValidation("service location is required").WithDetail("field", "serviceLocationId")
	}
	if r.TechnicianID == "" {
		return apperror.NewValidation("technician is required").WithDetail("field", "technicianId")
	}
	if id.IsNil(r.AssetID) {
		return apperror.NewValidation("asset is required").WithDetail("field", "assetId")
	}
	if id.IsNil(r.SourceDebtID) {
		return apperror.NewValidation("source debt is required").WithDetail("field", "sourceDebtId")
	}
	if r.Quantity.IsNegative() {
		return apperror.NewValidation("quantity cannot be negative").WithDetail("field", "quantity")
	}
	return nil
}

// RemoveRequest takes an installed asset out of service.
type RemoveRequest struct {
	InstalledID id.ID
	// Condition of a tracked unit coming back; nil means damaged.
	Condition *inventory.UnitStatus
	// WarehouseID confirms a physical return. Without it a tracked unit is presumed lost.
	WarehouseID *id.ID
	Reason      string
}

var removalConditions = []inventory.UnitStatus{
	inventory.UnitAvailable, inventory.UnitDamaged, inventory.UnitScrap, inventory.UnitLost,
}

// ReplaceRequest removes an installed asset and installs another from a new debt.
type ReplaceRequest struct {
	Removal RemoveRequest
	Install InstallRequest
}

// Filter narrows List.
type Filter struct {
	CustomerID        *string
	ServiceLocationID *string
	TechnicianID      *string
	Statuses          []Status
	Limit             int
	Offset            int
}
