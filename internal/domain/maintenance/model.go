// Package maintenance drives tracked units through repair, supplier return
// and write-off, keeping an append-only history per unit.
package maintenance

import (
	"time"

	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/inventory"
)

// RepairStatus of one repair attempt.
type RepairStatus string

const (
	RepairInProgress RepairStatus = "in_progress"
	RepairCompleted  RepairStatus = "completed"
	RepairFailed     RepairStatus = "failed"
)

// Repair is one repair attempt. It is closed exactly once; a new attempt is a new row.
type Repair struct {
	ID            id.ID                 `db:"id" json:"id"`
	TrackedUnitID id.ID                 `db:"tracked_unit_id" json:"trackedUnitId"`
	Status        RepairStatus          `db:"status" json:"status"`
	Description   *string               `db:"description" json:"description,omitempty"`
	Outcome       *inventory.UnitStatus `db:"outcome" json:"outcome,omitempty"`
	Cost          *types.Money          `db:"cost" json:"cost,omitempty"`
	Notes         *string               `db:"notes" json:"notes,omitempty"`
	StartedBy     string                `db:"started_by" json:"startedBy"`
	StartedAt     time.Time             `db:"started_at" json:"startedAt"`
	ClosedBy      *string               `db:"closed_by" json:"closedBy,omitempty"`
	ClosedAt      *time.Time            `db:"closed_at" json:"closedAt,omitempty"`
}

// SupplierReturnStatus of one supplier return.
type SupplierReturnStatus string

const (
	SupplierSent     SupplierReturnStatus = "sent"
	SupplierReceived SupplierReturnStatus = "received"
	SupplierReplaced SupplierReturnStatus = "replaced"
	SupplierRejected SupplierReturnStatus = "rejected"
)

// SupplierReturn records a unit sent back to its supplier.
type SupplierReturn struct {
	ID                id.ID                 `db:"id" json:"id"`
	TrackedUnitID     id.ID                 `db:"tracked_unit_id" json:"trackedUnitId"`
	SupplierID        string                `db:"supplier_id" json:"supplierId"`
	Status            SupplierReturnStatus  `db:"status" json:"status"`
	Reason            *string               `db:"reason" json:"reason,omitempty"`
	ReplacementUnitID *id.ID                `db:"replacement_unit_id" json:"replacementUnitId,omitempty"`
	Outcome           *inventory.UnitStatus `db:"outcome" json:"outcome,omitempty"`
	Notes             *string               `db:"notes" json:"notes,omitempty"`
	SentBy            string                `db:"sent_by" json:"sentBy"`
	SentAt            time.Time             `db:"sent_at" json:"sentAt"`
	ResolvedBy        *string               `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt        *time.Time            `db:"resolved_at" json:"resolvedAt,omitempty"`
}

// WriteOff records a unit leaving usable inventory for good.
type WriteOff struct {
	ID             id.ID                `db:"id" json:"id"`
	TrackedUnitID  id.ID                `db:"tracked_unit_id" json:"trackedUnitId"`
	PreviousStatus inventory.UnitStatus `db:"previous_status" json:"previousStatus"`
	Reason         string               `db:"reason" json:"reason"`
	// DebtIDs lists the debts extinguished with the unit.
	DebtIDs    []id.ID   `db:"debt_ids" json:"debtIds"`
	RecordedBy string    `db:"recorded_by" json:"recordedBy"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// History is everything maintenance recorded for one unit, oldest first.
type History struct {
	Repairs         []*Repair         `json:"repairs"`
	SupplierReturns []*SupplierReturn `json:"supplierReturns"`
	WriteOffs       []*WriteOff       `json:"writeOffs"`
}
