// Package ledger owns the technician debt lifecycle: creation at checkout,
// partial returns, settlement by payment, installation and write-off.
package ledger

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
)

// DebtStatus is the lifecycle state of a debt.
type DebtStatus string

const (
	DebtActive            DebtStatus = "active"
	DebtPartiallyReturned DebtStatus = "partially_returned"
	DebtFullySettled      DebtStatus = "fully_settled"
	DebtWrittenOff        DebtStatus = "written_off"
)

var debtTransitions = map[DebtStatus][]DebtStatus{
	DebtActive:            {DebtPartiallyReturned, DebtFullySettled, DebtWrittenOff},
	DebtPartiallyReturned: {DebtPartiallyReturned, DebtFullySettled, DebtWrittenOff},
	DebtFullySettled:      {},
	DebtWrittenOff:        {},
}

// OpenStatuses are the statuses that still count towards outstanding debt.
var OpenStatuses = []DebtStatus{DebtActive, DebtPartiallyReturned}

// IsOpen reports whether the debt still carries an obligation.
func (s DebtStatus) IsOpen() bool {
	return s == DebtActive || s == DebtPartiallyReturned
}

// IsValid reports whether s is a known status.
func (s DebtStatus) IsValid() bool {
	_, ok := debtTransitions[s]
	return ok
}

// CanTransitionDebt reports whether from -> to is allowed.
func CanTransitionDebt(from, to DebtStatus) bool {
	return slices.Contains(debtTransitions[from], to)
}

// Debt is an open obligation for assets in a technician's custody.
//
// current_debt_value is always current_debt_quantity x unit_price; it is
// recomputed on every mutation rather than decremented independently.
type Debt struct {
	ID            id.ID  `db:"id" json:"id"`
	TechnicianID  string `db:"technician_id" json:"technicianId"`
	AssetID       id.ID  `db:"asset_id" json:"assetId"`
	TrackedUnitID *id.ID `db:"tracked_unit_id" json:"trackedUnitId,omitempty"`
	CheckoutID    *id.ID `db:"checkout_id" json:"checkoutId,omitempty"`

	// LengthDenominated debts count metres of a cable reel, not pieces.
	LengthDenominated bool `db:"length_denominated" json:"lengthDenominated"`

	QuantityTaken  types.Quantity `db:"quantity_taken" json:"quantityTaken"`
	UnitPrice      types.Money    `db:"unit_price" json:"unitPrice"`
	TotalDebtValue types.Money    `db:"total_debt_value" json:"totalDebtValue"`

	CurrentDebtQuantity types.Quantity `db:"current_debt_quantity" json:"currentDebtQuantity"`
	CurrentDebtValue    types.Money    `db:"current_debt_value" json:"currentDebtValue"`

	Status         DebtStatus `db:"status" json:"status"`
	CheckoutDate   time.Time  `db:"checkout_date" json:"checkoutDate"`
	WriteOffReason *string    `db:"write_off_reason" json:"writeOffReason,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewDebt creates an active debt whose current values equal the taken values.
func NewDebt(technicianID string, assetID id.ID, unitID *id.ID, qty types.Quantity, unitPrice types.Money) *Debt {
	now := time.Now().UTC()
	value := qty.Value(unitPrice)
	return &Debt{
		ID:                  id.New(),
		TechnicianID:        technicianID,
		AssetID:             assetID,
		TrackedUnitID:       unitID,
		QuantityTaken:       qty,
		UnitPrice:           unitPrice,
		TotalDebtValue:      value,
		CurrentDebtQuantity: qty,
		CurrentDebtValue:    value,
		Status:              DebtActive,
		CheckoutDate:        now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Validate checks the debt's static invariants.
func (d *Debt) Validate(_ context.Context) error {
	if d.TechnicianID == "" {
		return apperror.NewValidation("technician is required").WithDetail("field", "technicianId")
	}
	if id.IsNil(d.AssetID) {
		return apperror.NewValidation("asset is required").WithDetail("field", "assetId")
	}
	if !d.QuantityTaken.IsPositive() {
		return apperror.NewValidation("quantity taken must be positive").WithDetail("field", "quantityTaken")
	}
	if d.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").WithDetail("field", "unitPrice")
	}
	if d.CurrentDebtQuantity.IsNegative() || d.CurrentDebtQuantity > d.QuantityTaken {
		return apperror.NewValidation("current debt quantity must be within [0, quantity taken]").
			WithDetail("field", "currentDebtQuantity")
	}
	if !d.Status.IsValid() {
		return apperror.NewValidation("invalid debt status").WithDetail("value", string(d.Status))
	}
	return nil
}

// Reconciles reports whether the value matches quantity x price.
func (d *Debt) Reconciles() bool {
	return d.CurrentDebtValue.Equal(d.CurrentDebtQuantity.Value(d.UnitPrice)) &&
		d.CurrentDebtQuantity <= d.QuantityTaken
}

// Reduce takes qty off the remaining obligation. A remainder within epsilon
// rounds to exactly zero and settles the debt.
func (d *Debt) Reduce(qty types.Quantity) error {
	if !d.Status.IsOpen() {
		return apperror.NewDebtNotReturnable(d.ID, string(d.Status))
	}
	if qty > d.CurrentDebtQuantity+types.QuantityEpsilon {
		return apperror.NewInsufficientDebtQuantity(d.ID, qty.String(), d.CurrentDebtQuantity.String())
	}

	remaining := d.CurrentDebtQuantity - qty
	next := DebtPartiallyReturned
	if remaining <= types.QuantityEpsilon {
		remaining = 0
		next = DebtFullySettled
	}
	return d.apply(remaining, next)
}

// ForceSettle zeroes the debt as paid, whatever its partial history.
func (d *Debt) ForceSettle() error {
	return d.apply(0, DebtFullySettled)
}

// WriteOff extinguishes the obligation.
func (d *Debt) WriteOff(reason string) error {
	if err := d.apply(0, DebtWrittenOff); err != nil {
		return err
	}
	if reason != "" {
		d.WriteOffReason = &reason
	}
	return nil
}

func (d *Debt) apply(remaining types.Quantity, next DebtStatus) error {
	if !CanTransitionDebt(d.Status, next) {
		return apperror.NewInvalidStateTransition("debt", d.ID, string(d.Status), string(next))
	}
	d.CurrentDebtQuantity = remaining
	d.CurrentDebtValue = remaining.Value(d.UnitPrice)
	d.Status = next
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// SettlementStatus is the state of a settlement.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementProcessed SettlementStatus = "processed"
)

// Settlement is a payment that closes one or more debts.
type Settlement struct {
	ID           id.ID  `db:"id" json:"id"`
	Number       string `db:"number" json:"number"`
	TechnicianID string `db:"technician_id" json:"technicianId"`

	TotalDebtAmount types.Money `db:"total_debt_amount" json:"totalDebtAmount"`
	SalaryDeduction types.Money `db:"salary_deduction" json:"salaryDeduction"`
	CashPayment     types.Money `db:"cash_payment" json:"cashPayment"`
	RemainingDebt   types.Money `db:"remaining_debt" json:"remainingDebt"`

	Status      SettlementStatus `db:"status" json:"status"`
	Notes       *string          `db:"notes" json:"notes,omitempty"`
	ProcessedBy string           `db:"processed_by" json:"processedBy"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`

	Lines []SettlementLine `db:"-" json:"lines"`
}

// TotalPaid is salary deduction plus cash.
func (s *Settlement) TotalPaid() types.Money {
	return s.SalaryDeduction.Add(s.CashPayment)
}

// DebtIDs lists the debts the settlement closed.
func (s *Settlement) DebtIDs() []id.ID {
	out := make([]id.ID, 0, len(s.Lines))
	for _, l := range s.Lines {
		out = append(out, l.DebtID)
	}
	return out
}

// SettlementLine records how much of one debt a settlement closed.
type SettlementLine struct {
	ID             id.ID          `db:"id" json:"id"`
	SettlementID   id.ID          `db:"settlement_id" json:"settlementId"`
	DebtID         id.ID          `db:"debt_id" json:"debtId"`
	QuantityClosed types.Quantity `db:"quantity_closed" json:"quantityClosed"`
	AmountClosed   types.Money    `db:"amount_closed" json:"amountClosed"`
}

// remainingAfter is max(0, total - paid).
func remainingAfter(total, paid types.Money) types.Money {
	return decimal.Max(total.Sub(paid), decimal.Zero)
}
