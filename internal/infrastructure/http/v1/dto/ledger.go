package dto

import (
	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/ledger"
)

// --- Debts ---

// DebtListRequest for GET /debts.
type DebtListRequest struct {
	PaginationRequest
	TechnicianID  string   `form:"technicianId"`
	AssetID       string   `form:"assetId"`
	TrackedUnitID string   `form:"trackedUnitId"`
	CheckoutID    string   `form:"checkoutId"`
	Status        []string `form:"status" binding:"omitempty,dive,oneof=active partially_returned fully_settled written_off"`
}

// ToFilter converts query parameters to a ledger.DebtFilter.
func (r DebtListRequest) ToFilter() (ledger.DebtFilter, error) {
	f := ledger.DebtFilter{Limit: r.Limit, Offset: r.Offset}
	if r.TechnicianID != "" {
		f.TechnicianID = &r.TechnicianID
	}

	var err error
	if f.AssetID, err = parseOptionalID("assetId", &r.AssetID); err != nil {
		return f, err
	}
	if f.TrackedUnitID, err = parseOptionalID("trackedUnitId", &r.TrackedUnitID); err != nil {
		return f, err
	}
	if f.CheckoutID, err = parseOptionalID("checkoutId", &r.CheckoutID); err != nil {
		return f, err
	}
	for _, s := range r.Status {
		f.Statuses = append(f.Statuses, ledger.DebtStatus(s))
	}
	return f, nil
}

// ReturnLineRequest returns part or all of one debt.
type ReturnLineRequest struct {
	DebtID    string         `json:"debtId" binding:"required"`
	Quantity  types.Quantity `json:"quantity"`
	Condition *string        `json:"condition" binding:"omitempty,oneof=available damaged scrap lost"`
}

// ReturnRequest for POST /debts/returns.
type ReturnRequest struct {
	TechnicianID string              `json:"technicianId" binding:"required"`
	WarehouseID  string              `json:"warehouseId" binding:"required"`
	Lines        []ReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToDomain converts the request to a ledger.ReturnRequest.
func (r ReturnRequest) ToDomain() (ledger.ReturnRequest, error) {
	warehouseID, err := parseID("warehouseId", r.WarehouseID)
	if err != nil {
		return ledger.ReturnRequest{}, err
	}

	lines := make([]ledger.ReturnLine, len(r.Lines))
	for i, l := range r.Lines {
		debtID, err := parseID("lines.debtId", l.DebtID)
		if err != nil {
			return ledger.ReturnRequest{}, err
		}
		lines[i] = ledger.ReturnLine{DebtID: debtID, Quantity: l.Quantity}
		if l.Condition != nil {
			cond := inventory.UnitStatus(*l.Condition)
			lines[i].Condition = &cond
		}
	}

	return ledger.ReturnRequest{
		TechnicianID: r.TechnicianID,
		WarehouseID:  warehouseID,
		Lines:        lines,
	}, nil
}

// IncidentRequest for POST /debts/:id/incident.
type IncidentRequest struct {
	TechnicianID string `json:"technicianId" binding:"required"`
	Condition    string `json:"condition" binding:"required,oneof=damaged lost"`
	Notes        string `json:"notes"`
}

// ToDomain converts the request for debtID.
func (r IncidentRequest) ToDomain(debtID id.ID) ledger.IncidentRequest {
	return ledger.IncidentRequest{
		TechnicianID: r.TechnicianID,
		DebtID:       debtID,
		Condition:    inventory.UnitStatus(r.Condition),
		Notes:        r.Notes,
	}
}

// --- Settlements ---

// SettleRequest for POST /settlements.
type SettleRequest struct {
	TechnicianID    string       `json:"technicianId" binding:"required"`
	DebtIDs         []string     `json:"debtIds" binding:"required,min=1"`
	SalaryDeduction *types.Money `json:"salaryDeduction"`
	CashPayment     *types.Money `json:"cashPayment"`
	Notes           string       `json:"notes"`
}

// ToDomain converts the request to a ledger.SettleRequest. Missing payment
// parts count as zero.
func (r SettleRequest) ToDomain() (ledger.SettleRequest, error) {
	debtIDs := make([]id.ID, len(r.DebtIDs))
	for i, s := range r.DebtIDs {
		v, err := parseID("debtIds", s)
		if err != nil {
			return ledger.SettleRequest{}, err
		}
		debtIDs[i] = v
	}

	req := ledger.SettleRequest{
		TechnicianID:    r.TechnicianID,
		DebtIDs:         debtIDs,
		SalaryDeduction: types.Zero(),
		CashPayment:     types.Zero(),
		Notes:           r.Notes,
	}
	if r.SalaryDeduction != nil {
		req.SalaryDeduction = *r.SalaryDeduction
	}
	if r.CashPayment != nil {
		req.CashPayment = *r.CashPayment
	}
	return req, nil
}

// SettlementListRequest for GET /settlements.
type SettlementListRequest struct {
	PaginationRequest
	TechnicianID string `form:"technicianId"`
}

// ToFilter converts query parameters to a ledger.SettlementFilter.
func (r SettlementListRequest) ToFilter() ledger.SettlementFilter {
	f := ledger.SettlementFilter{Limit: r.Limit, Offset: r.Offset}
	if r.TechnicianID != "" {
		f.TechnicianID = &r.TechnicianID
	}
	return f
}

// --- Debt limits ---

// DebtLimitRequest for PUT /technicians/:id/debt-limit.
type DebtLimitRequest struct {
	Limit *types.Money `json:"limit" binding:"required"`
}

// Value returns the validated limit.
func (r DebtLimitRequest) Value() (types.Money, error) {
	if r.Limit == nil {
		return types.Zero(), apperror.NewValidation("limit is required").WithDetail("field", "limit")
	}
	return *r.Limit, nil
}
