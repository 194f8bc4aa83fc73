package handlers

import (
	"github.com/gin-gonic/gin"

	"ispledger/internal/core/types"
	"ispledger/internal/domain/debtpolicy"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/infrastructure/http/v1/dto"
)

// LedgerHandler handles debts, settlements and technician debt limits.
type LedgerHandler struct {
	*BaseHandler
	service *ledger.Service
	policy  *debtpolicy.Policy
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, service *ledger.Service, policy *debtpolicy.Policy) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, service: service, policy: policy}
}

// ListDebts handles GET /debts
func (h *LedgerHandler) ListDebts(c *gin.Context) {
	var req dto.DebtListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	debts, err := h.service.ListDebts(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(debts, req.PaginationRequest))
}

// GetDebt handles GET /debts/:id
func (h *LedgerHandler) GetDebt(c *gin.Context) {
	debtID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	debt, err := h.service.GetDebt(c.Request.Context(), debtID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, debt)
}

// Return handles POST /debts/returns
func (h *LedgerHandler) Return(c *gin.Context) {
	var req dto.ReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	domainReq, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Return(c.Request.Context(), domainReq)
	if !h.Track(c, "return", err) {
		return
	}
	h.OK(c, result)
}

// ReportIncident handles POST /debts/:id/incident
func (h *LedgerHandler) ReportIncident(c *gin.Context) {
	debtID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.IncidentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	unit, err := h.service.ReportIncident(c.Request.Context(), req.ToDomain(debtID))
	if !h.Track(c, "incident", err) {
		return
	}
	h.OK(c, unit)
}

// WriteOffDebt handles POST /debts/:id/write-off
func (h *LedgerHandler) WriteOffDebt(c *gin.Context) {
	debtID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}

	debt, err := h.service.WriteOffDebt(c.Request.Context(), debtID, req.Reason)
	if !h.Track(c, "debt_write_off", err) {
		return
	}
	h.OK(c, debt)
}

// GetDebtLimit handles GET /technicians/:id/debt-limit
// It returns the technician's debt summary: outstanding debt, limit and credit left.
func (h *LedgerHandler) GetDebtLimit(c *gin.Context) {
	technicianID, ok := h.PathString(c, "id")
	if !ok {
		return
	}
	ev, err := h.policy.Evaluate(c.Request.Context(), technicianID, types.Zero())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ev)
}

// SetDebtLimit handles PUT /technicians/:id/debt-limit
func (h *LedgerHandler) SetDebtLimit(c *gin.Context) {
	technicianID, ok := h.PathString(c, "id")
	if !ok {
		return
	}
	var req dto.DebtLimitRequest
	if !h.BindJSON(c, &req) {
		return
	}
	limit, err := req.Value()
	if err != nil {
		h.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	if !h.Track(c, "set_debt_limit", h.policy.SetLimit(ctx, technicianID, limit)) {
		return
	}
	ev, err := h.policy.Evaluate(ctx, technicianID, types.Zero())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ev)
}

// Settle handles POST /settlements
func (h *LedgerHandler) Settle(c *gin.Context) {
	var req dto.SettleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	domainReq, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	settlement, err := h.service.Settle(c.Request.Context(), domainReq)
	if !h.Track(c, "settle", err) {
		return
	}
	h.Created(c, settlement)
}

// ListSettlements handles GET /settlements
func (h *LedgerHandler) ListSettlements(c *gin.Context) {
	var req dto.SettlementListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	items, err := h.service.ListSettlements(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, req.PaginationRequest))
}

// GetSettlement handles GET /settlements/:id
func (h *LedgerHandler) GetSettlement(c *gin.Context) {
	settlementID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	settlement, err := h.service.GetSettlement(c.Request.Context(), settlementID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, settlement)
}
