package handlers

import (
	"github.com/gin-gonic/gin"

	"ispledger/internal/domain/maintenance"
	"ispledger/internal/infrastructure/http/v1/dto"
)

// MaintenanceHandler handles repairs, supplier returns and unit write-offs.
type MaintenanceHandler struct {
	*BaseHandler
	service *maintenance.Service
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(base *BaseHandler, service *maintenance.Service) *MaintenanceHandler {
	return &MaintenanceHandler{BaseHandler: base, service: service}
}

// StartRepair handles POST /units/:id/repair/start
func (h *MaintenanceHandler) StartRepair(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.StartRepairRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	repair, err := h.service.StartRepair(c.Request.Context(), unitID, req.Description)
	if !h.Track(c, "start_repair", err) {
		return
	}
	h.Created(c, repair)
}

// CompleteRepair handles POST /units/:id/repair/complete
func (h *MaintenanceHandler) CompleteRepair(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.CompleteRepairRequest
	if !h.BindJSON(c, &req) {
		return
	}
	warehouseID, err := dto.WarehouseRequest{WarehouseID: req.WarehouseID}.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}

	repair, err := h.service.CompleteRepair(c.Request.Context(), unitID, warehouseID, req.Cost, req.Notes)
	if !h.Track(c, "complete_repair", err) {
		return
	}
	h.OK(c, repair)
}

// FailRepair handles POST /units/:id/repair/fail
func (h *MaintenanceHandler) FailRepair(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.FailedOutcomeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	outcome, _, err := req.ParsedOutcome()
	if err != nil {
		h.Error(c, err)
		return
	}

	repair, err := h.service.FailRepair(c.Request.Context(), unitID, outcome, req.Notes)
	if !h.Track(c, "fail_repair", err) {
		return
	}
	h.OK(c, repair)
}

// SendToSupplier handles POST /units/:id/supplier/send
func (h *MaintenanceHandler) SendToSupplier(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.SendToSupplierRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ret, err := h.service.SendToSupplier(c.Request.Context(), unitID, req.SupplierID, req.Reason)
	if !h.Track(c, "send_to_supplier", err) {
		return
	}
	h.Created(c, ret)
}

// ReceiveFromSupplier handles POST /units/:id/supplier/receive
func (h *MaintenanceHandler) ReceiveFromSupplier(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiveFromSupplierRequest
	if !h.BindJSON(c, &req) {
		return
	}
	domainReq, err := req.ToDomain(unitID)
	if err != nil {
		h.Error(c, err)
		return
	}

	ret, err := h.service.ReceiveFromSupplier(c.Request.Context(), domainReq)
	if !h.Track(c, "receive_from_supplier", err) {
		return
	}
	h.OK(c, ret)
}

// RejectBySupplier handles POST /units/:id/supplier/reject
func (h *MaintenanceHandler) RejectBySupplier(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.FailedOutcomeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	outcome, warehouseID, err := req.ParsedOutcome()
	if err != nil {
		h.Error(c, err)
		return
	}

	ret, err := h.service.RejectBySupplier(c.Request.Context(), unitID, outcome, warehouseID, req.Notes)
	if !h.Track(c, "reject_by_supplier", err) {
		return
	}
	h.OK(c, ret)
}

// WriteOff handles POST /units/:id/write-off
func (h *MaintenanceHandler) WriteOff(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}

	w, err := h.service.WriteOffUnit(c.Request.Context(), unitID, req.Reason)
	if !h.Track(c, "write_off_unit", err) {
		return
	}
	h.Created(c, w)
}

// History handles GET /units/:id/history
func (h *MaintenanceHandler) History(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	history, err := h.service.History(c.Request.Context(), unitID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, history)
}
