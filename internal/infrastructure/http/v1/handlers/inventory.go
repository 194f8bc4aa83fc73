package handlers

import (
	"github.com/gin-gonic/gin"

	"ispledger/internal/domain/inventory"
	"ispledger/internal/infrastructure/http/v1/dto"
)

// InventoryHandler handles assets and tracked units.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{BaseHandler: base, service: service}
}

// CreateAsset handles POST /assets
func (h *InventoryHandler) CreateAsset(c *gin.Context) {
	var req dto.CreateAssetRequest
	if !h.BindJSON(c, &req) {
		return
	}

	asset := req.ToDomain()
	if !h.Track(c, "create_asset", h.service.CreateAsset(c.Request.Context(), asset)) {
		return
	}
	h.Created(c, asset)
}

// ListAssets handles GET /assets
func (h *InventoryHandler) ListAssets(c *gin.Context) {
	var req dto.AssetListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	items, err := h.service.ListAssets(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, req.PaginationRequest))
}

// GetAsset handles GET /assets/:id
func (h *InventoryHandler) GetAsset(c *gin.Context) {
	assetID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	asset, err := h.service.GetAsset(c.Request.Context(), assetID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, asset)
}

// Receipt handles POST /assets/:id/receipts
func (h *InventoryHandler) Receipt(c *gin.Context) {
	assetID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	asset, err := h.service.ReceiveStock(c.Request.Context(), assetID, req.Quantity)
	if !h.Track(c, "receive_stock", err) {
		return
	}
	h.OK(c, asset)
}

// RegisterUnit handles POST /units
func (h *InventoryHandler) RegisterUnit(c *gin.Context) {
	var req dto.RegisterUnitRequest
	if !h.BindJSON(c, &req) {
		return
	}
	unit, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	if !h.Track(c, "register_unit", h.service.RegisterUnit(c.Request.Context(), unit)) {
		return
	}
	h.Created(c, unit)
}

// ListUnits handles GET /units
func (h *InventoryHandler) ListUnits(c *gin.Context) {
	var req dto.UnitListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	items, err := h.service.ListUnits(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, req.PaginationRequest))
}

// GetUnit handles GET /units/:id
func (h *InventoryHandler) GetUnit(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	unit, err := h.service.GetUnit(c.Request.Context(), unitID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, unit)
}

// Dispatch handles POST /units/:id/dispatch
func (h *InventoryHandler) Dispatch(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	unit, err := h.service.DispatchUnit(c.Request.Context(), unitID)
	if !h.Track(c, "dispatch_unit", err) {
		return
	}
	h.OK(c, unit)
}

// Receive handles POST /units/:id/receive
func (h *InventoryHandler) Receive(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.WarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	warehouseID, err := req.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}

	unit, err := h.service.ReceiveTransfer(c.Request.Context(), unitID, warehouseID)
	if !h.Track(c, "receive_transfer", err) {
		return
	}
	h.OK(c, unit)
}

// AuditLength handles POST /units/:id/audit-length
func (h *InventoryHandler) AuditLength(c *gin.Context) {
	unitID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.LengthAuditRequest
	if !h.BindJSON(c, &req) {
		return
	}

	unit, err := h.service.AuditReelLength(c.Request.Context(), unitID, *req.Measured)
	if !h.Track(c, "audit_reel_length", err) {
		return
	}
	h.OK(c, unit)
}
