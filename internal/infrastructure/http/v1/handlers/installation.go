package handlers

import (
	"github.com/gin-gonic/gin"

	"ispledger/internal/domain/installation"
	"ispledger/internal/infrastructure/http/v1/dto"
)

// InstallationHandler handles customer-installed assets.
type InstallationHandler struct {
	*BaseHandler
	service *installation.Service
}

// NewInstallationHandler creates a new installation handler.
func NewInstallationHandler(base *BaseHandler, service *installation.Service) *InstallationHandler {
	return &InstallationHandler{BaseHandler: base, service: service}
}

// Create handles POST /installations
func (h *InstallationHandler) Create(c *gin.Context) {
	var req dto.InstallRequest
	if !h.BindJSON(c, &req) {
		return
	}
	domainReq, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	installed, err := h.service.Install(c.Request.Context(), domainReq)
	if !h.Track(c, "install", err) {
		return
	}
	h.Created(c, installed)
}

// List handles GET /installations
func (h *InstallationHandler) List(c *gin.Context) {
	var req dto.InstallationListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	items, err := h.service.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, req.PaginationRequest))
}

// Get handles GET /installations/:id
func (h *InstallationHandler) Get(c *gin.Context) {
	installedID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	installed, err := h.service.Get(c.Request.Context(), installedID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, installed)
}

// Remove handles POST /installations/:id/remove
func (h *InstallationHandler) Remove(c *gin.Context) {
	installedID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.RemoveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	domainReq, err := req.ToDomain(installedID)
	if err != nil {
		h.Error(c, err)
		return
	}

	removed, err := h.service.Remove(c.Request.Context(), domainReq)
	if !h.Track(c, "remove_installation", err) {
		return
	}
	h.OK(c, removed)
}

// Replace handles POST /installations/:id/replace
func (h *InstallationHandler) Replace(c *gin.Context) {
	installedID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReplaceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	domainReq, err := req.ToDomain(installedID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Replace(c.Request.Context(), domainReq)
	if !h.Track(c, "replace_installation", err) {
		return
	}
	h.OK(c, result)
}

// AuditLength handles POST /installations/:id/audit-length
func (h *InstallationHandler) AuditLength(c *gin.Context) {
	installedID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.LengthAuditRequest
	if !h.BindJSON(c, &req) {
		return
	}

	installed, err := h.service.AuditInstalledLength(c.Request.Context(), installedID, *req.Measured)
	if !h.Track(c, "audit_installed_length", err) {
		return
	}
	h.OK(c, installed)
}
