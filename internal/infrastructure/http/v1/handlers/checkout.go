package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"ispledger/internal/core/id"
	"ispledger/internal/domain/checkout"
	"ispledger/internal/infrastructure/http/v1/dto"
)

// CheckoutHandler handles HTTP requests for checkouts and their NOC approval.
type CheckoutHandler struct {
	*BaseHandler
	service *checkout.Service
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(base *BaseHandler, service *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{BaseHandler: base, service: service}
}

// Create handles POST /checkouts
func (h *CheckoutHandler) Create(c *gin.Context) {
	var req dto.CheckoutRequest
	if !h.BindJSON(c, &req) {
		return
	}
	domainReq, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Checkout(c.Request.Context(), domainReq)
	if !h.Track(c, "checkout", err) {
		return
	}
	h.Created(c, result)
}

// List handles GET /checkouts
func (h *CheckoutHandler) List(c *gin.Context) {
	var req dto.CheckoutListRequest
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

// Get handles GET /checkouts/:id
func (h *CheckoutHandler) Get(c *gin.Context) {
	checkoutID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	co, err := h.service.Get(c.Request.Context(), checkoutID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, co)
}

// Approve handles POST /checkouts/:id/approve
func (h *CheckoutHandler) Approve(c *gin.Context) {
	h.resolve(c, "checkout_approve", h.service.Approve)
}

// Reject handles POST /checkouts/:id/reject
func (h *CheckoutHandler) Reject(c *gin.Context) {
	h.resolve(c, "checkout_reject", h.service.Reject)
}

func (h *CheckoutHandler) resolve(c *gin.Context, operation string, fn func(ctx context.Context, checkoutID id.ID, notes string) (*checkout.Checkout, error)) {
	checkoutID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.NotesRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	co, err := fn(c.Request.Context(), checkoutID, req.Notes)
	if !h.Track(c, operation, err) {
		return
	}
	h.OK(c, co)
}
