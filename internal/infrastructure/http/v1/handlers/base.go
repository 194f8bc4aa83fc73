package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/infrastructure/http/v1/middleware"
)

// OperationObserver counts ledger operations by outcome.
type OperationObserver interface {
	ObserveOperation(operation string, err error)
}

// BaseHandler provides common handler utilities.
type BaseHandler struct {
	observer OperationObserver
}

// NewBaseHandler creates a new base handler. observer may be nil.
func NewBaseHandler(observer OperationObserver) *BaseHandler {
	return &BaseHandler{observer: observer}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// PathID parses the :name path parameter as an ID.
func (h *BaseHandler) PathID(c *gin.Context, name string) (id.ID, bool) {
	raw := c.Param(name)
	v, err := id.Parse(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").
			WithDetail("param", name).
			WithDetail("value", raw))
		return id.Nil(), false
	}
	return v, true
}

// PathString returns a non-empty :name path parameter.
func (h *BaseHandler) PathString(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" {
		h.Error(c, apperror.NewValidation("missing path parameter").WithDetail("param", name))
		return "", false
	}
	return v, true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Track counts a ledger operation and reports whether it succeeded.
// On failure the error is handed to the error middleware.
func (h *BaseHandler) Track(c *gin.Context, operation string, err error) bool {
	if h.observer != nil {
		h.observer.ObserveOperation(operation, err)
	}
	if err != nil {
		h.Error(c, err)
		return false
	}
	return true
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.respond(c, http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.respond(c, http.StatusOK, data)
}

// respond writes data as JSON and stores the exact bytes for idempotent replay.
func (h *BaseHandler) respond(c *gin.Context, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	const contentType = "application/json; charset=utf-8"
	middleware.CompleteIdempotency(c, status, contentType, body)
	c.Data(status, contentType, body)
}
