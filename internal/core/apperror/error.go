// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeAssetNotAvailable      = "ASSET_NOT_AVAILABLE"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeDebtOwnershipMismatch  = "DEBT_OWNERSHIP_MISMATCH"
	CodeDebtNotReturnable      = "DEBT_NOT_RETURNABLE"
	CodeOverReturn             = "OVER_RETURN"
	CodeInsufficientDebtQty    = "INSUFFICIENT_DEBT_QUANTITY"
	CodeLengthExceedsRemaining = "LENGTH_EXCEEDS_REMAINING"
	CodeInsufficientPayment    = "INSUFFICIENT_PAYMENT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict    = "CONFLICT"
	CodeDuplicate   = "DUPLICATE_ENTRY"
	CodeIdempotency = "IDEMPOTENCY_CONFLICT"
)

// validationCodes are the ledger rule violations. They are detected before any
// mutation, so the unit of work never holds partial state when one is returned.
var validationCodes = map[string]bool{
	CodeValidation:             true,
	CodeInvalidInput:           true,
	CodeBusinessRule:           true,
	CodeInsufficientStock:      true,
	CodeAssetNotAvailable:      true,
	CodeInvalidStateTransition: true,
	CodeDebtOwnershipMismatch:  true,
	CodeDebtNotReturnable:      true,
	CodeOverReturn:             true,
	CodeInsufficientDebtQty:    true,
	CodeLengthExceedsRemaining: true,
	CodeInsufficientPayment:    true,
}

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientStock is returned when a bulk reservation exceeds available_quantity.
func NewInsufficientStock(assetID string, requested, available string) *AppError {
	return NewBusinessRule(CodeInsufficientStock, "Insufficient stock").
		WithDetail("asset_id", assetID).
		WithDetail("requested", requested).
		WithDetail("available", available)
}

// NewAssetNotAvailable is returned when a tracked unit is not available at the expected warehouse.
func NewAssetNotAvailable(unitID string, status string) *AppError {
	return NewBusinessRule(CodeAssetNotAvailable, "Tracked unit is not available").
		WithDetail("unit_id", unitID).
		WithDetail("status", status)
}

// NewInvalidStateTransition is returned when a status change is not allowed.
func NewInvalidStateTransition(entity string, entityID any, from, to string) *AppError {
	return NewBusinessRule(CodeInvalidStateTransition, fmt.Sprintf("%s cannot move from %s to %s", entity, from, to)).
		WithDetail("entity", entity).
		WithDetail("id", entityID).
		WithDetail("from", from).
		WithDetail("to", to)
}

// NewDebtOwnershipMismatch is returned when a debt does not belong to the stated technician.
func NewDebtOwnershipMismatch(debtID any, technicianID string) *AppError {
	return NewBusinessRule(CodeDebtOwnershipMismatch, "Debt belongs to another technician").
		WithDetail("debt_id", debtID).
		WithDetail("technician_id", technicianID)
}

// NewDebtNotReturnable is returned for debts that are already closed.
func NewDebtNotReturnable(debtID any, status string) *AppError {
	return NewBusinessRule(CodeDebtNotReturnable, "Debt is not open").
		WithDetail("debt_id", debtID).
		WithDetail("status", status)
}

// NewOverReturn is returned when more is returned than is still owed.
func NewOverReturn(debtID any, requested, remaining string) *AppError {
	return NewBusinessRule(CodeOverReturn, "Returned quantity exceeds outstanding debt").
		WithDetail("debt_id", debtID).
		WithDetail("requested", requested).
		WithDetail("remaining", remaining)
}

// NewInsufficientDebtQuantity is returned when an installation needs more than the debt covers.
func NewInsufficientDebtQuantity(debtID any, requested, remaining string) *AppError {
	return NewBusinessRule(CodeInsufficientDebtQty, "Debt does not cover the installed quantity").
		WithDetail("debt_id", debtID).
		WithDetail("requested", requested).
		WithDetail("remaining", remaining)
}

// NewLengthExceedsRemaining is returned when a cable installation is longer than the reel.
func NewLengthExceedsRemaining(unitID any, requested, remaining string) *AppError {
	return NewBusinessRule(CodeLengthExceedsRemaining, "Installed length exceeds remaining reel length").
		WithDetail("unit_id", unitID).
		WithDetail("requested", requested).
		WithDetail("remaining", remaining)
}

// NewInsufficientPayment is returned when a settlement does not cover the debts it closes.
func NewInsufficientPayment(required, paid string) *AppError {
	return NewBusinessRule(CodeInsufficientPayment, "Payment does not cover the outstanding debt").
		WithDetail("required", required).
		WithDetail("paid", paid)
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different user/operation/body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsValidation reports whether err is a caller-correctable rule violation.
func IsValidation(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return validationCodes[appErr.Code]
	}
	return false
}

// IsRetryable reports whether the caller may retry the same request unchanged.
// Anything that is not an AppError is an infrastructure failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	appErr, ok := AsAppError(err)
	if !ok {
		return true
	}
	switch appErr.Code {
	case CodeInternal, CodeDatabase, CodeTimeout, CodeConcurrentModification:
		return true
	}
	return false
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}
