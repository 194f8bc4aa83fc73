// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
)

// --- Pagination ---

// PaginationRequest contains limit/offset paging parameters.
type PaginationRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Defaults sets default pagination values.
func (p *PaginationRequest) Defaults() {
	if p.Limit == 0 {
		p.Limit = 100
	}
}

// --- List Response ---

// ListResponse wraps list results with the paging that produced them.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewListResponse never returns a nil Items slice, so the JSON is [] not null.
func NewListResponse[T any](items []T, page PaginationRequest) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Limit: page.Limit, Offset: page.Offset}
}

// NotesRequest carries free-text notes for state changes.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// ReasonRequest carries a mandatory reason.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// --- Parsing helpers ---

func parseID(field, value string) (id.ID, error) {
	v, err := id.Parse(value)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid id").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return v, nil
}

func parseOptionalID(field string, value *string) (*id.ID, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	v, err := parseID(field, *value)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
