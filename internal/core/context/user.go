// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// SystemActor is recorded as the actor when no user is present (worker jobs, tests).
const SystemActor = "system"

// UserContext contains the caller presented by the permission token.
// Technicians, NOC operators and warehouse staff are all users; the ledger
// treats their IDs as opaque keys.
type UserContext struct {
	UserID      string
	Email       string
	Roles       []string
	Permissions []string
	IsAdmin     bool
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// Actor returns the user ID to stamp on records, or SystemActor.
func Actor(ctx context.Context) string {
	if uid := GetUserID(ctx); uid != "" {
		return uid
	}
	return SystemActor
}

// HasPermission checks if user holds permission. Admins hold every permission.
func HasPermission(ctx context.Context, permission string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return u.IsAdmin || slices.Contains(u.Permissions, permission)
}
