package utils

import (
	"context"
	"time"
)

type contextKey string

const (
	ContextUserIDKey contextKey = "userID"
	ContextRoleKey   contextKey = "role"
)

// SessionData is what the session middleware needs to know about a session.
type SessionData struct {
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s SessionData) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextUserIDKey, userID)
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextUserIDKey).(string)
	return id, ok && id != ""
}

// WithRole records the role the role middleware admitted the request with.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextRoleKey, role)
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(ContextRoleKey).(string)
	return role
}
