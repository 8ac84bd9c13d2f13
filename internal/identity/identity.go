package identity

import (
	"context"

	"github.com/google/uuid"
)

// Role classifies an authenticated caller. The core trusts the role
// resolved at the HTTP boundary verbatim.
type Role string

const (
	RolePatient  Role = "patient"
	RoleProvider Role = "provider"
	RoleOther    Role = "other"
)

func ParseRole(s string) Role {
	switch s {
	case string(RolePatient):
		return RolePatient
	case string(RoleProvider):
		return RoleProvider
	default:
		return RoleOther
	}
}

// Identity is the authenticated caller, resolved once per request and
// passed by value through the core.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

type contextKey struct{}

// WithIdentity stores the caller identity on the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the caller identity, if one was resolved.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
