package shared

import (
	"context"
	"slices"
)

// Roles known to the dashboard.
const (
	RoleAdmin     = "admin"
	RolePastor    = "pasteur"
	RoleSecretary = "secretaire"
	RoleTreasurer = "tresorier"
	RoleMember    = "membre"
)

// Principal is the authenticated user as established at login.
type Principal struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	ChurchID   string `json:"church_id"`
	ChurchName string `json:"church_name"`
	Token      string `json:"token"`
}

// HasRole reports whether the principal holds one of roles.
func (p *Principal) HasRole(roles ...string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(roles, p.Role)
}

type sessionContextKey struct{}

type principalContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithPrincipal stores a copy of the principal in context so handlers
// cannot mutate the session's record.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	if p == nil {
		return ctx
	}
	clone := *p
	return context.WithValue(ctx, principalContextKey{}, &clone)
}

// PrincipalFromContext returns the request's principal, nil when anonymous.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
