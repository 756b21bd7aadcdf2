package rbac

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ecclesia/ecclesia/internal/shared"
)

// LoginPath is where anonymous browsers are sent.
const LoginPath = "/auth/login"

// Middleware wires role based authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAuth redirects anonymous requests to the login page, preserving the
// requested path for GET requests.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.PrincipalFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		target := LoginPath
		if r.Method == http.MethodGet && r.URL.Path != "/" {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

// RequireRole ensures the current principal holds one of roles.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return m.RequirePolicy(Policy{Roles: roles})
}

// RequirePolicy ensures the current principal satisfies the policy.
func (m Middleware) RequirePolicy(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if policy.Allows(principal) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac denied",
					slog.String("policy", policy.Name),
					slog.String("role", principal.Role),
					slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}
