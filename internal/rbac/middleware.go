package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
)

// Header names set by the upstream auth proxy.
const (
	HeaderSessionID = "X-Session-ID"
	HeaderUserID    = "X-User-ID"
	HeaderRole      = "X-User-Role"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Identify copies the caller identity headers into the request context.
// Requests without a session id are rejected.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := shared.Identity{
			SessionID: strings.TrimSpace(r.Header.Get(HeaderSessionID)),
			UserID:    strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role:      strings.TrimSpace(r.Header.Get(HeaderRole)),
		}
		if id.SessionID == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
	})
}

// RoleFromContext returns the caller role, RoleUnknown when absent.
func RoleFromContext(ctx context.Context) Role {
	id, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return RoleUnknown
	}
	return ParseRole(id.Role)
}

// RequireAny ensures the current caller has at least one of the required capabilities.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted := Resolve(RoleFromContext(r.Context())).Capabilities()
			if hasAnyPermission(granted, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, normalized)
		})
	}
}

// RequireAll ensures the current caller has all required capabilities.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted := Resolve(RoleFromContext(r.Context())).Capabilities()
			if hasAllPermissions(granted, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, normalized)
		})
	}
}

// RequireManage gates inventory mutations.
func (m Middleware) RequireManage(next http.Handler) http.Handler {
	return m.RequireAll(CapManage)(next)
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, required []string) {
	if m.Logger != nil {
		m.Logger.Warn("rbac denied",
			slog.String("path", r.URL.Path),
			slog.String("role", RoleFromContext(r.Context()).String()),
			slog.Any("required", required),
		)
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}

func hasAnyPermission(granted []string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[strings.ToLower(p)] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func hasAllPermissions(granted []string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[strings.ToLower(p)] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
