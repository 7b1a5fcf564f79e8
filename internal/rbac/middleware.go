package rbac

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/httpx"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	// Disabled lets every request through, for local development.
	Disabled bool
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require("rbac require any", hasAnyPermission, perms)
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require("rbac require all", hasAllPermissions, perms)
}

func (m Middleware) require(op string, allowed func(granted, required []string) bool, perms []string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.Disabled || len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
				return
			}
			granted, err := m.Service.EffectivePermissions(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error(op, slog.Int64("user_id", userID), slog.Any("error", err))
				}
				httpx.Fail(w, http.StatusInternalServerError, "internal error")
				return
			}
			if allowed(granted, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Fail(w, http.StatusForbidden, "missing permission: "+strings.Join(normalized, ", "))
		})
	}
}

// MountRoutes registers the permission introspection route.
func (m Middleware) MountRoutes(r chi.Router) {
	r.Get("/me/permissions", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := shared.ActorFromContext(r.Context())
		if !ok {
			httpx.Fail(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
			return
		}
		set, err := m.Service.Describe(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("describe permissions", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		httpx.Success(w, http.StatusOK, "", set)
	})
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
	slices.Sort(normalized)
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
