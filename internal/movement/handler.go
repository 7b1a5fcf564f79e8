package movement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/attempts"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/httpx"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

// Guard authorizes routes by permission name.
type Guard interface {
	RequireAll(perms ...string) func(http.Handler) http.Handler
}

// Handler exposes the movement REST API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     Guard
	attempts attempts.Tracker
}

// NewHandler builds Handler instance. tracker may be nil.
func NewHandler(logger *slog.Logger, service *Service, guard Guard, tracker attempts.Tracker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: guard, attempts: tracker}
}

// MountRoutes registers import, export and inventory check routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/imports", func(r chi.Router) {
		h.with(r, shared.PermImportView, func(r chi.Router) {
			r.Get("/", h.listImports)
			r.Get("/{id}", h.getImport)
			r.Get("/{id}/approvals", h.approvals(FamilyImport))
		})
		h.with(r, shared.PermImportCreate, func(r chi.Router) { r.Post("/", h.createImport) })
		h.with(r, shared.PermImportUpdate, func(r chi.Router) { r.Put("/{id}", h.updateImport) })
		h.with(r, shared.PermImportApprove, func(r chi.Router) { r.Post("/{id}/approve", h.transition(FamilyImport, ActionApprove)) })
		h.with(r, shared.PermImportConfirm, func(r chi.Router) { r.Post("/{id}/confirm", h.transition(FamilyImport, ActionConfirm)) })
		h.with(r, shared.PermImportReject, func(r chi.Router) { r.Post("/{id}/reject", h.transition(FamilyImport, ActionReject)) })
		h.with(r, shared.PermImportCancel, func(r chi.Router) { r.Post("/{id}/cancel", h.transition(FamilyImport, ActionCancel)) })
	})

	r.Route("/exports", func(r chi.Router) {
		h.with(r, shared.PermExportView, func(r chi.Router) {
			r.Get("/", h.listExports)
			r.Get("/{id}", h.getExport)
			r.Get("/{id}/approvals", h.approvals(FamilyExport))
		})
		h.with(r, shared.PermExportCreate, func(r chi.Router) { r.Post("/", h.createExport) })
		h.with(r, shared.PermExportUpdate, func(r chi.Router) { r.Put("/{id}", h.updateExport) })
		h.with(r, shared.PermExportApprove, func(r chi.Router) { r.Post("/{id}/approve", h.transition(FamilyExport, ActionApprove)) })
		h.with(r, shared.PermExportConfirm, func(r chi.Router) { r.Post("/{id}/confirm", h.transition(FamilyExport, ActionConfirm)) })
		h.with(r, shared.PermExportReject, func(r chi.Router) { r.Post("/{id}/reject", h.transition(FamilyExport, ActionReject)) })
		h.with(r, shared.PermExportCancel, func(r chi.Router) { r.Post("/{id}/cancel", h.transition(FamilyExport, ActionCancel)) })
	})

	r.Route("/inventory-checks", func(r chi.Router) {
		h.with(r, shared.PermCheckView, func(r chi.Router) {
			r.Get("/", h.listChecks)
			r.Get("/{id}", h.getCheck)
			r.Get("/{id}/approvals", h.approvals(FamilyCheck))
		})
		h.with(r, shared.PermCheckCreate, func(r chi.Router) { r.Post("/", h.createCheck) })
		h.with(r, shared.PermCheckUpdate, func(r chi.Router) { r.Put("/{id}", h.updateCheck) })
		h.with(r, shared.PermCheckApprove, func(r chi.Router) { r.Post("/{id}/approve", h.transition(FamilyCheck, ActionApprove)) })
		h.with(r, shared.PermCheckConfirm, func(r chi.Router) { r.Post("/{id}/confirm", h.transition(FamilyCheck, ActionConfirm)) })
		h.with(r, shared.PermCheckReject, func(r chi.Router) { r.Post("/{id}/reject", h.transition(FamilyCheck, ActionReject)) })
		h.with(r, shared.PermCheckDelete, func(r chi.Router) { r.Delete("/{id}", h.deleteCheck) })
	})
}

func (h *Handler) with(r chi.Router, perm string, fn func(r chi.Router)) {
	r.Group(func(r chi.Router) {
		if h.rbac != nil {
			r.Use(h.rbac.RequireAll(perm))
		}
		fn(r)
	})
}

// ============================================================================
// IMPORTS
// ============================================================================

func (h *Handler) createImport(w http.ResponseWriter, r *http.Request) {
	var in ImportInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.CreateImport(r.Context(), in, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "import created", view)
}

func (h *Handler) updateImport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in ImportInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.UpdateImport(r.Context(), id, in, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "import updated", view)
}

func (h *Handler) getImport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.GetImport(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", view)
}

func (h *Handler) listImports(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views, err := h.service.ListImports(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", views)
}

// ============================================================================
// EXPORTS
// ============================================================================

func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	var in ExportInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.CreateExport(r.Context(), in, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "export created", view)
}

func (h *Handler) updateExport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in ExportInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.UpdateExport(r.Context(), id, in, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "export updated", view)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.GetExport(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", view)
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views, err := h.service.ListExports(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", views)
}

// ============================================================================
// INVENTORY CHECKS
// ============================================================================

func (h *Handler) createCheck(w http.ResponseWriter, r *http.Request) {
	var in CheckInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.CreateCheck(r.Context(), in, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "inventory check created", view)
}

func (h *Handler) updateCheck(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in CheckInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.UpdateCheck(r.Context(), id, in, actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "inventory check updated", view)
}

func (h *Handler) getCheck(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.GetCheck(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", view)
}

func (h *Handler) listChecks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views, err := h.service.ListChecks(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", views)
}

func (h *Handler) deleteCheck(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeleteCheck(r.Context(), id, actorOf(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "inventory check deleted", nil)
}

// ============================================================================
// TRANSITIONS
// ============================================================================

func (h *Handler) transition(family Family, action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		actor := actorOf(r)
		key := fmt.Sprintf("%d:%s:%d", actor, strings.ToLower(string(family)), id)
		if !h.allowed(r.Context(), key) {
			h.fail(w, r, fmt.Errorf("%w: retry %s later", shared.ErrTooManyAttempts, action))
			return
		}

		var body RejectInput
		if action == ActionReject {
			if err := httpx.DecodeOptionalJSON(r, &body); err != nil {
				h.fail(w, r, err)
				return
			}
		}

		var view any
		switch family {
		case FamilyImport:
			view, err = h.service.TransitionImport(r.Context(), id, action, actor, body.Reason)
		case FamilyExport:
			view, err = h.service.TransitionExport(r.Context(), id, action, actor, body.Reason)
		default:
			view, err = h.service.TransitionCheck(r.Context(), id, action, actor, body.Reason)
		}
		h.track(r.Context(), key, err)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.Success(w, http.StatusOK, fmt.Sprintf("%s %s", strings.ToLower(string(family)), pastTense(action)), view)
	}
}

func (h *Handler) approvals(family Family) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		logs, err := h.service.Approvals(r.Context(), family, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.Success(w, http.StatusOK, "", logs)
	}
}

func (h *Handler) allowed(ctx context.Context, key string) bool {
	if h.attempts == nil {
		return true
	}
	ok, err := h.attempts.IsAllowed(ctx, key)
	if err != nil {
		h.logger.Warn("attempt tracker unavailable", slog.String("key", key), slog.Any("error", err))
		return true
	}
	return ok
}

// track counts refused transitions against the caller and clears the
// counter once a transition goes through.
func (h *Handler) track(ctx context.Context, key string, err error) {
	if h.attempts == nil {
		return
	}
	var trackErr error
	switch {
	case err == nil:
		trackErr = h.attempts.Clear(ctx, key)
	case errors.Is(err, shared.ErrInvalidState), errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrForbidden):
		trackErr = h.attempts.Fail(ctx, key)
	}
	if trackErr != nil {
		h.logger.Warn("attempt tracker update", slog.String("key", key), slog.Any("error", trackErr))
	}
}

func pastTense(action Action) string {
	switch action {
	case ActionApprove:
		return "approved"
	case ActionConfirm:
		return "confirmed"
	case ActionReject:
		return "rejected"
	default:
		return "cancelled"
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error("movement request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actorOf(r *http.Request) int64 {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationErr("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// parseListFilter reads status, code, from and to. Dates are YYYY-MM-DD or
// RFC3339; a bare date in to covers the whole day.
func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := Status(strings.ToUpper(raw))
		filter.Status = &status
	}
	filter.Code = strings.TrimSpace(q.Get("code"))
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			return ListFilter{}, validationErr("from: %v", err)
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, dateOnly, err := parseDate(raw)
		if err != nil {
			return ListFilter{}, validationErr("to: %v", err)
		}
		if dateOnly {
			to = to.Add(24 * time.Hour)
		}
		filter.To = &to
	}
	return filter, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", raw)
	}
	return t, false, nil
}
