package alerts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-hotel/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-hotel/internal/preferences"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
)

var errNoSession = httpx.Wrap(httpx.ErrUnauthorized, shared.ErrSessionRequired)

// Handler exposes the alert view over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the alerts handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers alert routes. Callers must be identified upstream.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleView)
	r.Post("/{itemID}/dismiss", h.handleDismiss)
	r.Patch("/preferences", h.handlePreferences)
	r.Delete("/session", h.handleReset)
}

func (h *Handler) session(r *http.Request) (*Session, bool) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok || id.SessionID == "" {
		return nil, false
	}
	return h.service.Session(id.SessionID, rbac.ParseRole(id.Role)), true
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(r)
	if !ok {
		httpx.RespondError(w, errNoSession)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(r)
	if !ok {
		httpx.RespondError(w, errNoSession)
		return
	}
	itemID := chi.URLParam(r, "itemID")
	view, dismissed := h.service.Dismiss(sess, itemID)
	if !dismissed {
		h.logger.Debug("dismiss ignored", slog.String("session_id", sess.ID()), slog.String("item_id", itemID))
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handlePreferences(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(r)
	if !ok {
		httpx.RespondError(w, errNoSession)
		return
	}
	var partial preferences.Partial
	if err := httpx.DecodeJSON(r, &partial); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess.UpdatePreferences(partial)
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok || id.SessionID == "" {
		httpx.RespondError(w, errNoSession)
		return
	}
	h.service.EndSession(id.SessionID)
	w.WriteHeader(http.StatusNoContent)
}
