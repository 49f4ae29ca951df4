package connectivity

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-hotel/internal/platform/httpx"
)

// Handler exposes the monitor state.
type Handler struct {
	monitor *Monitor
}

// NewHandler constructs the connectivity handler.
func NewHandler(monitor *Monitor) *Handler {
	return &Handler{monitor: monitor}
}

// MountRoutes registers connectivity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleStatus)
	r.Post("/online", h.handleOnline)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := h.monitor.Status()
	code := http.StatusOK
	if !status.Connected {
		code = http.StatusServiceUnavailable
	}
	httpx.JSON(w, code, status)
}

func (h *Handler) handleOnline(w http.ResponseWriter, r *http.Request) {
	h.monitor.TriggerOnline()
	w.WriteHeader(http.StatusAccepted)
}
