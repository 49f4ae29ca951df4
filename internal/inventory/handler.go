package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-hotel/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
)

// Handler wires HTTP endpoints for inventory items.
type Handler struct {
	logger  *slog.Logger
	service *Service
	cache   *Cache
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler. cache may be nil, in which case
// reads go to the store.
func NewHandler(logger *slog.Logger, service *Service, cache *Cache, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, cache: cache, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.handleList)
	r.Get("/items/{id}", h.handleGet)
	r.With(h.rbac.RequireAny(rbac.CapViewAll, rbac.CapManage)).Get("/snapshot", h.handleSnapshot)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireManage)
		r.Post("/items", h.handleCreate)
		r.Put("/items/{id}", h.handleUpdate)
		r.Delete("/items/{id}", h.handleDelete)
	})
}

type itemRequest struct {
	ItemName        string  `json:"item_name"`
	Category        string  `json:"category"`
	CurrentQuantity float64 `json:"current_quantity"`
	MinThreshold    float64 `json:"min_threshold"`
	Unit            string  `json:"unit"`
}

func (req itemRequest) item(id string) Item {
	return Item{
		ID:              id,
		ItemName:        req.ItemName,
		Category:        req.Category,
		CurrentQuantity: req.CurrentQuantity,
		MinThreshold:    req.MinThreshold,
		Unit:            req.Unit,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Category: q.Get("category")}
	if raw := q.Get("max_quantity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, errors.New("max_quantity must be a number")))
			return
		}
		filter.MaxQuantity = &v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, errors.New("limit must be a non-negative integer")))
			return
		}
		filter.Limit = v
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list inventory", slog.Any("error", err))
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item": item, "level": Classify(item)})
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		httpx.RespondError(w, httpx.Wrap(httpx.ErrUnavailable, errors.New("snapshot cache disabled")))
		return
	}
	httpx.JSON(w, http.StatusOK, h.cache.Snapshot())
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Create(r.Context(), actorOf(r), req.item(""))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Update(r.Context(), actorOf(r), req.item(chi.URLParam(r, "id")))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorOf(r), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorOf(r *http.Request) string {
	if id, ok := shared.IdentityFromContext(r.Context()); ok {
		return id.UserID
	}
	return ""
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return httpx.Wrap(httpx.ErrNotFound, err)
	case errors.Is(err, ErrDuplicate):
		return httpx.Wrap(httpx.ErrDuplicate, err)
	case errors.Is(err, ErrInvalidItem), errors.Is(err, ErrInvalidQuantity):
		return httpx.Wrap(httpx.ErrValidation, err)
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrConcurrentUpdate):
		return httpx.Wrap(httpx.ErrConflict, err)
	default:
		return err
	}
}
