package recipes

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
)

// HeaderIdempotencyKey carries the client's deduction key.
const HeaderIdempotencyKey = "Idempotency-Key"

// Handler wires HTTP endpoints for recipe checks and deductions.
type Handler struct {
	logger  *slog.Logger
	checker *Checker
	recipes IngredientSource
	rbac    rbac.Middleware
}

// NewHandler constructs the recipes handler.
func NewHandler(logger *slog.Logger, checker *Checker, recipes IngredientSource, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, checker: checker, recipes: recipes, rbac: rbac}
}

// MountRoutes registers recipe routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.handleCheck)
	r.Post("/{recipeID}/check", h.handleRecipeCheck)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireManage)
		r.Post("/deduct", h.handleDeduct)
		r.Post("/{recipeID}/deduct", h.handleRecipeDeduct)
	})
}

type checkRequest struct {
	Requirements []Requirement `json:"requirements"`
	Multiplier   float64       `json:"multiplier"`
}

type multiplierRequest struct {
	Multiplier float64 `json:"multiplier"`
}

type deductResponse struct {
	Deducted bool        `json:"deducted"`
	Result   CheckResult `json:"result"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.checker.Check(req.Requirements, defaultMultiplier(req.Multiplier))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleRecipeCheck(w http.ResponseWriter, r *http.Request) {
	reqs, multiplier, ok := h.loadRecipe(w, r)
	if !ok {
		return
	}
	res, err := h.checker.Check(reqs, multiplier)
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleDeduct(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.deduct(w, r, req.Requirements, defaultMultiplier(req.Multiplier))
}

func (h *Handler) handleRecipeDeduct(w http.ResponseWriter, r *http.Request) {
	reqs, multiplier, ok := h.loadRecipe(w, r)
	if !ok {
		return
	}
	h.deduct(w, r, reqs, multiplier)
}

func (h *Handler) deduct(w http.ResponseWriter, r *http.Request, reqs []Requirement, multiplier float64) {
	actor := ""
	if id, ok := shared.IdentityFromContext(r.Context()); ok {
		actor = id.UserID
	}
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	res, err := h.checker.Deduct(r.Context(), actor, key, reqs, multiplier)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			httpx.JSON(w, http.StatusConflict, deductResponse{Deducted: false, Result: res})
			return
		}
		h.logger.Warn("recipe deduction failed", slog.String("key", key), slog.Any("error", err))
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, deductResponse{Deducted: true, Result: res})
}

// loadRecipe reads the recipe id from the path and an optional multiplier body.
func (h *Handler) loadRecipe(w http.ResponseWriter, r *http.Request) ([]Requirement, float64, bool) {
	var body multiplierRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.RespondError(w, err)
			return nil, 0, false
		}
	}
	reqs, err := h.recipes.Ingredients(r.Context(), chi.URLParam(r, "recipeID"))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return nil, 0, false
	}
	return reqs, defaultMultiplier(body.Multiplier), true
}

func defaultMultiplier(m float64) float64 {
	if m == 0 {
		return 1
	}
	return m
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequirement), errors.Is(err, inventory.ErrInvalidQuantity), errors.Is(err, inventory.ErrInvalidItem):
		return httpx.Wrap(httpx.ErrValidation, err)
	case errors.Is(err, ErrRecipeNotFound):
		return httpx.Wrap(httpx.ErrNotFound, err)
	case errors.Is(err, ErrDuplicateRequest):
		return httpx.Wrap(httpx.ErrDuplicate, err)
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, inventory.ErrConcurrentUpdate):
		return httpx.Wrap(httpx.ErrConflict, err)
	default:
		return err
	}
}
