package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-hotel/internal/alerts"
	"github.com/odyssey-erp/odyssey-hotel/internal/connectivity"
	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/observability"
	"github.com/odyssey-erp/odyssey-hotel/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
	"github.com/odyssey-erp/odyssey-hotel/internal/recipes"
	"github.com/odyssey-erp/odyssey-hotel/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	RBACMiddleware      rbac.Middleware
	InventoryHandler    *inventory.Handler
	AlertsHandler       *alerts.Handler
	RecipesHandler      *recipes.Handler
	ConnectivityHandler *connectivity.Handler
	JobHandler          *jobs.Handler
	// Realtime serves the websocket endpoint.
	Realtime http.Handler
	Metrics  *observability.Metrics
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwConfig := MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}
	for _, mw := range MiddlewareStack(mwConfig) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.Realtime != nil {
		r.With(params.RBACMiddleware.Identify).Handle("/ws", params.Realtime)
	}

	r.Group(func(r chi.Router) {
		for _, mw := range APIStack(mwConfig) {
			r.Use(mw)
		}
		if params.ConnectivityHandler != nil {
			r.Route("/connectivity", params.ConnectivityHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(params.RBACMiddleware.Identify)
			if params.InventoryHandler != nil {
				r.Route("/inventory", params.InventoryHandler.MountRoutes)
			}
			if params.AlertsHandler != nil {
				r.Route("/alerts", params.AlertsHandler.MountRoutes)
			}
			if params.RecipesHandler != nil {
				r.Route("/recipes", params.RecipesHandler.MountRoutes)
			}
		})
	})

	return r
}
