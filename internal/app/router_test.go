package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/observability"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := inventory.NewMemoryStore(inventory.Item{ID: "towels", ItemName: "Towels", CurrentQuantity: 3, MinThreshold: 5})
	service := inventory.NewService(store, nil, inventory.ServiceConfig{})
	cache := inventory.NewCache(store, inventory.CacheConfig{})
	mw := rbac.Middleware{}
	return NewRouter(RouterParams{
		Config:           &Config{AppEnv: "test"},
		RBACMiddleware:   mw,
		InventoryHandler: inventory.NewHandler(nil, service, cache, mw),
		Metrics:          observability.NewMetrics(),
	})
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "odyssey_http_requests_total"))
}

func TestRouterRequiresSession(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/items", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/inventory/items", nil)
	req.Header.Set(rbac.HeaderSessionID, "s-1")
	req.Header.Set(rbac.HeaderRole, "manager")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "towels")
}
