package alerts

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cache := newCache(t, inventory.NewMemoryStore(fixture()...))
	svc := NewService(cache, ServiceConfig{})
	r := chi.NewRouter()
	r.Use(rbac.Middleware{}.Identify)
	r.Route("/alerts", NewHandler(nil, svc).MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, role, body string) (*http.Response, View) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set(rbac.HeaderSessionID, "front-desk-1")
	req.Header.Set(rbac.HeaderRole, role)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var view View
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	}
	return resp, view
}

func TestHandlerViewDismissAndPreferences(t *testing.T) {
	srv := newTestServer(t)

	resp, view := call(t, srv, http.MethodGet, "/alerts/", "storekeeper", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"soap", "tea"}, ids(view.Critical))
	require.Equal(t, []string{"towels", "sugar"}, ids(view.LowStock))
	require.Equal(t, rbac.PriorityMedium, view.Permissions.Priority)

	resp, view = call(t, srv, http.MethodPost, "/alerts/soap/dismiss", "storekeeper", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"tea"}, ids(view.Critical))

	resp, view = call(t, srv, http.MethodPatch, "/alerts/preferences", "storekeeper", `{"critical_only":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, view.Preferences.CriticalOnly)
	require.True(t, view.Preferences.SoundEnabled)
	require.Empty(t, view.LowStock)

	resp, _ = call(t, srv, http.MethodDelete, "/alerts/session", "storekeeper", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, view = call(t, srv, http.MethodGet, "/alerts/", "storekeeper", "")
	require.Equal(t, []string{"soap", "tea"}, ids(view.Critical))
	require.False(t, view.Preferences.CriticalOnly)
}

func TestHandlerRejectsBadPreferences(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := call(t, srv, http.MethodPatch, "/alerts/preferences", "admin", `{"volume":3}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerUnknownRoleGetsStaffView(t *testing.T) {
	srv := newTestServer(t)
	_, view := call(t, srv, http.MethodGet, "/alerts/", "night-auditor", "")
	require.False(t, view.Permissions.CanViewAll)
	require.Empty(t, view.LowStock)
	require.Len(t, view.Critical, 2)
}
