package recipes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
)

func newRecipeServer(t *testing.T) (*httptest.Server, *pantry) {
	t.Helper()
	p := newPantry(t,
		inventory.Item{ID: "flour", ItemName: "Flour", CurrentQuantity: 2},
		inventory.Item{ID: "sugar", ItemName: "Sugar", CurrentQuantity: 0},
	)
	recipes := NewMemoryRepository()
	recipes.Put("sponge-cake", cake)
	mw := rbac.Middleware{}
	r := chi.NewRouter()
	r.Use(mw.Identify)
	r.Route("/recipes", NewHandler(nil, NewChecker(p.cache, p.service, CheckerConfig{}), recipes, mw).MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, p
}

func post(t *testing.T, srv *httptest.Server, path, role, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(rbac.HeaderSessionID, "kitchen")
	req.Header.Set(rbac.HeaderRole, role)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandlerCheck(t *testing.T) {
	srv, _ := newRecipeServer(t)
	resp := post(t, srv, "/recipes/check", "staff", `{"requirements":[{"inventory_item_id":"flour","quantity_needed":1},{"inventory_item_id":"sugar","quantity_needed":1}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res CheckResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.False(t, res.CanMake)
	require.Equal(t, []string{"sugar"}, res.MissingItems)

	resp = post(t, srv, "/recipes/check", "staff", `{"requirements":[]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerRecipeDeduct(t *testing.T) {
	srv, p := newRecipeServer(t)

	resp := post(t, srv, "/recipes/sponge-cake/deduct", "staff", "")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = post(t, srv, "/recipes/sponge-cake/deduct", "storekeeper", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var body deductResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.False(t, body.Deducted)
	require.Equal(t, []string{"sugar"}, body.Result.MissingItems)

	p.set(t, "sugar", 4)
	resp = post(t, srv, "/recipes/sponge-cake/deduct", "manager", `{"multiplier":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Zero(t, p.qty(t, "flour"))
	require.Equal(t, 2.0, p.qty(t, "sugar"))

	resp = post(t, srv, "/recipes/unknown/deduct", "manager", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLosingConcurrentDeductIsAConflict(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("deduct: %w", inventory.ErrConcurrentUpdate),
		&inventory.ShortageError{Shortages: []inventory.Shortage{{ItemID: "flour", Requested: 1}}},
	} {
		rec := httptest.NewRecorder()
		httpx.RespondError(rec, mapError(err))
		require.Equal(t, http.StatusConflict, rec.Code)
	}
}
