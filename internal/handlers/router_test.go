package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRouterServesHealthEndpoints(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 from %s, got %d", path, rr.Code)
		}
	}
}

func TestRouterUnknownRouteReturnsJSONError(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON error body: %v", err)
	}
	if resp["error"] != "route_not_found" {
		t.Fatalf("unexpected error code %v", resp["error"])
	}
}

func TestRouterUnconfiguredGroupReportsNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}

func TestRouterMountsConfiguredGroups(t *testing.T) {
	router := NewRouter(
		WithCatalogRoutes(func(r chi.Router) {
			r.Get("/categories", func(w http.ResponseWriter, req *http.Request) {
				writeJSONResponse(w, http.StatusOK, map[string]any{"categories": []any{}})
			})
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/categories", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
