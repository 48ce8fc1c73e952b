package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/services"
)

type stubCatalogService struct {
	listCategoriesFunc func(ctx context.Context) ([]services.Category, error)
	getBySlugsFunc     func(ctx context.Context, categorySlug, subcategorySlug, serviceSlug string) (domain.CatalogService, error)
	quoteFunc          func(ctx context.Context, cmd services.QuoteCommand) (services.QuoteResult, error)
	upsertCategoryFunc func(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error)
	deleteCategoryFunc func(ctx context.Context, categoryID string) error
}

func (s *stubCatalogService) ListCategories(ctx context.Context) ([]services.Category, error) {
	if s.listCategoriesFunc != nil {
		return s.listCategoriesFunc(ctx)
	}
	return nil, nil
}

func (s *stubCatalogService) GetCategoryBySlug(ctx context.Context, slug string) (services.Category, error) {
	return services.Category{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) GetServiceByID(ctx context.Context, serviceID string) (domain.CatalogService, error) {
	return domain.CatalogService{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) GetServiceBySlugs(ctx context.Context, categorySlug, subcategorySlug, serviceSlug string) (domain.CatalogService, error) {
	if s.getBySlugsFunc != nil {
		return s.getBySlugsFunc(ctx, categorySlug, subcategorySlug, serviceSlug)
	}
	return domain.CatalogService{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) Quote(ctx context.Context, cmd services.QuoteCommand) (services.QuoteResult, error) {
	if s.quoteFunc != nil {
		return s.quoteFunc(ctx, cmd)
	}
	return services.QuoteResult{}, nil
}

func (s *stubCatalogService) UpsertCategory(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error) {
	if s.upsertCategoryFunc != nil {
		return s.upsertCategoryFunc(ctx, cmd)
	}
	return services.Category{}, nil
}

func (s *stubCatalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	if s.deleteCategoryFunc != nil {
		return s.deleteCategoryFunc(ctx, categoryID)
	}
	return nil
}

func newCatalogRouter(service services.CatalogService) chi.Router {
	handler := NewCatalogHandlers(service)
	router := chi.NewRouter()
	router.Route("/catalog", handler.Routes)
	return router
}

func TestCatalogHandlersListCategories(t *testing.T) {
	service := &stubCatalogService{
		listCategoriesFunc: func(ctx context.Context) ([]services.Category, error) {
			return []services.Category{
				{
					ID:   "cat-photo",
					Name: "Photo Editing",
					Slug: "photo-editing",
					Subcategories: []services.Subcategory{
						{
							ID:   "sub-portrait",
							Name: "Portrait",
							Slug: "portrait",
							Services: []domain.CatalogService{
								{ID: "svc-retouch", Name: "Photo Retouching", Slug: "retouching", BasePrice: 1500, Currency: "usd"},
							},
						},
					},
				},
			}, nil
		},
	}

	router := newCatalogRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/catalog/categories", nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp categoriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Categories) != 1 {
		t.Fatalf("expected one category, got %d", len(resp.Categories))
	}
	category := resp.Categories[0]
	if category.Slug != "photo-editing" || len(category.Subcategories) != 1 {
		t.Fatalf("unexpected category: %+v", category)
	}
	svc := category.Subcategories[0].Services[0]
	if svc.BasePrice != 1500 || svc.Currency != "USD" {
		t.Fatalf("unexpected service payload: %+v", svc)
	}
}

func TestCatalogHandlersGetServiceBySlugs(t *testing.T) {
	service := &stubCatalogService{
		getBySlugsFunc: func(ctx context.Context, categorySlug, subcategorySlug, serviceSlug string) (domain.CatalogService, error) {
			if categorySlug != "photo-editing" || subcategorySlug != "portrait" || serviceSlug != "retouching" {
				t.Fatalf("unexpected slugs %q/%q/%q", categorySlug, subcategorySlug, serviceSlug)
			}
			return domain.CatalogService{ID: "svc-retouch", Name: "Photo Retouching", Slug: "retouching", BasePrice: 1500, Currency: "USD"}, nil
		},
	}

	router := newCatalogRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/catalog/photo-editing/portrait/retouching", nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp serviceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Service.ID != "svc-retouch" {
		t.Fatalf("unexpected service: %+v", resp.Service)
	}
}

func TestCatalogHandlersGetServiceNotFound(t *testing.T) {
	router := newCatalogRouter(&stubCatalogService{})
	req := httptest.NewRequest(http.MethodGet, "/catalog/photo-editing/portrait/missing", nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCatalogHandlersQuote(t *testing.T) {
	service := &stubCatalogService{
		quoteFunc: func(ctx context.Context, cmd services.QuoteCommand) (services.QuoteResult, error) {
			if cmd.ServiceID != "svc-retouch" || len(cmd.SelectedOptions) != 2 {
				t.Fatalf("unexpected command: %+v", cmd)
			}
			return services.QuoteResult{
				BasePrice:  1500,
				FinalPrice: 2900,
				Service:    domain.CatalogService{ID: "svc-retouch", Name: "Photo Retouching", Currency: "USD"},
			}, nil
		},
	}

	router := newCatalogRouter(service)
	body := `{"service_id":"svc-retouch","selected_options":["TIFF","Rush"]}`
	req := httptest.NewRequest(http.MethodPost, "/catalog/quote", strings.NewReader(body))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp quoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.FinalPrice != 2900 || resp.BasePrice != 1500 {
		t.Fatalf("unexpected quote: %+v", resp)
	}
}

func TestCatalogHandlersQuoteInvalidCombination(t *testing.T) {
	service := &stubCatalogService{
		quoteFunc: func(ctx context.Context, cmd services.QuoteCommand) (services.QuoteResult, error) {
			return services.QuoteResult{}, services.ErrInvalidVariationCombination
		},
	}

	router := newCatalogRouter(service)
	body := `{"service_id":"svc-retouch","selected_options":["JPEG","Rush"]}`
	req := httptest.NewRequest(http.MethodPost, "/catalog/quote", strings.NewReader(body))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "invalid_variation_combination" {
		t.Fatalf("unexpected error code %v", resp["error"])
	}
}

func TestCatalogHandlersQuoteEmptyBody(t *testing.T) {
	router := newCatalogRouter(&stubCatalogService{})
	req := httptest.NewRequest(http.MethodPost, "/catalog/quote", strings.NewReader(""))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
