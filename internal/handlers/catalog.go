package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/platform/httpx"
	"github.com/snapedits/api/internal/services"
)

// CatalogHandlers exposes the public catalog browsing and quoting endpoints.
type CatalogHandlers struct {
	catalog services.CatalogService
}

const maxQuoteBodySize = 16 * 1024

// NewCatalogHandlers constructs handlers serving the read-only catalog surface.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the /catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/categories", h.listCategories)
	r.Post("/quote", h.quote)
	r.Get("/{category}/{subcategory}/{service}", h.getService)
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := categoriesResponse{Categories: make([]categoryPayload, 0, len(categories))}
	for _, category := range categories {
		payload.Categories = append(payload.Categories, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	service, err := h.catalog.GetServiceBySlugs(ctx,
		chi.URLParam(r, "category"),
		chi.URLParam(r, "subcategory"),
		chi.URLParam(r, "service"),
	)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, serviceResponse{Service: buildServicePayload(service)})
}

func (h *CatalogHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxQuoteBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req quoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	result, err := h.catalog.Quote(ctx, services.QuoteCommand{
		ServiceID:       strings.TrimSpace(req.ServiceID),
		CategorySlug:    strings.TrimSpace(req.CategorySlug),
		SubcategorySlug: strings.TrimSpace(req.SubcategorySlug),
		ServiceSlug:     strings.TrimSpace(req.ServiceSlug),
		SelectedOptions: req.SelectedOptions,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, quoteResponse{
		ServiceID:   result.Service.ID,
		ServiceName: result.Service.Name,
		BasePrice:   result.BasePrice,
		FinalPrice:  result.FinalPrice,
		Currency:    strings.ToUpper(strings.TrimSpace(result.Service.Currency)),
	})
}

// writeCatalogError is shared with the admin catalog management endpoints.
func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInvalidVariationCombination):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_variation_combination", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_not_found", "catalog entry not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to serve catalog request", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func buildCategoryPayload(category services.Category) categoryPayload {
	payload := categoryPayload{
		ID:            category.ID,
		Name:          category.Name,
		Slug:          category.Slug,
		Description:   category.Description,
		ImageURL:      category.ImageURL,
		SortOrder:     category.SortOrder,
		Subcategories: make([]subcategoryPayload, 0, len(category.Subcategories)),
	}
	for _, sub := range category.Subcategories {
		entry := subcategoryPayload{
			ID:       sub.ID,
			Name:     sub.Name,
			Slug:     sub.Slug,
			Services: make([]servicePayload, 0, len(sub.Services)),
		}
		for _, svc := range sub.Services {
			entry.Services = append(entry.Services, buildServicePayload(svc))
		}
		payload.Subcategories = append(payload.Subcategories, entry)
	}
	if !category.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(category.UpdatedAt)
	}
	return payload
}

func buildServicePayload(service domain.CatalogService) servicePayload {
	payload := servicePayload{
		ID:           service.ID,
		Name:         service.Name,
		Slug:         service.Slug,
		Description:  service.Description,
		FeatureImage: service.FeatureImage,
		BasePrice:    service.BasePrice,
		Currency:     strings.ToUpper(strings.TrimSpace(service.Currency)),
		Features:     service.Features,
	}
	for _, vt := range service.VariationTypes {
		entry := variationTypePayload{
			Name:     vt.Name,
			Required: vt.Required,
			Options:  make([]variationOptionPayload, 0, len(vt.Options)),
		}
		for _, opt := range vt.Options {
			entry.Options = append(entry.Options, variationOptionPayload{ID: opt.ID, Name: opt.Name})
		}
		payload.VariationTypes = append(payload.VariationTypes, entry)
	}
	for _, combo := range service.PriceCombinations {
		payload.PriceCombinations = append(payload.PriceCombinations, priceCombinationPayload{
			Options: combo.Options,
			Price:   combo.Price,
		})
	}
	return payload
}

type categoriesResponse struct {
	Categories []categoryPayload `json:"categories"`
}

type serviceResponse struct {
	Service servicePayload `json:"service"`
}

type categoryPayload struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Slug          string               `json:"slug"`
	Description   string               `json:"description,omitempty"`
	ImageURL      string               `json:"image_url,omitempty"`
	SortOrder     int                  `json:"sort_order"`
	Subcategories []subcategoryPayload `json:"subcategories"`
	UpdatedAt     string               `json:"updated_at,omitempty"`
}

type subcategoryPayload struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Slug     string           `json:"slug"`
	Services []servicePayload `json:"services"`
}

type servicePayload struct {
	ID                string                    `json:"id"`
	Name              string                    `json:"name"`
	Slug              string                    `json:"slug"`
	Description       string                    `json:"description,omitempty"`
	FeatureImage      string                    `json:"feature_image,omitempty"`
	BasePrice         int64                     `json:"base_price"`
	Currency          string                    `json:"currency"`
	Features          []string                  `json:"features,omitempty"`
	VariationTypes    []variationTypePayload    `json:"variation_types,omitempty"`
	PriceCombinations []priceCombinationPayload `json:"price_combinations,omitempty"`
}

type variationTypePayload struct {
	Name     string                   `json:"name"`
	Required bool                     `json:"required"`
	Options  []variationOptionPayload `json:"options"`
}

type variationOptionPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type priceCombinationPayload struct {
	Options []string `json:"options"`
	Price   int64    `json:"price"`
}

type quoteRequest struct {
	ServiceID       string   `json:"service_id"`
	CategorySlug    string   `json:"category"`
	SubcategorySlug string   `json:"subcategory"`
	ServiceSlug     string   `json:"service"`
	SelectedOptions []string `json:"selected_options"`
}

type quoteResponse struct {
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	BasePrice   int64  `json:"base_price"`
	FinalPrice  int64  `json:"final_price"`
	Currency    string `json:"currency"`
}
