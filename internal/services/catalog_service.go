package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/repositories"
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid catalog input.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogNotFound indicates the requested category or service does not exist.
	ErrCatalogNotFound = errors.New("catalog service: not found")
	// ErrCatalogUnavailable indicates the catalog backend cannot fulfil the request.
	ErrCatalogUnavailable = errors.New("catalog service: unavailable")
	// ErrInvalidVariationCombination indicates the selected options match no price combination.
	ErrInvalidVariationCombination = errors.New("catalog service: invalid variation combination")
)

// CatalogServiceDeps wires the repository and clock for catalog operations.
type CatalogServiceDeps struct {
	Repository  repositories.CategoryRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type catalogService struct {
	repo   repositories.CategoryRepository
	now    func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Repository == nil {
		return nil, errors.New("catalog service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		repo:   deps.Repository,
		now:    func() time.Time { return clock().UTC() },
		newID:  idGen,
		logger: logger,
	}, nil
}

// ListCategories returns the full catalog ordered for display.
func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return categories, nil
}

// GetCategoryBySlug resolves a category by its URL slug.
func (s *catalogService) GetCategoryBySlug(ctx context.Context, slug string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(slug))
	if normalized == "" {
		return Category{}, ErrCatalogInvalidInput
	}
	category, err := s.repo.FindBySlug(ctx, normalized)
	if err != nil {
		return Category{}, s.translateRepoError(err)
	}
	return category, nil
}

// GetServiceByID resolves a service anywhere in the catalog by its opaque id.
func (s *catalogService) GetServiceByID(ctx context.Context, serviceID string) (domain.CatalogService, error) {
	id := strings.TrimSpace(serviceID)
	if id == "" {
		return domain.CatalogService{}, ErrCatalogInvalidInput
	}
	svc, err := s.repo.FindServiceByID(ctx, id)
	if err != nil {
		return domain.CatalogService{}, s.translateRepoError(err)
	}
	return svc, nil
}

// GetServiceBySlugs resolves a service by its category/subcategory/service slug triple.
func (s *catalogService) GetServiceBySlugs(ctx context.Context, categorySlug, subcategorySlug, serviceSlug string) (domain.CatalogService, error) {
	catSlug := strings.ToLower(strings.TrimSpace(categorySlug))
	subSlug := strings.ToLower(strings.TrimSpace(subcategorySlug))
	svcSlug := strings.ToLower(strings.TrimSpace(serviceSlug))
	if catSlug == "" || subSlug == "" || svcSlug == "" {
		return domain.CatalogService{}, ErrCatalogInvalidInput
	}

	category, err := s.repo.FindBySlug(ctx, catSlug)
	if err != nil {
		return domain.CatalogService{}, s.translateRepoError(err)
	}
	for _, sub := range category.Subcategories {
		if !strings.EqualFold(sub.Slug, subSlug) {
			continue
		}
		for _, svc := range sub.Services {
			if strings.EqualFold(svc.Slug, svcSlug) {
				return svc, nil
			}
		}
	}
	return domain.CatalogService{}, ErrCatalogNotFound
}

// Quote resolves the price for a service and an optional option selection.
// With no selections the base price applies. With selections, the price
// combination whose option-name set equals the selection exactly applies;
// anything else is a hard validation error, never a fallback to base price.
func (s *catalogService) Quote(ctx context.Context, cmd QuoteCommand) (QuoteResult, error) {
	var (
		svc domain.CatalogService
		err error
	)
	switch {
	case strings.TrimSpace(cmd.ServiceID) != "":
		svc, err = s.GetServiceByID(ctx, cmd.ServiceID)
	case strings.TrimSpace(cmd.ServiceSlug) != "":
		svc, err = s.GetServiceBySlugs(ctx, cmd.CategorySlug, cmd.SubcategorySlug, cmd.ServiceSlug)
	default:
		return QuoteResult{}, fmt.Errorf("%w: service id or slug triple is required", ErrCatalogInvalidInput)
	}
	if err != nil {
		return QuoteResult{}, err
	}

	final, err := resolveFinalPrice(svc, cmd.SelectedOptions)
	if err != nil {
		return QuoteResult{}, err
	}
	return QuoteResult{
		BasePrice:  svc.BasePrice,
		FinalPrice: final,
		Service:    svc,
	}, nil
}

// UpsertCategory validates and writes the full category aggregate.
func (s *catalogService) UpsertCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	category := cmd.Category
	category.Name = strings.TrimSpace(category.Name)
	category.Slug = strings.ToLower(strings.TrimSpace(category.Slug))
	if category.Name == "" || category.Slug == "" {
		return Category{}, fmt.Errorf("%w: name and slug are required", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(category.ID) == "" {
		category.ID = s.newID()
	}

	for si, sub := range category.Subcategories {
		if strings.TrimSpace(sub.ID) == "" {
			category.Subcategories[si].ID = s.newID()
		}
		for vi, svc := range sub.Services {
			if strings.TrimSpace(svc.ID) == "" {
				category.Subcategories[si].Services[vi].ID = s.newID()
			}
			if err := validateServiceDefinition(svc); err != nil {
				return Category{}, err
			}
		}
	}

	now := s.now()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now

	if err := s.repo.Upsert(ctx, category); err != nil {
		return Category{}, s.translateRepoError(err)
	}
	s.logger(ctx, "catalog.category_upserted", map[string]any{
		"categoryID": category.ID,
		"actorID":    cmd.ActorID,
	})
	return category, nil
}

// DeleteCategory removes a category aggregate and everything nested in it.
func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return ErrCatalogInvalidInput
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return s.translateRepoError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

// validateServiceDefinition checks the combination invariant: every option name
// referenced by a price combination must exist among the variation options.
func validateServiceDefinition(svc domain.CatalogService) error {
	if strings.TrimSpace(svc.Name) == "" || strings.TrimSpace(svc.Slug) == "" {
		return fmt.Errorf("%w: service name and slug are required", ErrCatalogInvalidInput)
	}
	if svc.BasePrice < 0 {
		return fmt.Errorf("%w: base price must be non-negative", ErrCatalogInvalidInput)
	}

	known := make(map[string]struct{})
	for _, vt := range svc.VariationTypes {
		for _, opt := range vt.Options {
			known[normalizeOptionName(opt.Name)] = struct{}{}
		}
	}
	for _, combo := range svc.PriceCombinations {
		if len(combo.Options) == 0 {
			return fmt.Errorf("%w: price combination must name at least one option", ErrCatalogInvalidInput)
		}
		if combo.Price < 0 {
			return fmt.Errorf("%w: combination price must be non-negative", ErrCatalogInvalidInput)
		}
		for _, name := range combo.Options {
			if _, ok := known[normalizeOptionName(name)]; !ok {
				return fmt.Errorf("%w: combination references unknown option %q", ErrCatalogInvalidInput, name)
			}
		}
	}
	return nil
}

func resolveFinalPrice(svc domain.CatalogService, selected []string) (int64, error) {
	normalized := normalizeOptionSet(selected)
	if len(normalized) == 0 {
		return svc.BasePrice, nil
	}
	for _, combo := range svc.PriceCombinations {
		if optionSetsEqual(normalized, normalizeOptionSet(combo.Options)) {
			return combo.Price, nil
		}
	}
	return 0, ErrInvalidVariationCombination
}

func normalizeOptionName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeOptionSet(names []string) []string {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if normalized := normalizeOptionName(name); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func optionSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isRepoNotFound(err) {
		return ErrCatalogNotFound
	}
	return ErrCatalogUnavailable
}
