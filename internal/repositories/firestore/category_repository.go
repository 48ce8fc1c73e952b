package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/snapedits/api/internal/domain"
	pfirestore "github.com/snapedits/api/internal/platform/firestore"
	"github.com/snapedits/api/internal/repositories"
)

const categoriesCollection = "categories"

type categoryDocument struct {
	Name          string                `firestore:"name"`
	Slug          string                `firestore:"slug"`
	Description   string                `firestore:"description,omitempty"`
	ImageURL      string                `firestore:"imageUrl,omitempty"`
	SortOrder     int                   `firestore:"sortOrder"`
	Subcategories []subcategoryDocument `firestore:"subcategories"`
	CreatedAt     time.Time             `firestore:"createdAt"`
	UpdatedAt     time.Time             `firestore:"updatedAt"`
}

type subcategoryDocument struct {
	ID       string                   `firestore:"id"`
	Name     string                   `firestore:"name"`
	Slug     string                   `firestore:"slug"`
	Services []catalogServiceDocument `firestore:"services"`
}

type catalogServiceDocument struct {
	ID                string                     `firestore:"id"`
	Name              string                     `firestore:"name"`
	Slug              string                     `firestore:"slug"`
	Description       string                     `firestore:"description,omitempty"`
	FeatureImage      string                     `firestore:"featureImage,omitempty"`
	BasePrice         int64                      `firestore:"basePrice"`
	Currency          string                     `firestore:"currency,omitempty"`
	Features          []string                   `firestore:"features,omitempty"`
	VariationTypes    []variationTypeDocument    `firestore:"variationTypes,omitempty"`
	PriceCombinations []priceCombinationDocument `firestore:"priceCombinations,omitempty"`
}

type variationTypeDocument struct {
	Name     string                    `firestore:"name"`
	Required bool                      `firestore:"required"`
	Options  []variationOptionDocument `firestore:"options"`
}

type variationOptionDocument struct {
	ID   string `firestore:"id"`
	Name string `firestore:"name"`
}

type priceCombinationDocument struct {
	Options []string `firestore:"options"`
	Price   int64    `firestore:"price"`
}

// CategoryRepository stores catalog categories as aggregate documents in Firestore.
type CategoryRepository struct {
	base *pfirestore.BaseRepository[categoryDocument]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	return &CategoryRepository{
		base: pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection, nil, nil),
	}, nil
}

// Upsert writes the full category aggregate.
func (r *CategoryRepository) Upsert(ctx context.Context, category domain.Category) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	id := strings.TrimSpace(category.ID)
	if id == "" {
		return errors.New("category repository: category id is required")
	}

	now := time.Now().UTC()
	createdAt := category.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := categoryDocument{
		Name:          strings.TrimSpace(category.Name),
		Slug:          strings.ToLower(strings.TrimSpace(category.Slug)),
		Description:   strings.TrimSpace(category.Description),
		ImageURL:      strings.TrimSpace(category.ImageURL),
		SortOrder:     category.SortOrder,
		Subcategories: encodeSubcategories(category.Subcategories),
		CreatedAt:     createdAt,
		UpdatedAt:     now,
	}

	_, err := r.base.Set(ctx, id, doc)
	return err
}

// Delete removes the category aggregate.
func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return errors.New("category repository: category id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("categories.delete", err)
	}
	return nil
}

// FindByID loads a single category aggregate.
func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return domain.Category{}, errors.New("category repository: category id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	return decodeCategory(doc.ID, doc.Data), nil
}

// FindBySlug resolves a category by its URL slug.
func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	normalized := strings.ToLower(strings.TrimSpace(slug))
	if normalized == "" {
		return domain.Category{}, errors.New("category repository: slug is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", normalized).Limit(1)
	})
	if err != nil {
		return domain.Category{}, err
	}
	if len(docs) == 0 {
		return domain.Category{}, newNotFoundError("categories.findBySlug", fmt.Sprintf("category %q not found", normalized))
	}
	return decodeCategory(docs[0].ID, docs[0].Data), nil
}

// List returns all categories ordered for display.
func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("category repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("sortOrder", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, decodeCategory(doc.ID, doc.Data))
	}
	return categories, nil
}

// FindServiceByID scans the catalog for the service with the given ID. Services
// live inside their category aggregate, so the lookup walks the (small) category
// collection rather than a dedicated index.
func (r *CategoryRepository) FindServiceByID(ctx context.Context, serviceID string) (domain.CatalogService, error) {
	id := strings.TrimSpace(serviceID)
	if id == "" {
		return domain.CatalogService{}, errors.New("category repository: service id is required")
	}

	categories, err := r.List(ctx)
	if err != nil {
		return domain.CatalogService{}, err
	}
	for _, category := range categories {
		for _, sub := range category.Subcategories {
			for _, svc := range sub.Services {
				if svc.ID == id {
					return svc, nil
				}
			}
		}
	}
	return domain.CatalogService{}, newNotFoundError("categories.findService", fmt.Sprintf("service %q not found", id))
}

func encodeSubcategories(subs []domain.Subcategory) []subcategoryDocument {
	out := make([]subcategoryDocument, 0, len(subs))
	for _, sub := range subs {
		services := make([]catalogServiceDocument, 0, len(sub.Services))
		for _, svc := range sub.Services {
			services = append(services, encodeCatalogService(svc))
		}
		out = append(out, subcategoryDocument{
			ID:       sub.ID,
			Name:     strings.TrimSpace(sub.Name),
			Slug:     strings.ToLower(strings.TrimSpace(sub.Slug)),
			Services: services,
		})
	}
	return out
}

func encodeCatalogService(svc domain.CatalogService) catalogServiceDocument {
	doc := catalogServiceDocument{
		ID:           svc.ID,
		Name:         strings.TrimSpace(svc.Name),
		Slug:         strings.ToLower(strings.TrimSpace(svc.Slug)),
		Description:  strings.TrimSpace(svc.Description),
		FeatureImage: strings.TrimSpace(svc.FeatureImage),
		BasePrice:    svc.BasePrice,
		Currency:     strings.ToUpper(strings.TrimSpace(svc.Currency)),
		Features:     svc.Features,
	}
	for _, vt := range svc.VariationTypes {
		options := make([]variationOptionDocument, 0, len(vt.Options))
		for _, opt := range vt.Options {
			options = append(options, variationOptionDocument{ID: opt.ID, Name: opt.Name})
		}
		doc.VariationTypes = append(doc.VariationTypes, variationTypeDocument{
			Name:     vt.Name,
			Required: vt.Required,
			Options:  options,
		})
	}
	for _, combo := range svc.PriceCombinations {
		doc.PriceCombinations = append(doc.PriceCombinations, priceCombinationDocument{
			Options: combo.Options,
			Price:   combo.Price,
		})
	}
	return doc
}

func decodeCategory(id string, doc categoryDocument) domain.Category {
	category := domain.Category{
		ID:          id,
		Name:        doc.Name,
		Slug:        doc.Slug,
		Description: doc.Description,
		ImageURL:    doc.ImageURL,
		SortOrder:   doc.SortOrder,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	for _, sub := range doc.Subcategories {
		services := make([]domain.CatalogService, 0, len(sub.Services))
		for _, svc := range sub.Services {
			services = append(services, decodeCatalogService(svc))
		}
		category.Subcategories = append(category.Subcategories, domain.Subcategory{
			ID:       sub.ID,
			Name:     sub.Name,
			Slug:     sub.Slug,
			Services: services,
		})
	}
	return category
}

func decodeCatalogService(doc catalogServiceDocument) domain.CatalogService {
	svc := domain.CatalogService{
		ID:           doc.ID,
		Name:         doc.Name,
		Slug:         doc.Slug,
		Description:  doc.Description,
		FeatureImage: doc.FeatureImage,
		BasePrice:    doc.BasePrice,
		Currency:     doc.Currency,
		Features:     doc.Features,
	}
	for _, vt := range doc.VariationTypes {
		options := make([]domain.VariationOption, 0, len(vt.Options))
		for _, opt := range vt.Options {
			options = append(options, domain.VariationOption{ID: opt.ID, Name: opt.Name})
		}
		svc.VariationTypes = append(svc.VariationTypes, domain.VariationType{
			Name:     vt.Name,
			Required: vt.Required,
			Options:  options,
		})
	}
	for _, combo := range doc.PriceCombinations {
		svc.PriceCombinations = append(svc.PriceCombinations, domain.PriceCombination{
			Options: combo.Options,
			Price:   combo.Price,
		})
	}
	return svc
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)
