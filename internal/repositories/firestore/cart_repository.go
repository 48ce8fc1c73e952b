package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/snapedits/api/internal/domain"
	pfirestore "github.com/snapedits/api/internal/platform/firestore"
	"github.com/snapedits/api/internal/repositories"
)

const cartsCollection = "carts"

type cartDocument struct {
	UserID    string             `firestore:"userId"`
	Currency  string             `firestore:"currency"`
	Items     []cartItemDocument `firestore:"items"`
	Total     int64              `firestore:"cartTotal"`
	Quantity  int                `firestore:"cartQuantity"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID           string                      `firestore:"id"`
	ServiceID    string                      `firestore:"serviceId"`
	ServiceName  string                      `firestore:"serviceName"`
	FeatureImage string                      `firestore:"featureImage,omitempty"`
	BasePrice    int64                       `firestore:"basePrice"`
	FinalPrice   int64                       `firestore:"finalPrice"`
	Quantity     int                         `firestore:"quantity"`
	Variations   []selectedVariationDocument `firestore:"variations,omitempty"`
	FormData     map[string]any              `firestore:"formData,omitempty"`
	AddedAt      time.Time                   `firestore:"addedAt"`
	UpdatedAt    *time.Time                  `firestore:"updatedAt,omitempty"`
}

type selectedVariationDocument struct {
	VariationType string `firestore:"variationType"`
	OptionID      string `firestore:"optionId"`
	OptionName    string `firestore:"optionName"`
}

// CartRepository persists cart documents keyed by user ID.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil),
	}, nil
}

// Upsert writes the full cart document using the user ID as document identifier.
func (r *CartRepository) Upsert(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		userID = strings.TrimSpace(cart.ID)
	}
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := cartDocument{
		UserID:    userID,
		Currency:  strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:     encodeCartItems(cart.Items),
		Total:     cart.Total,
		Quantity:  cart.Quantity,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}

	result, err := r.base.Set(ctx, userID, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved := cart
	saved.ID = userID
	saved.UserID = userID
	saved.Currency = doc.Currency
	saved.CreatedAt = createdAt
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// FindByUser loads the cart for the given user ID.
func (r *CartRepository) FindByUser(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}

	cart := domain.Cart{
		ID:        doc.ID,
		UserID:    doc.ID,
		Currency:  strings.ToUpper(strings.TrimSpace(doc.Data.Currency)),
		Items:     decodeCartItems(doc.Data.Items),
		Total:     doc.Data.Total,
		Quantity:  doc.Data.Quantity,
		CreatedAt: doc.Data.CreatedAt,
		UpdatedAt: doc.Data.UpdatedAt,
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = doc.UpdateTime
	}
	return cart, nil
}

// Delete removes the cart document entirely.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}
	ref, err := r.base.DocumentRef(ctx, uid)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("carts.delete", err)
	}
	return nil
}

func encodeCartItems(items []domain.CartItem) []cartItemDocument {
	out := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		out = append(out, cartItemDocument{
			ID:           item.ID,
			ServiceID:    item.ServiceID,
			ServiceName:  item.ServiceName,
			FeatureImage: item.FeatureImage,
			BasePrice:    item.BasePrice,
			FinalPrice:   item.FinalPrice,
			Quantity:     item.Quantity,
			Variations:   encodeSelectedVariations(item.Variations),
			FormData:     item.FormData,
			AddedAt:      item.AddedAt.UTC(),
			UpdatedAt:    item.UpdatedAt,
		})
	}
	return out
}

func decodeCartItems(items []cartItemDocument) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.CartItem{
			ID:           item.ID,
			ServiceID:    item.ServiceID,
			ServiceName:  item.ServiceName,
			FeatureImage: item.FeatureImage,
			BasePrice:    item.BasePrice,
			FinalPrice:   item.FinalPrice,
			Quantity:     item.Quantity,
			Variations:   decodeSelectedVariations(item.Variations),
			FormData:     item.FormData,
			AddedAt:      item.AddedAt,
			UpdatedAt:    item.UpdatedAt,
		})
	}
	return out
}

func encodeSelectedVariations(variations []domain.SelectedVariation) []selectedVariationDocument {
	if len(variations) == 0 {
		return nil
	}
	out := make([]selectedVariationDocument, 0, len(variations))
	for _, v := range variations {
		out = append(out, selectedVariationDocument{
			VariationType: v.VariationType,
			OptionID:      v.OptionID,
			OptionName:    v.OptionName,
		})
	}
	return out
}

func decodeSelectedVariations(variations []selectedVariationDocument) []domain.SelectedVariation {
	if len(variations) == 0 {
		return nil
	}
	out := make([]domain.SelectedVariation, 0, len(variations))
	for _, v := range variations {
		out = append(out, domain.SelectedVariation{
			VariationType: v.VariationType,
			OptionID:      v.OptionID,
			OptionName:    v.OptionName,
		})
	}
	return out
}

var _ repositories.CartRepository = (*CartRepository)(nil)
