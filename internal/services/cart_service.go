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
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = errors.New("cart service: invalid input")
	// ErrCartNotFound indicates the requested cart or cart item does not exist.
	ErrCartNotFound = errors.New("cart service: not found")
	// ErrCartUnavailable indicates the cart service cannot fulfil the request due to backend issues.
	ErrCartUnavailable = errors.New("cart service: unavailable")
)

type quoteProvider interface {
	Quote(ctx context.Context, cmd QuoteCommand) (QuoteResult, error)
}

// CartServiceDeps wires the repository and catalog dependencies for cart operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Catalog         quoteProvider
	Clock           func() time.Time
	IDGenerator     func() string
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
}

type cartService struct {
	repo     repositories.CartRepository
	catalog  quoteProvider
	now      func() time.Time
	newID    func() string
	currency string
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errors.New("cart service: repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		repo:     deps.Repository,
		catalog:  deps.Catalog,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		currency: currency,
		logger:   logger,
	}, nil
}

// GetOrCreateCart loads the user's cart; a missing cart is returned empty and
// is only persisted once the first item is added.
func (s *cartService) GetOrCreateCart(ctx context.Context, userID string) (Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.FindByUser(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return s.newCart(uid), nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	recomputeCartTotals(&cart)
	return cart, nil
}

// AddItem resolves the price through the catalog, then merges into an existing
// line with the same identity key or appends a new line.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	serviceID := strings.TrimSpace(cmd.ServiceID)
	if serviceID == "" {
		return Cart{}, fmt.Errorf("%w: service_id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
	}

	quote, err := s.catalog.Quote(ctx, QuoteCommand{
		ServiceID:       serviceID,
		SelectedOptions: selectedOptionNames(cmd.Variations),
	})
	if err != nil {
		if errors.Is(err, ErrCatalogNotFound) {
			return Cart{}, fmt.Errorf("%w: unknown service %q", ErrCartInvalidInput, serviceID)
		}
		if errors.Is(err, ErrInvalidVariationCombination) || errors.Is(err, ErrCatalogInvalidInput) {
			return Cart{}, fmt.Errorf("%w: %v", ErrCartInvalidInput, err)
		}
		return Cart{}, ErrCartUnavailable
	}

	cart, err := s.repo.FindByUser(ctx, uid)
	if err != nil {
		if !isRepoNotFound(err) {
			return Cart{}, s.translateRepoError(err)
		}
		cart = s.newCart(uid)
	}

	now := s.now()
	key := cartItemIdentity(serviceID, cmd.Variations)
	merged := false
	for i := range cart.Items {
		if cartItemIdentity(cart.Items[i].ServiceID, cart.Items[i].Variations) != key {
			continue
		}
		cart.Items[i].Quantity += cmd.Quantity
		cart.Items[i].FinalPrice = quote.FinalPrice
		cart.Items[i].BasePrice = quote.BasePrice
		ts := now
		cart.Items[i].UpdatedAt = &ts
		merged = true
		break
	}
	if !merged {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:           s.newID(),
			ServiceID:    serviceID,
			ServiceName:  quote.Service.Name,
			FeatureImage: quote.Service.FeatureImage,
			BasePrice:    quote.BasePrice,
			FinalPrice:   quote.FinalPrice,
			Quantity:     cmd.Quantity,
			Variations:   cloneVariations(cmd.Variations),
			FormData:     cmd.FormData,
			AddedAt:      now,
		})
	}

	return s.persist(ctx, cart, now)
}

// UpdateItemQuantity sets the quantity of the line identified by service id and
// sorted option-id set.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	serviceID := strings.TrimSpace(cmd.ServiceID)
	if serviceID == "" {
		return Cart{}, fmt.Errorf("%w: service_id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
	}

	cart, err := s.repo.FindByUser(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}

	now := s.now()
	key := identityKey(serviceID, cmd.OptionIDs)
	found := false
	for i := range cart.Items {
		if cartItemIdentity(cart.Items[i].ServiceID, cart.Items[i].Variations) != key {
			continue
		}
		cart.Items[i].Quantity = cmd.Quantity
		ts := now
		cart.Items[i].UpdatedAt = &ts
		found = true
		break
	}
	if !found {
		return Cart{}, ErrCartNotFound
	}

	return s.persist(ctx, cart, now)
}

// RemoveItem drops every line carrying the service id. Lines are matched by
// service id alone, so two differently configured lines of the same service
// are removed together.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	serviceID := strings.TrimSpace(cmd.ServiceID)
	if serviceID == "" {
		return Cart{}, fmt.Errorf("%w: service_id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.FindByUser(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}

	kept := cart.Items[:0:0]
	for _, item := range cart.Items {
		if strings.EqualFold(strings.TrimSpace(item.ServiceID), serviceID) {
			continue
		}
		kept = append(kept, item)
	}
	if len(kept) == len(cart.Items) {
		return Cart{}, ErrCartNotFound
	}
	cart.Items = kept

	return s.persist(ctx, cart, s.now())
}

// ClearCart removes the cart document; clearing an absent cart is a no-op.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}
	if err := s.repo.Delete(ctx, uid); err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return s.translateRepoError(err)
	}
	return nil
}

func (s *cartService) persist(ctx context.Context, cart Cart, now time.Time) (Cart, error) {
	recomputeCartTotals(&cart)
	cart.UpdatedAt = now
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	saved, err := s.repo.Upsert(ctx, cart)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	recomputeCartTotals(&saved)
	return saved, nil
}

func (s *cartService) newCart(userID string) Cart {
	now := s.now()
	return Cart{
		ID:        userID,
		UserID:    userID,
		Currency:  s.currency,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// recomputeCartTotals derives the running totals from the full item list. The
// totals are never updated incrementally.
func recomputeCartTotals(cart *Cart) {
	if cart == nil {
		return
	}
	var total int64
	var quantity int
	for _, item := range cart.Items {
		if item.Quantity <= 0 {
			continue
		}
		total += item.FinalPrice * int64(item.Quantity)
		quantity += item.Quantity
	}
	cart.Total = total
	cart.Quantity = quantity
}

// cartItemIdentity builds the merge key: service id plus the sorted selected
// option-id set.
func cartItemIdentity(serviceID string, variations []SelectedVariation) string {
	ids := make([]string, 0, len(variations))
	for _, v := range variations {
		if id := strings.TrimSpace(v.OptionID); id != "" {
			ids = append(ids, id)
		}
	}
	return identityKey(serviceID, ids)
}

func identityKey(serviceID string, optionIDs []string) string {
	ids := make([]string, 0, len(optionIDs))
	for _, id := range optionIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	sort.Strings(ids)
	return strings.TrimSpace(serviceID) + "|" + strings.Join(ids, ",")
}

func selectedOptionNames(variations []SelectedVariation) []string {
	names := make([]string, 0, len(variations))
	for _, v := range variations {
		if name := strings.TrimSpace(v.OptionName); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func cloneVariations(variations []SelectedVariation) []SelectedVariation {
	if len(variations) == 0 {
		return nil
	}
	dup := make([]SelectedVariation, len(variations))
	copy(dup, variations)
	return dup
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isRepoNotFound(err) {
		return ErrCartNotFound
	}
	return ErrCartUnavailable
}
