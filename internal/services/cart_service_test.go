package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/snapedits/api/internal/domain"
)

type stubCartRepository struct {
	carts map[string]Cart

	upsertFn func(context.Context, Cart) (Cart, error)
	findFn   func(context.Context, string) (Cart, error)
	deleteFn func(context.Context, string) error

	deleted []string
}

func newStubCartRepository() *stubCartRepository {
	return &stubCartRepository{carts: make(map[string]Cart)}
}

func (s *stubCartRepository) Upsert(ctx context.Context, cart Cart) (Cart, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, cart)
	}
	s.carts[cart.UserID] = cart
	return cart, nil
}

func (s *stubCartRepository) FindByUser(ctx context.Context, userID string) (Cart, error) {
	if s.findFn != nil {
		return s.findFn(ctx, userID)
	}
	cart, ok := s.carts[userID]
	if !ok {
		return Cart{}, cartRepoError{notFound: true}
	}
	return cart, nil
}

func (s *stubCartRepository) Delete(ctx context.Context, userID string) error {
	s.deleted = append(s.deleted, userID)
	if s.deleteFn != nil {
		return s.deleteFn(ctx, userID)
	}
	if _, ok := s.carts[userID]; !ok {
		return cartRepoError{notFound: true}
	}
	delete(s.carts, userID)
	return nil
}

type cartRepoError struct {
	notFound bool
}

func (e cartRepoError) Error() string       { return "cart repository error" }
func (e cartRepoError) IsNotFound() bool    { return e.notFound }
func (e cartRepoError) IsConflict() bool    { return false }
func (e cartRepoError) IsUnavailable() bool { return !e.notFound }

type stubQuoteProvider struct {
	quoteFn func(context.Context, QuoteCommand) (QuoteResult, error)
}

func (s *stubQuoteProvider) Quote(ctx context.Context, cmd QuoteCommand) (QuoteResult, error) {
	if s.quoteFn != nil {
		return s.quoteFn(ctx, cmd)
	}
	return QuoteResult{
		BasePrice:  1000,
		FinalPrice: 1000,
		Service:    domain.CatalogService{ID: cmd.ServiceID, Name: "Photo Retouching"},
	}, nil
}

func newTestCartService(t *testing.T, repo *stubCartRepository, catalog quoteProvider) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Catalog:    catalog,
		Clock: func() time.Time {
			return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	return svc
}

func TestCartServiceGetOrCreateReturnsEmptyCartWithoutPersisting(t *testing.T) {
	repo := newStubCartRepository()
	svc := newTestCartService(t, repo, &stubQuoteProvider{})

	cart, err := svc.GetOrCreateCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if cart.UserID != "user-1" || len(cart.Items) != 0 {
		t.Fatalf("expected empty cart for user-1, got %+v", cart)
	}
	if _, ok := repo.carts["user-1"]; ok {
		t.Fatalf("empty cart must not be persisted")
	}
}

func TestCartServiceAddItemMergesSameConfiguration(t *testing.T) {
	repo := newStubCartRepository()
	svc := newTestCartService(t, repo, &stubQuoteProvider{})

	variations := []SelectedVariation{
		{VariationType: "Output Format", OptionID: "opt-jpeg", OptionName: "JPEG"},
	}

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:     "user-1",
		ServiceID:  "svc-retouch",
		Quantity:   1,
		Variations: variations,
	})
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if len(cart.Items) != 1 || cart.Quantity != 1 {
		t.Fatalf("expected one line qty 1, got %+v", cart)
	}

	cart, err = svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:     "user-1",
		ServiceID:  "svc-retouch",
		Quantity:   2,
		Variations: []SelectedVariation{{VariationType: "Output Format", OptionID: "opt-jpeg", OptionName: "JPEG"}},
	})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected matching configurations to merge, got %d lines", len(cart.Items))
	}
	if cart.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", cart.Items[0].Quantity)
	}
	if cart.Total != 3000 {
		t.Fatalf("expected total 3000, got %d", cart.Total)
	}
	if cart.Quantity != 3 {
		t.Fatalf("expected cart quantity 3, got %d", cart.Quantity)
	}
}

func TestCartServiceAddItemKeepsDifferentConfigurationsSeparate(t *testing.T) {
	repo := newStubCartRepository()
	svc := newTestCartService(t, repo, &stubQuoteProvider{})

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:     "user-1",
		ServiceID:  "svc-retouch",
		Quantity:   1,
		Variations: []SelectedVariation{{OptionID: "opt-jpeg", OptionName: "JPEG"}},
	})
	if err != nil {
		t.Fatalf("first add: %v", err)
	}

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:     "user-1",
		ServiceID:  "svc-retouch",
		Quantity:   1,
		Variations: []SelectedVariation{{OptionID: "opt-tiff", OptionName: "TIFF"}},
	})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected two lines for differing option sets, got %d", len(cart.Items))
	}
}

func TestCartServiceAddItemRejectsUnknownService(t *testing.T) {
	repo := newStubCartRepository()
	catalog := &stubQuoteProvider{
		quoteFn: func(context.Context, QuoteCommand) (QuoteResult, error) {
			return QuoteResult{}, ErrCatalogNotFound
		},
	}
	svc := newTestCartService(t, repo, catalog)

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:    "user-1",
		ServiceID: "missing",
		Quantity:  1,
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input for unknown service, got %v", err)
	}
	if len(repo.carts) != 0 {
		t.Fatalf("expected no cart persisted on quote failure")
	}
}

func TestCartServiceAddItemRejectsInvalidCombination(t *testing.T) {
	repo := newStubCartRepository()
	catalog := &stubQuoteProvider{
		quoteFn: func(context.Context, QuoteCommand) (QuoteResult, error) {
			return QuoteResult{}, ErrInvalidVariationCombination
		},
	}
	svc := newTestCartService(t, repo, catalog)

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:     "user-1",
		ServiceID:  "svc-retouch",
		Quantity:   1,
		Variations: []SelectedVariation{{OptionID: "opt-x", OptionName: "Nonsense"}},
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input for bad combination, got %v", err)
	}
}

func TestCartServiceUpdateItemQuantity(t *testing.T) {
	repo := newStubCartRepository()
	svc := newTestCartService(t, repo, &stubQuoteProvider{})

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:     "user-1",
		ServiceID:  "svc-retouch",
		Quantity:   1,
		Variations: []SelectedVariation{{OptionID: "opt-jpeg", OptionName: "JPEG"}},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	cart, err := svc.UpdateItemQuantity(context.Background(), UpdateCartQuantityCommand{
		UserID:    "user-1",
		ServiceID: "svc-retouch",
		OptionIDs: []string{"opt-jpeg"},
		Quantity:  5,
	})
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if cart.Items[0].Quantity != 5 || cart.Total != 5000 {
		t.Fatalf("expected qty 5 total 5000, got qty %d total %d", cart.Items[0].Quantity, cart.Total)
	}

	_, err = svc.UpdateItemQuantity(context.Background(), UpdateCartQuantityCommand{
		UserID:    "user-1",
		ServiceID: "svc-retouch",
		OptionIDs: []string{"opt-tiff"},
		Quantity:  2,
	})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected not found for unmatched option set, got %v", err)
	}

	_, err = svc.UpdateItemQuantity(context.Background(), UpdateCartQuantityCommand{
		UserID:    "user-1",
		ServiceID: "svc-retouch",
		OptionIDs: []string{"opt-jpeg"},
		Quantity:  0,
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input for zero quantity, got %v", err)
	}
}

func TestCartServiceRemoveItemDropsAllLinesOfService(t *testing.T) {
	repo := newStubCartRepository()
	svc := newTestCartService(t, repo, &stubQuoteProvider{})

	// Two differently configured lines of the same service plus one other
	// service.
	for _, variations := range [][]SelectedVariation{
		{{OptionID: "opt-jpeg", OptionName: "JPEG"}},
		{{OptionID: "opt-tiff", OptionName: "TIFF"}},
	} {
		if _, err := svc.AddItem(context.Background(), AddCartItemCommand{
			UserID:     "user-1",
			ServiceID:  "svc-retouch",
			Quantity:   1,
			Variations: variations,
		}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if _, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:    "user-1",
		ServiceID: "svc-restore",
		Quantity:  1,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	cart, err := svc.RemoveItem(context.Background(), RemoveCartItemCommand{
		UserID:    "user-1",
		ServiceID: "svc-retouch",
	})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ServiceID != "svc-restore" {
		t.Fatalf("expected only svc-restore to remain, got %+v", cart.Items)
	}

	_, err = svc.RemoveItem(context.Background(), RemoveCartItemCommand{
		UserID:    "user-1",
		ServiceID: "svc-retouch",
	})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected not found when nothing removed, got %v", err)
	}
}

func TestCartServiceClearCartIsIdempotent(t *testing.T) {
	repo := newStubCartRepository()
	svc := newTestCartService(t, repo, &stubQuoteProvider{})

	if _, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:    "user-1",
		ServiceID: "svc-retouch",
		Quantity:  1,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.ClearCart(context.Background(), "user-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := svc.ClearCart(context.Background(), "user-1"); err != nil {
		t.Fatalf("clearing an absent cart must be a no-op, got %v", err)
	}
}
