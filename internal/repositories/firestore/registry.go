package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/snapedits/api/internal/platform/firestore"
	"github.com/snapedits/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the shared provider.
type Registry struct {
	provider *pfirestore.Provider

	categories    *CategoryRepository
	carts         *CartRepository
	coupons       *CouponRepository
	orders        *OrderRepository
	counters      *CounterRepository
	notifications *NotificationRepository
	admins        *AdminRepository
}

// NewRegistry constructs every repository against the supplied provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	coupons, err := NewCouponRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}
	notifications, err := NewNotificationRepository(provider)
	if err != nil {
		return nil, err
	}
	admins, err := NewAdminRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:      provider,
		categories:    categories,
		carts:         carts,
		coupons:       coupons,
		orders:        orders,
		counters:      counters,
		notifications: notifications,
		admins:        admins,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) Coupons() repositories.CouponRepository { return r.coupons }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }

func (r *Registry) Admins() repositories.AdminRepository { return r.admins }

var _ repositories.Registry = (*Registry)(nil)
