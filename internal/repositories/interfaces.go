package repositories

import (
	"context"
	"time"

	domain "github.com/snapedits/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Categories() CategoryRepository
	Carts() CartRepository
	Coupons() CouponRepository
	Orders() OrderRepository
	Counters() CounterRepository
	Notifications() NotificationRepository
	Admins() AdminRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CategoryRepository persists catalog categories as aggregate documents.
type CategoryRepository interface {
	Upsert(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	FindServiceByID(ctx context.Context, serviceID string) (domain.CatalogService, error)
}

// CartRepository owns cart persistence keyed by user ID.
type CartRepository interface {
	Upsert(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	FindByUser(ctx context.Context, userID string) (domain.Cart, error)
	Delete(ctx context.Context, userID string) error
}

// CouponRepository maintains coupon definitions and redemption counters.
type CouponRepository interface {
	Insert(ctx context.Context, coupon domain.Coupon) error
	Update(ctx context.Context, coupon domain.Coupon) error
	Delete(ctx context.Context, couponID string) error
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context) ([]domain.Coupon, error)
	// Redeem atomically increments the usage counter of the coupon identified
	// by code, provided the coupon is still valid at now and the usage cap has
	// not been reached. The updated coupon is returned.
	Redeem(ctx context.Context, code string, now time.Time) (domain.Coupon, error)
}

// OrderListFilter narrows order listings for user and admin surfaces.
type OrderListFilter struct {
	UserID        string
	Status        *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Pagination    domain.Pagination
}

// OrderRepository persists order documents and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// ListRefundCandidates returns orders whose payment failed and whose
	// refund attempt count is still below maxAttempts.
	ListRefundCandidates(ctx context.Context, maxAttempts int, limit int) ([]domain.Order, error)
}

// CounterConfig customises counter behaviour prior to the first increment.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// CounterRepository issues monotonically increasing sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// NotificationListFilter narrows notification listings for the admin inbox.
type NotificationListFilter struct {
	AdminID    string
	UnreadOnly bool
	Pagination domain.Pagination
}

// NotificationRepository stores per-admin notification inbox entries.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.Notification) error
	MarkRead(ctx context.Context, notificationID string, readAt time.Time) error
	FindByID(ctx context.Context, notificationID string) (domain.Notification, error)
	List(ctx context.Context, filter NotificationListFilter) (domain.CursorPage[domain.Notification], error)
}

// AdminRepository reads staff profiles for notification fan-out and authz checks.
type AdminRepository interface {
	FindByID(ctx context.Context, adminID string) (domain.AdminProfile, error)
	// ListSubscribed returns admins whose notification preferences opt in to
	// the given event type.
	ListSubscribed(ctx context.Context, eventType domain.NotificationType) ([]domain.AdminProfile, error)
}
