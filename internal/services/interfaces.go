package services

import (
	"context"
	"time"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination        = domain.Pagination
	SortOrder         = domain.SortOrder
	Category          = domain.Category
	Subcategory       = domain.Subcategory
	VariationType     = domain.VariationType
	VariationOption   = domain.VariationOption
	PriceCombination  = domain.PriceCombination
	Cart              = domain.Cart
	CartItem          = domain.CartItem
	SelectedVariation = domain.SelectedVariation
	Coupon            = domain.Coupon
	DiscountType      = domain.DiscountType
	Order             = domain.Order
	OrderLineItem     = domain.OrderLineItem
	OrderStatus       = domain.OrderStatus
	PaymentStatus     = domain.PaymentStatus
	Address           = domain.Address
	Notification      = domain.Notification
	NotificationType  = domain.NotificationType
	NotificationRef   = domain.NotificationRef
	AdminProfile      = domain.AdminProfile
)

// CounterValue carries a freshly issued sequence value and its formatted representation.
type CounterValue struct {
	Value     int64
	Formatted string
}

// CounterGenerationOptions controls how counter values are incremented and formatted.
type CounterGenerationOptions struct {
	Step         int64
	Prefix       string
	Suffix       string
	PadLength    int
	MaxValue     *int64
	InitialValue *int64
	Formatter    func(now time.Time, value int64) string
}

// CounterService issues unique sequential identifiers backed by atomic counters.
type CounterService interface {
	Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error)
	NextOrderNumber(ctx context.Context) (string, error)
	NextInvoiceNumber(ctx context.Context) (string, error)
}

// CatalogService resolves services and prices within the category aggregate.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (Category, error)
	GetServiceByID(ctx context.Context, serviceID string) (domain.CatalogService, error)
	GetServiceBySlugs(ctx context.Context, categorySlug, subcategorySlug, serviceSlug string) (domain.CatalogService, error)
	Quote(ctx context.Context, cmd QuoteCommand) (QuoteResult, error)
	UpsertCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
}

// CartService manages the per-user cart, keeping totals consistent with the item list.
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// CouponService validates coupon codes and owns the redemption counter.
type CouponService interface {
	Validate(ctx context.Context, code string, cartTotal int64) (CouponValidationResult, error)
	Redeem(ctx context.Context, code string, cartTotal int64) (CouponRedemption, error)
	ListCoupons(ctx context.Context) ([]Coupon, error)
	CreateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	UpdateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	DeleteCoupon(ctx context.Context, couponID string) error
}

// OrderService orchestrates checkout, cancellation, and admin order management.
type OrderService interface {
	ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, requesterID string) (Order, error)
	ListByUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error)
	ListAll(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	Delete(ctx context.Context, orderID string) error
	RequestRefund(ctx context.Context, orderID string) (Order, error)
	InvoiceFile(ctx context.Context, orderID string, requesterID string) (string, error)
}

// NotificationService fans events out to subscribed admins and serves their inbox.
type NotificationService interface {
	NotifyAdmins(ctx context.Context, cmd NotifyAdminsCommand) error
	List(ctx context.Context, filter NotificationListFilter) (domain.CursorPage[Notification], error)
	MarkRead(ctx context.Context, cmd MarkNotificationReadCommand) error
}

// Command and DTO definitions ------------------------------------------------

// QuoteCommand identifies a service by id or slug triple plus the selected option names.
type QuoteCommand struct {
	ServiceID       string
	CategorySlug    string
	SubcategorySlug string
	ServiceSlug     string
	SelectedOptions []string
}

// QuoteResult carries the resolved price and the catalog snapshot it was derived from.
type QuoteResult struct {
	BasePrice  int64
	FinalPrice int64
	Service    domain.CatalogService
}

type UpsertCategoryCommand struct {
	Category Category
	ActorID  string
}

type AddCartItemCommand struct {
	UserID     string
	ServiceID  string
	Quantity   int
	Variations []SelectedVariation
	FormData   map[string]any
}

type UpdateCartQuantityCommand struct {
	UserID    string
	ServiceID string
	OptionIDs []string
	Quantity  int
}

type RemoveCartItemCommand struct {
	UserID    string
	ServiceID string
}

// CouponValidationResult reports the advisory outcome of a pre-checkout validation.
type CouponValidationResult struct {
	Valid         bool
	Code          string
	DiscountType  DiscountType
	DiscountValue int64
	Discount      int64
}

// CouponRedemption reports the authoritative result of an atomic redemption.
type CouponRedemption struct {
	Coupon   Coupon
	Discount int64
}

type UpsertCouponCommand struct {
	CouponID     string
	Code         string
	DiscountType DiscountType
	Value        int64
	MinCartValue int64
	MaxUses      *int64
	ExpiresAt    time.Time
}

type ConfirmOrderCommand struct {
	UserID         string
	UserEmail      string
	Items          []OrderLineItem
	Total          int64
	BillingAddress Address
	PayPalOrderID  string
	CouponCode     string
}

type CancelOrderCommand struct {
	OrderID     string
	RequesterID string
	// Admin requests skip the ownership check.
	Admin bool
}

type OrderListFilter = repositories.OrderListFilter

type UpdateOrderStatusCommand struct {
	OrderID              string
	Status               OrderStatus
	CompletionPercentage *int
}

type NotifyAdminsCommand struct {
	Type    NotificationType
	Message string
	Ref     NotificationRef
}

type NotificationListFilter = repositories.NotificationListFilter

type MarkNotificationReadCommand struct {
	AdminID        string
	NotificationID string
}
