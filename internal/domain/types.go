package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Category is the aggregate root for the service catalog. Subcategories and
// services are embedded and mutated through the category document.
type Category struct {
	ID            string
	Name          string
	Slug          string
	Description   string
	ImageURL      string
	SortOrder     int
	Subcategories []Subcategory
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Subcategory groups related services under a category.
type Subcategory struct {
	ID       string
	Name     string
	Slug     string
	Services []CatalogService
}

// CatalogService describes a purchasable photo-editing service.
type CatalogService struct {
	ID                string
	Name              string
	Slug              string
	Description       string
	FeatureImage      string
	BasePrice         int64
	Currency          string
	Features          []string
	VariationTypes    []VariationType
	PriceCombinations []PriceCombination
}

// VariationType is a configurable dimension of a service, such as output
// format or turnaround time.
type VariationType struct {
	Name     string
	Required bool
	Options  []VariationOption
}

// VariationOption is a selectable value within a variation type.
type VariationOption struct {
	ID   string
	Name string
}

// PriceCombination overrides the service price when the customer's selected
// option names exactly match Options.
type PriceCombination struct {
	Options []string
	Price   int64
}

// Cart aggregates the mutable shopping cart state for a user. The document ID
// equals the owning user ID; totals are derived from the item list.
type Cart struct {
	ID        string
	UserID    string
	Currency  string
	Items     []CartItem
	Total     int64
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem stores a single service entry within a cart. Service name and
// image are denormalised at add time so the cart renders without catalog
// lookups.
type CartItem struct {
	ID           string
	ServiceID    string
	ServiceName  string
	FeatureImage string
	BasePrice    int64
	FinalPrice   int64
	Quantity     int
	Variations   []SelectedVariation
	FormData     map[string]any
	AddedAt      time.Time
	UpdatedAt    *time.Time
}

// SelectedVariation records one chosen option on a cart item.
type SelectedVariation struct {
	VariationType string
	OptionID      string
	OptionName    string
}

// DiscountType enumerates supported coupon discount semantics.
type DiscountType string

const (
	// DiscountPercentage applies Value as a percentage of the cart total.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies Value as an absolute amount.
	DiscountFixed DiscountType = "fixed"
)

// Coupon captures a redeemable discount code.
type Coupon struct {
	ID           string
	Code         string
	DiscountType DiscountType
	Value        int64
	MinCartValue int64
	MaxUses      *int64
	TimesUsed    int64
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderStatus enumerates fulfilment states for an order.
type OrderStatus string

const (
	// OrderStatusPending marks freshly confirmed orders awaiting work.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing marks orders currently being edited.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted marks delivered orders.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled marks orders cancelled by the customer or staff.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus enumerates payment states tracked on an order.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no capture has been verified yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted indicates the capture was verified as completed.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed indicates a refund attempt failed and the order is
	// queued for the refund sweeper.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates the capture has been refunded.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Address captures billing contact details collected at checkout.
type Address struct {
	FullName   string
	Email      string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Order is the immutable purchase snapshot created at checkout. Only status,
// payment bookkeeping, and cancellation fields change afterwards.
type Order struct {
	ID                   string
	OrderNumber          string
	UserID               string
	Items                []OrderLineItem
	Subtotal             int64
	CouponCode           string
	Discount             int64
	Total                int64
	Currency             string
	BillingAddress       Address
	PayPalOrderID        string
	PayPalCaptureID      string
	Status               OrderStatus
	PaymentStatus        PaymentStatus
	InvoiceNumber        string
	InvoiceURL           string
	CompletionPercentage int
	ExpectedDelivery     time.Time
	Cancelled            bool
	CancelledAt          *time.Time
	RefundAttempts       int
	LastRefundAttemptAt  *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OrderLineItem freezes a cart item at confirmation time.
type OrderLineItem struct {
	ServiceID    string
	ServiceName  string
	FeatureImage string
	BasePrice    int64
	FinalPrice   int64
	Quantity     int
	Variations   []SelectedVariation
	FormData     map[string]any
}

// NotificationType enumerates admin notification categories.
type NotificationType string

const (
	// NotificationTypeOrderPlaced is emitted when a customer confirms an order.
	NotificationTypeOrderPlaced NotificationType = "order_placed"
	// NotificationTypeOrderCancelled is emitted when an order is cancelled.
	NotificationTypeOrderCancelled NotificationType = "order_cancelled"
	// NotificationTypeUserRegistered is emitted when a new account signs up.
	NotificationTypeUserRegistered NotificationType = "user_registered"
	// NotificationTypeContactForm is emitted when a contact form is submitted.
	NotificationTypeContactForm NotificationType = "contact_form"
	// NotificationTypeFreeTrial is emitted when a free trial is requested.
	NotificationTypeFreeTrial NotificationType = "free_trial"
)

// ReferenceKind discriminates the entity a notification points at.
type ReferenceKind string

const (
	// ReferenceKindOrder links a notification to an order document.
	ReferenceKindOrder ReferenceKind = "order"
	// ReferenceKindUser links a notification to a user profile.
	ReferenceKindUser ReferenceKind = "user"
	// ReferenceKindContactForm links a notification to a contact form entry.
	ReferenceKindContactForm ReferenceKind = "contact_form"
	// ReferenceKindFreeTrial links a notification to a free trial request.
	ReferenceKindFreeTrial ReferenceKind = "free_trial"
)

// NotificationRef is the tagged reference stored on a notification.
type NotificationRef struct {
	Kind ReferenceKind
	ID   string
}

// Notification is a per-admin inbox entry produced by the fan-out.
type Notification struct {
	ID        string
	AdminID   string
	Type      NotificationType
	Message   string
	Ref       NotificationRef
	Read      bool
	CreatedAt time.Time
}

// AdminProfile describes a staff account eligible for notification fan-out.
type AdminProfile struct {
	ID                string
	Email             string
	DisplayName       string
	Roles             []string
	NotificationPrefs map[string]bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
