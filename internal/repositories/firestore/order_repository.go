package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/snapedits/api/internal/domain"
	pfirestore "github.com/snapedits/api/internal/platform/firestore"
	"github.com/snapedits/api/internal/platform/pagination"
	"github.com/snapedits/api/internal/repositories"
)

const ordersCollection = "orders"

type orderDocument struct {
	OrderNumber          string                  `firestore:"orderNumber"`
	UserID               string                  `firestore:"userId"`
	Items                []orderLineItemDocument `firestore:"items"`
	Subtotal             int64                   `firestore:"subtotal"`
	CouponCode           string                  `firestore:"couponCode,omitempty"`
	Discount             int64                   `firestore:"discount"`
	Total                int64                   `firestore:"total"`
	Currency             string                  `firestore:"currency"`
	BillingAddress       addressDocument         `firestore:"billingAddress"`
	PayPalOrderID        string                  `firestore:"paypalOrderId,omitempty"`
	PayPalCaptureID      string                  `firestore:"paypalCaptureId,omitempty"`
	Status               string                  `firestore:"status"`
	PaymentStatus        string                  `firestore:"paymentStatus"`
	InvoiceNumber        string                  `firestore:"invoiceNumber,omitempty"`
	InvoiceURL           string                  `firestore:"invoiceUrl,omitempty"`
	CompletionPercentage int                     `firestore:"completionPercentage"`
	ExpectedDelivery     time.Time               `firestore:"expectedDelivery"`
	Cancelled            bool                    `firestore:"cancelled"`
	CancelledAt          *time.Time              `firestore:"cancelledAt,omitempty"`
	RefundAttempts       int                     `firestore:"refundAttempts"`
	LastRefundAttemptAt  *time.Time              `firestore:"lastRefundAttemptAt,omitempty"`
	CreatedAt            time.Time               `firestore:"createdAt"`
	UpdatedAt            time.Time               `firestore:"updatedAt"`
}

type orderLineItemDocument struct {
	ServiceID    string                      `firestore:"serviceId"`
	ServiceName  string                      `firestore:"serviceName"`
	FeatureImage string                      `firestore:"featureImage,omitempty"`
	BasePrice    int64                       `firestore:"basePrice"`
	FinalPrice   int64                       `firestore:"finalPrice"`
	Quantity     int                         `firestore:"quantity"`
	Variations   []selectedVariationDocument `firestore:"variations,omitempty"`
	FormData     map[string]any              `firestore:"formData,omitempty"`
}

type addressDocument struct {
	FullName   string `firestore:"fullName,omitempty"`
	Line1      string `firestore:"line1,omitempty"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city,omitempty"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
	Phone      string `firestore:"phone,omitempty"`
}

// OrderRepository persists order documents in Firestore.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Insert creates a new order document; an existing ID is a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update overwrites the order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.base.Set(ctx, id, encodeOrder(order))
	return err
}

// Delete removes the order document.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("orders.delete", err)
	}
	return nil
}

// FindByID loads an order by its document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// List returns orders matching the filter, newest first, with cursor pagination.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	if pageSize > pagination.DefaultMaxPageSize {
		pageSize = pagination.DefaultMaxPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if uid := strings.TrimSpace(filter.UserID); uid != "" {
			q = q.Where("userId", "==", uid)
		}
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		if filter.PaymentStatus != nil {
			q = q.Where("paymentStatus", "==", string(*filter.PaymentStatus))
		}
		if filter.CreatedAfter != nil {
			q = q.Where("createdAt", ">", filter.CreatedAfter.UTC())
		}
		if filter.CreatedBefore != nil {
			q = q.Where("createdAt", "<", filter.CreatedBefore.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		// Fetch one extra row to detect whether another page exists.
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}
	for _, doc := range docs {
		page.Items = append(page.Items, decodeOrder(doc.ID, doc.Data))
	}
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.Data.CreatedAt},
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// ListRefundCandidates returns failed-payment orders still eligible for a refund retry.
func (r *OrderRepository) ListRefundCandidates(ctx context.Context, maxAttempts int, limit int) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	if maxAttempts <= 0 {
		return nil, errors.New("order repository: max attempts must be positive")
	}
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("paymentStatus", "==", string(domain.PaymentStatusFailed)).
			Where("refundAttempts", "<", maxAttempts).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:          order.OrderNumber,
		UserID:               order.UserID,
		Subtotal:             order.Subtotal,
		CouponCode:           order.CouponCode,
		Discount:             order.Discount,
		Total:                order.Total,
		Currency:             strings.ToUpper(strings.TrimSpace(order.Currency)),
		BillingAddress:       encodeAddress(order.BillingAddress),
		PayPalOrderID:        order.PayPalOrderID,
		PayPalCaptureID:      order.PayPalCaptureID,
		Status:               string(order.Status),
		PaymentStatus:        string(order.PaymentStatus),
		InvoiceNumber:        order.InvoiceNumber,
		InvoiceURL:           order.InvoiceURL,
		CompletionPercentage: order.CompletionPercentage,
		ExpectedDelivery:     order.ExpectedDelivery.UTC(),
		Cancelled:            order.Cancelled,
		CancelledAt:          normalizeTimePointer(order.CancelledAt),
		RefundAttempts:       order.RefundAttempts,
		LastRefundAttemptAt:  normalizeTimePointer(order.LastRefundAttemptAt),
		CreatedAt:            order.CreatedAt.UTC(),
		UpdatedAt:            order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderLineItemDocument{
			ServiceID:    item.ServiceID,
			ServiceName:  item.ServiceName,
			FeatureImage: item.FeatureImage,
			BasePrice:    item.BasePrice,
			FinalPrice:   item.FinalPrice,
			Quantity:     item.Quantity,
			Variations:   encodeSelectedVariations(item.Variations),
			FormData:     item.FormData,
		})
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:                   id,
		OrderNumber:          doc.OrderNumber,
		UserID:               doc.UserID,
		Subtotal:             doc.Subtotal,
		CouponCode:           doc.CouponCode,
		Discount:             doc.Discount,
		Total:                doc.Total,
		Currency:             doc.Currency,
		BillingAddress:       decodeAddress(doc.BillingAddress),
		PayPalOrderID:        doc.PayPalOrderID,
		PayPalCaptureID:      doc.PayPalCaptureID,
		Status:               domain.OrderStatus(doc.Status),
		PaymentStatus:        domain.PaymentStatus(doc.PaymentStatus),
		InvoiceNumber:        doc.InvoiceNumber,
		InvoiceURL:           doc.InvoiceURL,
		CompletionPercentage: doc.CompletionPercentage,
		ExpectedDelivery:     doc.ExpectedDelivery,
		Cancelled:            doc.Cancelled,
		CancelledAt:          doc.CancelledAt,
		RefundAttempts:       doc.RefundAttempts,
		LastRefundAttemptAt:  doc.LastRefundAttemptAt,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderLineItem{
			ServiceID:    item.ServiceID,
			ServiceName:  item.ServiceName,
			FeatureImage: item.FeatureImage,
			BasePrice:    item.BasePrice,
			FinalPrice:   item.FinalPrice,
			Quantity:     item.Quantity,
			Variations:   decodeSelectedVariations(item.Variations),
			FormData:     item.FormData,
		})
	}
	return order
}

func encodeAddress(addr domain.Address) addressDocument {
	return addressDocument{
		FullName:   addr.FullName,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func decodeAddress(doc addressDocument) domain.Address {
	return domain.Address{
		FullName:   doc.FullName,
		Line1:      doc.Line1,
		Line2:      doc.Line2,
		City:       doc.City,
		State:      doc.State,
		PostalCode: doc.PostalCode,
		Country:    doc.Country,
		Phone:      doc.Phone,
	}
}

func normalizeTimePointer(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
