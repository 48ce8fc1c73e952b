package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/payments"
	"github.com/snapedits/api/internal/repositories"
)

const expectedDeliveryWindow = 7 * 24 * time.Hour

var (
	// ErrOrderInvalidInput indicates the checkout payload failed validation.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderNotFound indicates the requested order does not exist or is not visible to the caller.
	ErrOrderNotFound = errors.New("order service: not found")
	// ErrOrderPaymentFailed indicates the payment reference could not be verified as completed.
	ErrOrderPaymentFailed = errors.New("order service: payment verification failed")
	// ErrOrderUnavailable indicates a backend dependency prevented the operation.
	ErrOrderUnavailable = errors.New("order service: unavailable")
)

// paymentVerifier abstracts payments.Manager for easier testing.
type paymentVerifier interface {
	GetOrder(ctx context.Context, paymentCtx payments.PaymentContext, orderID string) (payments.Order, error)
	RefundCapture(ctx context.Context, paymentCtx payments.PaymentContext, captureID string) (payments.Refund, error)
}

// invoiceGenerator abstracts the PDF invoice store.
type invoiceGenerator interface {
	Generate(ctx context.Context, order Order) (string, error)
	Path(invoiceNumber string) string
	URL(invoiceNumber string) string
	Remove(invoiceNumber string) error
}

// confirmationMailer sends the post-checkout confirmation mail.
type confirmationMailer interface {
	SendOrderConfirmation(ctx context.Context, to string, order Order) error
}

// adminNotifier fans an event out to subscribed admins.
type adminNotifier interface {
	NotifyAdmins(ctx context.Context, cmd NotifyAdminsCommand) error
}

// couponRedeemer performs the atomic coupon redemption at commit time.
type couponRedeemer interface {
	Redeem(ctx context.Context, code string, cartTotal int64) (CouponRedemption, error)
}

// orderNumberIssuer issues the sequential order and invoice identifiers.
type orderNumberIssuer interface {
	NextOrderNumber(ctx context.Context) (string, error)
	NextInvoiceNumber(ctx context.Context) (string, error)
}

// OrderServiceDeps wires the collaborators of the order service.
type OrderServiceDeps struct {
	Repository    repositories.OrderRepository
	Counters      orderNumberIssuer
	Coupons       couponRedeemer
	Payments      paymentVerifier
	Invoices      invoiceGenerator
	Mailer        confirmationMailer
	Notifications adminNotifier
	Clock         func() time.Time
	IDGenerator   func() string
	Currency      string
	Logger        func(context.Context, string, map[string]any)
}

type orderService struct {
	repo          repositories.OrderRepository
	counters      orderNumberIssuer
	coupons       couponRedeemer
	payments      paymentVerifier
	invoices      invoiceGenerator
	mailer        confirmationMailer
	notifications adminNotifier
	now           func() time.Time
	newID         func() string
	currency      string
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errors.New("order service: repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter service is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment provider is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "USD"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		repo:          deps.Repository,
		counters:      deps.Counters,
		coupons:       deps.Coupons,
		payments:      deps.Payments,
		invoices:      deps.Invoices,
		mailer:        deps.Mailer,
		notifications: deps.Notifications,
		now:           func() time.Time { return clock().UTC() },
		newID:         idGen,
		currency:      currency,
		logger:        logger,
	}, nil
}

// ConfirmOrder runs the checkout transaction. Validation, payment
// verification, coupon redemption, id issuance, and the persist are hard
// gates; the invoice, email, and notification side effects afterwards are
// individually best-effort.
func (s *orderService) ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (Order, error) {
	if err := validateConfirmCommand(cmd); err != nil {
		return Order{}, err
	}

	paypalOrderID := strings.TrimSpace(cmd.PayPalOrderID)
	captureID := ""
	if cmd.Total > 0 {
		if paypalOrderID == "" {
			return Order{}, fmt.Errorf("%w: paypal order id is required for paid orders", ErrOrderInvalidInput)
		}
		verified, err := s.payments.GetOrder(ctx, payments.PaymentContext{Currency: s.currency}, paypalOrderID)
		if err != nil {
			s.logger(ctx, "order.payment_lookup_failed", map[string]any{
				"paypalOrderID": paypalOrderID,
				"error":         err.Error(),
			})
			return Order{}, ErrOrderPaymentFailed
		}
		if verified.Status != payments.OrderStatusCompleted {
			return Order{}, fmt.Errorf("%w: payment status %s", ErrOrderPaymentFailed, verified.Status)
		}
		captureID = verified.CaptureID
	} else if paypalOrderID != "" {
		return Order{}, fmt.Errorf("%w: zero-cost orders cannot carry a payment id", ErrOrderInvalidInput)
	}

	for _, item := range cmd.Items {
		if strings.TrimSpace(item.ServiceID) == "" {
			return Order{}, fmt.Errorf("%w: item service id is required", ErrOrderInvalidInput)
		}
		if item.BasePrice < 0 || item.FinalPrice < 0 {
			return Order{}, fmt.Errorf("%w: item prices must be non-negative", ErrOrderInvalidInput)
		}
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: item quantity must be greater than zero", ErrOrderInvalidInput)
		}
	}

	subtotal := int64(0)
	for _, item := range cmd.Items {
		subtotal += item.FinalPrice * int64(item.Quantity)
	}

	couponCode := strings.ToUpper(strings.TrimSpace(cmd.CouponCode))
	discount := int64(0)
	if couponCode != "" {
		if s.coupons == nil {
			return Order{}, ErrOrderUnavailable
		}
		redemption, err := s.coupons.Redeem(ctx, couponCode, subtotal)
		if err != nil {
			return Order{}, err
		}
		discount = redemption.Discount
	}

	orderNumber, err := s.counters.NextOrderNumber(ctx)
	if err != nil {
		return Order{}, ErrOrderUnavailable
	}
	invoiceNumber, err := s.counters.NextInvoiceNumber(ctx)
	if err != nil {
		return Order{}, ErrOrderUnavailable
	}

	now := s.now()
	paymentStatus := domain.PaymentStatusPending
	if cmd.Total > 0 {
		paymentStatus = domain.PaymentStatusCompleted
	}
	order := Order{
		ID:               s.newID(),
		OrderNumber:      orderNumber,
		UserID:           strings.TrimSpace(cmd.UserID),
		Items:            cmd.Items,
		Subtotal:         subtotal,
		CouponCode:       couponCode,
		Discount:         discount,
		Total:            cmd.Total,
		Currency:         s.currency,
		BillingAddress:   cmd.BillingAddress,
		PayPalOrderID:    paypalOrderID,
		PayPalCaptureID:  captureID,
		Status:           domain.OrderStatusPending,
		PaymentStatus:    paymentStatus,
		InvoiceNumber:    invoiceNumber,
		ExpectedDelivery: now.Add(expectedDeliveryWindow),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if s.invoices != nil {
		order.InvoiceURL = s.invoices.URL(invoiceNumber)
	}

	if err := s.repo.Insert(ctx, order); err != nil {
		return Order{}, ErrOrderUnavailable
	}

	s.runSideEffects(ctx, order, strings.TrimSpace(cmd.UserEmail))
	return order, nil
}

// runSideEffects performs the post-persist work. Each failure is logged and
// swallowed; the order has already been committed.
func (s *orderService) runSideEffects(ctx context.Context, order Order, email string) {
	if s.invoices != nil {
		if _, err := s.invoices.Generate(ctx, order); err != nil {
			s.logger(ctx, "order.invoice_generation_failed", map[string]any{
				"orderID": order.ID,
				"error":   err.Error(),
			})
		}
	}
	if s.mailer != nil && email != "" {
		if err := s.mailer.SendOrderConfirmation(ctx, email, order); err != nil {
			s.logger(ctx, "order.confirmation_mail_failed", map[string]any{
				"orderID": order.ID,
				"error":   err.Error(),
			})
		}
	}
	if s.notifications != nil {
		err := s.notifications.NotifyAdmins(ctx, NotifyAdminsCommand{
			Type:    domain.NotificationTypeOrderPlaced,
			Message: fmt.Sprintf("New order %s placed", order.OrderNumber),
			Ref:     NotificationRef{Kind: domain.ReferenceKindOrder, ID: order.ID},
		})
		if err != nil {
			s.logger(ctx, "order.notification_fanout_failed", map[string]any{
				"orderID": order.ID,
				"error":   err.Error(),
			})
		}
	}
}

// Cancel flips the order to Cancelled and notifies admins. The payment status
// is left untouched; refunding is a separate concern.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	order, err := s.load(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !cmd.Admin && order.UserID != strings.TrimSpace(cmd.RequesterID) {
		return Order{}, ErrOrderNotFound
	}
	if order.Cancelled {
		return Order{}, fmt.Errorf("%w: order is already cancelled", ErrOrderInvalidInput)
	}

	now := s.now()
	order.Status = domain.OrderStatusCancelled
	order.Cancelled = true
	order.CancelledAt = &now
	order.CompletionPercentage = 0
	order.UpdatedAt = now

	if err := s.repo.Update(ctx, order); err != nil {
		return Order{}, ErrOrderUnavailable
	}

	if s.notifications != nil {
		err := s.notifications.NotifyAdmins(ctx, NotifyAdminsCommand{
			Type:    domain.NotificationTypeOrderCancelled,
			Message: fmt.Sprintf("Order %s was cancelled", order.OrderNumber),
			Ref:     NotificationRef{Kind: domain.ReferenceKindOrder, ID: order.ID},
		})
		if err != nil {
			s.logger(ctx, "order.notification_fanout_failed", map[string]any{
				"orderID": order.ID,
				"error":   err.Error(),
			})
		}
	}
	return order, nil
}

// GetOrder loads an order. A non-empty requester id restricts visibility to
// the owning user.
func (s *orderService) GetOrder(ctx context.Context, orderID string, requesterID string) (Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if rid := strings.TrimSpace(requesterID); rid != "" && order.UserID != rid {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (s *orderService) ListByUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[Order]{}, ErrOrderInvalidInput
	}
	page, err := s.repo.List(ctx, repositories.OrderListFilter{UserID: uid, Pagination: pager})
	if err != nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}
	return page, nil
}

// ListAll returns orders matching the admin filter.
func (s *orderService) ListAll(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}
	return page, nil
}

// UpdateStatus applies an admin status change.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	switch cmd.Status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusCompleted, domain.OrderStatusCancelled:
	default:
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}
	if cmd.CompletionPercentage != nil && (*cmd.CompletionPercentage < 0 || *cmd.CompletionPercentage > 100) {
		return Order{}, fmt.Errorf("%w: completion percentage must be between 0 and 100", ErrOrderInvalidInput)
	}

	order, err := s.load(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	order.Status = cmd.Status
	switch cmd.Status {
	case domain.OrderStatusCancelled:
		order.Cancelled = true
		order.CancelledAt = &now
		order.CompletionPercentage = 0
	case domain.OrderStatusCompleted:
		order.CompletionPercentage = 100
	}
	if cmd.CompletionPercentage != nil {
		order.CompletionPercentage = *cmd.CompletionPercentage
	}
	order.UpdatedAt = now

	if err := s.repo.Update(ctx, order); err != nil {
		return Order{}, ErrOrderUnavailable
	}
	return order, nil
}

// Delete removes an order and its invoice file.
func (s *orderService) Delete(ctx context.Context, orderID string) error {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	if s.invoices != nil && order.InvoiceNumber != "" {
		if err := s.invoices.Remove(order.InvoiceNumber); err != nil {
			s.logger(ctx, "order.invoice_removal_failed", map[string]any{
				"orderID": order.ID,
				"error":   err.Error(),
			})
		}
	}
	if err := s.repo.Delete(ctx, order.ID); err != nil {
		return ErrOrderUnavailable
	}
	return nil
}

// RequestRefund asks the provider to refund the recorded capture. A provider
// failure marks the payment Failed so the background sweep retries it.
func (s *orderService) RequestRefund(ctx context.Context, orderID string) (Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(order.PayPalCaptureID) == "" {
		return Order{}, fmt.Errorf("%w: order has no captured payment", ErrOrderInvalidInput)
	}
	if order.PaymentStatus == domain.PaymentStatusRefunded {
		return Order{}, fmt.Errorf("%w: payment is already refunded", ErrOrderInvalidInput)
	}

	now := s.now()
	refund, err := s.payments.RefundCapture(ctx, payments.PaymentContext{Currency: order.Currency}, order.PayPalCaptureID)
	if err != nil {
		s.logger(ctx, "order.refund_failed", map[string]any{
			"orderID": order.ID,
			"error":   err.Error(),
		})
		order.PaymentStatus = domain.PaymentStatusFailed
	} else {
		s.logger(ctx, "order.refund_succeeded", map[string]any{
			"orderID":  order.ID,
			"refundID": refund.ID,
		})
		order.PaymentStatus = domain.PaymentStatusRefunded
	}
	order.UpdatedAt = now

	if updateErr := s.repo.Update(ctx, order); updateErr != nil {
		return Order{}, ErrOrderUnavailable
	}
	return order, nil
}

// InvoiceFile resolves the on-disk invoice path for streaming.
func (s *orderService) InvoiceFile(ctx context.Context, orderID string, requesterID string) (string, error) {
	order, err := s.GetOrder(ctx, orderID, requesterID)
	if err != nil {
		return "", err
	}
	if s.invoices == nil || strings.TrimSpace(order.InvoiceNumber) == "" {
		return "", ErrOrderNotFound
	}
	return s.invoices.Path(order.InvoiceNumber), nil
}

func (s *orderService) load(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, ErrOrderUnavailable
	}
	return order, nil
}

func validateConfirmCommand(cmd ConfirmOrderCommand) error {
	if strings.TrimSpace(cmd.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	if cmd.Total < 0 {
		return fmt.Errorf("%w: total must be non-negative", ErrOrderInvalidInput)
	}
	addr := cmd.BillingAddress
	if strings.TrimSpace(addr.FullName) == "" ||
		strings.TrimSpace(addr.Line1) == "" ||
		strings.TrimSpace(addr.City) == "" ||
		strings.TrimSpace(addr.Country) == "" {
		return fmt.Errorf("%w: billing address is incomplete", ErrOrderInvalidInput)
	}
	return nil
}
