package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/plutov/paypal/v4"
)

// PayPalConfig carries the credentials for the PayPal REST API.
type PayPalConfig struct {
	ClientID string
	Secret   string
	Live     bool
}

// PayPalProvider implements Provider against the PayPal Orders v2 API.
type PayPalProvider struct {
	client *paypal.Client

	tokenMu      sync.Mutex
	tokenFetched bool
}

// NewPayPalProvider constructs a PayPal adapter. No network calls are made
// until the first operation.
func NewPayPalProvider(cfg PayPalConfig) (*PayPalProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.Secret)
	if clientID == "" || secret == "" {
		return nil, errors.New("payments: paypal client id and secret are required")
	}

	base := paypal.APIBaseSandBox
	if cfg.Live {
		base = paypal.APIBaseLive
	}
	client, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("payments: create paypal client: %w", err)
	}
	return &PayPalProvider{client: client}, nil
}

// ensureToken fetches the initial access token once; the SDK refreshes it on
// expiry afterwards.
func (p *PayPalProvider) ensureToken(ctx context.Context) error {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()
	if p.tokenFetched {
		return nil
	}
	if _, err := p.client.GetAccessToken(ctx); err != nil {
		return fmt.Errorf("payments: paypal access token: %w", err)
	}
	p.tokenFetched = true
	return nil
}

// CreateOrder opens a PayPal order with capture intent.
func (p *PayPalProvider) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if req.Amount <= 0 {
		return Order{}, errors.New("payments: amount must be greater than zero")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return Order{}, errors.New("payments: currency is required")
	}
	if err := p.ensureToken(ctx); err != nil {
		return Order{}, err
	}

	units := []paypal.PurchaseUnitRequest{{
		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    formatAmount(req.Amount),
		},
	}}
	var appCtx *paypal.ApplicationContext
	if req.ReturnURL != "" || req.CancelURL != "" {
		appCtx = &paypal.ApplicationContext{
			ReturnURL: req.ReturnURL,
			CancelURL: req.CancelURL,
		}
	}

	created, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return Order{}, fmt.Errorf("payments: paypal create order: %w", err)
	}

	order := Order{ID: created.ID, Status: created.Status}
	for _, link := range created.Links {
		if strings.EqualFold(link.Rel, "approve") {
			order.ApproveURL = link.Href
			break
		}
	}
	return order, nil
}

// GetOrder looks up a PayPal order, including the capture id when the order
// has been captured.
func (p *PayPalProvider) GetOrder(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, errors.New("payments: order id is required")
	}
	if err := p.ensureToken(ctx); err != nil {
		return Order{}, err
	}

	found, err := p.client.GetOrder(ctx, id)
	if err != nil {
		return Order{}, fmt.Errorf("payments: paypal get order: %w", err)
	}

	order := Order{ID: found.ID, Status: found.Status}
	order.CaptureID = firstCaptureID(found.PurchaseUnits)
	return order, nil
}

// CaptureOrder captures an approved PayPal order.
func (p *PayPalProvider) CaptureOrder(ctx context.Context, orderID string) (Capture, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Capture{}, errors.New("payments: order id is required")
	}
	if err := p.ensureToken(ctx); err != nil {
		return Capture{}, err
	}

	captured, err := p.client.CaptureOrder(ctx, id, paypal.CaptureOrderRequest{})
	if err != nil {
		return Capture{}, fmt.Errorf("payments: paypal capture order: %w", err)
	}

	capture := Capture{OrderID: captured.ID, Status: captured.Status}
	for _, unit := range captured.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, c := range unit.Payments.Captures {
			capture.CaptureID = c.ID
			return capture, nil
		}
	}
	return capture, nil
}

// RefundCapture refunds a captured payment in full.
func (p *PayPalProvider) RefundCapture(ctx context.Context, captureID string) (Refund, error) {
	id := strings.TrimSpace(captureID)
	if id == "" {
		return Refund{}, errors.New("payments: capture id is required")
	}
	if err := p.ensureToken(ctx); err != nil {
		return Refund{}, err
	}

	refunded, err := p.client.RefundCapture(ctx, id, paypal.RefundCaptureRequest{})
	if err != nil {
		return Refund{}, fmt.Errorf("payments: paypal refund capture: %w", err)
	}
	return Refund{ID: refunded.ID, Status: refunded.Status}, nil
}

func firstCaptureID(units []paypal.PurchaseUnit) string {
	for _, unit := range units {
		if unit.Payments == nil {
			continue
		}
		for _, c := range unit.Payments.Captures {
			if c.ID != "" {
				return c.ID
			}
		}
	}
	return ""
}

// formatAmount renders int64 cents as a decimal string, e.g. 1999 -> "19.99".
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

var _ Provider = (*PayPalProvider)(nil)
