package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider order statuses of interest to the checkout flow.
const (
	// OrderStatusCreated indicates the provider order exists but has not been captured.
	OrderStatusCreated = "CREATED"
	// OrderStatusCompleted indicates the provider captured the payment.
	OrderStatusCompleted = "COMPLETED"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// OrderRequest captures the payload required to create a provider order.
type OrderRequest struct {
	Amount    int64
	Currency  string
	ReturnURL string
	CancelURL string
}

// Order is the provider's view of a payment order.
type Order struct {
	ID         string
	Status     string
	CaptureID  string
	ApproveURL string
}

// Capture reports the outcome of capturing a provider order.
type Capture struct {
	OrderID   string
	CaptureID string
	Status    string
}

// Refund reports the outcome of refunding a capture.
type Refund struct {
	ID     string
	Status string
}

// Provider defines the contract for payment provider adapters to implement.
type Provider interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	CaptureOrder(ctx context.Context, orderID string) (Capture, error)
	RefundCapture(ctx context.Context, captureID string) (Refund, error)
}

// Manager coordinates provider selection and exposes the aggregated interface.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
	currencyRoutes  map[string]string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the default provider for currencies without explicit routing.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = provider
	}
}

// WithCurrencyRoutes configures static currency to provider mappings.
func WithCurrencyRoutes(routes map[string]string) ManagerOption {
	return func(m *Manager) {
		if len(routes) == 0 {
			return
		}
		if m.currencyRoutes == nil {
			m.currencyRoutes = make(map[string]string, len(routes))
		}
		for k, v := range routes {
			m.currencyRoutes[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		providers: copyMap,
	}
	if _, ok := copyMap["paypal"]; ok {
		m.defaultProvider = "paypal"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// PaymentContext defines the hints available when selecting a provider.
type PaymentContext struct {
	PreferredProvider string
	Currency          string
}

func (m *Manager) resolveProvider(ctx PaymentContext) (string, Provider, error) {
	if m == nil {
		return "", nil, errors.New("payments: manager is nil")
	}
	if len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if provider := strings.TrimSpace(strings.ToLower(ctx.PreferredProvider)); provider != "" {
		if p, ok := m.providers[provider]; ok {
			return provider, p, nil
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(ctx.Currency))
	if currency != "" && m.currencyRoutes != nil {
		if providerKey, ok := m.currencyRoutes[currency]; ok {
			provider := strings.TrimSpace(strings.ToLower(providerKey))
			if p, ok := m.providers[provider]; ok {
				return provider, p, nil
			}
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultProvider)); def != "" {
		if p, ok := m.providers[def]; ok {
			return def, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// CreateOrder delegates to the resolved provider.
func (m *Manager) CreateOrder(ctx context.Context, paymentCtx PaymentContext, req OrderRequest) (Order, error) {
	_, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return Order{}, err
	}
	return provider.CreateOrder(ctx, req)
}

// GetOrder delegates to the resolved provider.
func (m *Manager) GetOrder(ctx context.Context, paymentCtx PaymentContext, orderID string) (Order, error) {
	_, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return Order{}, err
	}
	return provider.GetOrder(ctx, orderID)
}

// CaptureOrder delegates to the resolved provider.
func (m *Manager) CaptureOrder(ctx context.Context, paymentCtx PaymentContext, orderID string) (Capture, error) {
	_, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return Capture{}, err
	}
	return provider.CaptureOrder(ctx, orderID)
}

// RefundCapture delegates to the resolved provider.
func (m *Manager) RefundCapture(ctx context.Context, paymentCtx PaymentContext, captureID string) (Refund, error) {
	_, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return Refund{}, err
	}
	return provider.RefundCapture(ctx, captureID)
}
