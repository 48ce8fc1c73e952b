package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/invoices"
	"github.com/snapedits/api/internal/mail"
	"github.com/snapedits/api/internal/payments"
	"github.com/snapedits/api/internal/platform/config"
	"github.com/snapedits/api/internal/repositories"
	"github.com/snapedits/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Counters      services.CounterService
	Catalog       services.CatalogService
	Cart          services.CartService
	Coupons       services.CouponService
	Orders        services.OrderService
	Notifications services.NotificationService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Payments     *payments.Manager
	Invoices     *invoices.Generator
	Services     Services
	Sweeper      *services.RefundSweeper
}

// NewContainer constructs the runtime dependencies. Production wiring provides the
// Firestore-backed registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, logger *zap.Logger) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	paypalProvider, err := payments.NewPayPalProvider(payments.PayPalConfig{
		ClientID: cfg.PayPal.ClientID,
		Secret:   cfg.PayPal.Secret,
		Live:     cfg.PayPal.Live,
	})
	if err != nil {
		return nil, fmt.Errorf("build paypal provider: %w", err)
	}
	manager, err := payments.NewManager(map[string]payments.Provider{
		"paypal": paypalProvider,
	})
	if err != nil {
		return nil, fmt.Errorf("build payment manager: %w", err)
	}

	generator, err := invoices.NewGenerator(invoices.Config{
		Dir:     cfg.Invoices.Directory,
		BaseURL: cfg.Invoices.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("build invoice generator: %w", err)
	}

	svc, sweeper, err := buildServices(cfg, reg, manager, generator, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Payments:     manager,
		Invoices:     generator,
		Services:     svc,
		Sweeper:      sweeper,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(
	cfg config.Config,
	reg repositories.Registry,
	manager *payments.Manager,
	generator *invoices.Generator,
	logger *zap.Logger,
) (Services, *services.RefundSweeper, error) {
	var svc Services
	events := zapEventLogger(logger)

	counters, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: reg.Counters(),
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, nil, fmt.Errorf("build counter service: %w", err)
	}
	svc.Counters = counters

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Repository: reg.Categories(),
		Clock:      time.Now,
		Logger:     events,
	})
	if err != nil {
		return Services{}, nil, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalog

	cart, err := services.NewCartService(services.CartServiceDeps{
		Repository:      reg.Carts(),
		Catalog:         catalog,
		Clock:           time.Now,
		DefaultCurrency: cfg.Currency,
		Logger:          events,
	})
	if err != nil {
		return Services{}, nil, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cart

	coupons, err := services.NewCouponService(services.CouponServiceDeps{
		Repository: reg.Coupons(),
		Clock:      time.Now,
		Logger:     events,
	})
	if err != nil {
		return Services{}, nil, fmt.Errorf("build coupon service: %w", err)
	}
	svc.Coupons = coupons

	notifications, err := services.NewNotificationService(services.NotificationServiceDeps{
		Notifications: reg.Notifications(),
		Admins:        reg.Admins(),
		Clock:         time.Now,
		Logger:        events,
	})
	if err != nil {
		return Services{}, nil, fmt.Errorf("build notification service: %w", err)
	}
	svc.Notifications = notifications

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Repository:    reg.Orders(),
		Counters:      counters,
		Coupons:       coupons,
		Payments:      manager,
		Invoices:      generator,
		Mailer:        buildMailer(cfg, logger),
		Notifications: notifications,
		Clock:         time.Now,
		Currency:      cfg.Currency,
		Logger:        events,
	})
	if err != nil {
		return Services{}, nil, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	sweeper, err := services.NewRefundSweeper(services.RefundSweeperDeps{
		Repository:  reg.Orders(),
		Payments:    manager,
		Interval:    cfg.Sweep.Interval,
		MaxAttempts: cfg.Sweep.MaxAttempts,
		Clock:       time.Now,
		Logger:      events,
	})
	if err != nil {
		return Services{}, nil, fmt.Errorf("build refund sweeper: %w", err)
	}

	return svc, sweeper, nil
}

// orderMailer matches the order service's confirmation mail contract.
type orderMailer interface {
	SendOrderConfirmation(ctx context.Context, to string, order domain.Order) error
}

// buildMailer falls back to a no-op mailer when SMTP is not configured, so
// local environments can confirm orders without a relay.
func buildMailer(cfg config.Config, logger *zap.Logger) orderMailer {
	if cfg.SMTP.Host == "" {
		logger.Info("smtp not configured; order confirmation mail disabled")
		return mail.NoopMailer{}
	}
	mailer, err := mail.NewMailer(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		logger.Warn("invalid smtp configuration; order confirmation mail disabled", zap.Error(err))
		return mail.NoopMailer{}
	}
	return mailer
}

func zapEventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, msg string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(msg, zapFields...)
	}
}
