package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/payments"
	"github.com/snapedits/api/internal/repositories"
)

const (
	defaultSweepInterval    = 6 * time.Hour
	defaultSweepBatchSize   = 50
	defaultSweepMaxAttempts = 3
)

// RefundSweeperDeps wires the collaborators of the background refund sweep.
type RefundSweeperDeps struct {
	Repository  repositories.OrderRepository
	Payments    paymentVerifier
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
}

// RefundSweeper periodically retries refunds for orders whose payment status
// is failed. Each order gets at most MaxAttempts tries in total.
type RefundSweeper struct {
	repo        repositories.OrderRepository
	payments    paymentVerifier
	interval    time.Duration
	batch       int
	maxAttempts int
	now         func() time.Time
	logger      func(context.Context, string, map[string]any)
}

// NewRefundSweeper constructs the sweeper enforcing dependency validation.
func NewRefundSweeper(deps RefundSweeperDeps) (*RefundSweeper, error) {
	if deps.Repository == nil {
		return nil, errors.New("refund sweeper: repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("refund sweeper: payment provider is required")
	}

	interval := deps.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = defaultSweepMaxAttempts
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &RefundSweeper{
		repo:        deps.Repository,
		payments:    deps.Payments,
		interval:    interval,
		batch:       batch,
		maxAttempts: attempts,
		now:         func() time.Time { return clock().UTC() },
		logger:      logger,
	}, nil
}

// Run blocks, sweeping on the configured interval until the context is done.
func (s *RefundSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger(ctx, "refund_sweep.failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// SweepOnce retries one batch of refund candidates. Every attempt, successful
// or not, increments the order's attempt counter so a broken capture cannot
// be retried forever.
func (s *RefundSweeper) SweepOnce(ctx context.Context) error {
	candidates, err := s.repo.ListRefundCandidates(ctx, s.maxAttempts, s.batch)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	s.logger(ctx, "refund_sweep.started", map[string]any{"candidates": len(candidates)})

	for _, order := range candidates {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.sweepOrder(ctx, order)
	}
	return nil
}

func (s *RefundSweeper) sweepOrder(ctx context.Context, order Order) {
	now := s.now()
	order.RefundAttempts++
	order.LastRefundAttemptAt = &now
	order.UpdatedAt = now

	if order.PayPalCaptureID == "" {
		s.logger(ctx, "refund_sweep.skipped", map[string]any{
			"orderID": order.ID,
			"reason":  "no capture id",
		})
	} else {
		refund, err := s.payments.RefundCapture(ctx, payments.PaymentContext{Currency: order.Currency}, order.PayPalCaptureID)
		if err != nil {
			s.logger(ctx, "refund_sweep.attempt_failed", map[string]any{
				"orderID":  order.ID,
				"attempts": order.RefundAttempts,
				"error":    err.Error(),
			})
		} else {
			order.PaymentStatus = domain.PaymentStatusRefunded
			s.logger(ctx, "refund_sweep.refunded", map[string]any{
				"orderID":  order.ID,
				"refundID": refund.ID,
			})
		}
	}

	if err := s.repo.Update(ctx, order); err != nil {
		s.logger(ctx, "refund_sweep.update_failed", map[string]any{
			"orderID": order.ID,
			"error":   err.Error(),
		})
	}
}
