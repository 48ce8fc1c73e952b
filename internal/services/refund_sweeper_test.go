package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/payments"
)

func newTestSweeper(t *testing.T, repo *stubOrderRepository, verifier *stubPaymentVerifier) *RefundSweeper {
	t.Helper()
	sweeper, err := NewRefundSweeper(RefundSweeperDeps{
		Repository: repo,
		Payments:   verifier,
		Clock:      func() time.Time { return orderTestNow },
	})
	if err != nil {
		t.Fatalf("new refund sweeper: %v", err)
	}
	return sweeper
}

func TestRefundSweeperRetriesAndMarksRefunded(t *testing.T) {
	candidate := Order{
		ID:              "ord-1",
		Currency:        "USD",
		PayPalCaptureID: "cap-1",
		PaymentStatus:   domain.PaymentStatusFailed,
		RefundAttempts:  2,
	}
	repo := newStubOrderRepository(candidate)
	repo.candidatesFn = func(_ context.Context, maxAttempts int, _ int) ([]Order, error) {
		if maxAttempts != 3 {
			t.Fatalf("expected max attempts 3, got %d", maxAttempts)
		}
		return []Order{candidate}, nil
	}
	verifier := &stubPaymentVerifier{}
	sweeper := newTestSweeper(t, repo, verifier)

	if err := sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	updated := repo.orders["ord-1"]
	if updated.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", updated.PaymentStatus)
	}
	if updated.RefundAttempts != 3 {
		t.Fatalf("expected attempts bumped to 3, got %d", updated.RefundAttempts)
	}
	if updated.LastRefundAttemptAt == nil || !updated.LastRefundAttemptAt.Equal(orderTestNow) {
		t.Fatalf("expected attempt timestamp, got %v", updated.LastRefundAttemptAt)
	}
	if len(verifier.refunds) != 1 || verifier.refunds[0] != "cap-1" {
		t.Fatalf("expected refund of cap-1, got %v", verifier.refunds)
	}
}

func TestRefundSweeperCountsFailedAttempts(t *testing.T) {
	candidate := Order{
		ID:              "ord-1",
		PayPalCaptureID: "cap-1",
		PaymentStatus:   domain.PaymentStatusFailed,
		RefundAttempts:  0,
	}
	repo := newStubOrderRepository(candidate)
	repo.candidatesFn = func(context.Context, int, int) ([]Order, error) {
		return []Order{candidate}, nil
	}
	verifier := &stubPaymentVerifier{
		refundFn: func(context.Context, payments.PaymentContext, string) (payments.Refund, error) {
			return payments.Refund{}, errors.New("provider down")
		},
	}
	sweeper := newTestSweeper(t, repo, verifier)

	if err := sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	updated := repo.orders["ord-1"]
	if updated.PaymentStatus != domain.PaymentStatusFailed {
		t.Fatalf("payment must stay failed after a failed attempt, got %s", updated.PaymentStatus)
	}
	if updated.RefundAttempts != 1 {
		t.Fatalf("failed attempts still count, expected 1 got %d", updated.RefundAttempts)
	}
}

func TestRefundSweeperEmptyBatchIsQuiet(t *testing.T) {
	repo := newStubOrderRepository()
	verifier := &stubPaymentVerifier{}
	sweeper := newTestSweeper(t, repo, verifier)

	if err := sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(verifier.refunds) != 0 || len(repo.updated) != 0 {
		t.Fatalf("empty batch must not touch anything")
	}
}

func TestRefundSweeperRunStopsOnContextCancel(t *testing.T) {
	repo := newStubOrderRepository()
	verifier := &stubPaymentVerifier{}
	sweeper, err := NewRefundSweeper(RefundSweeperDeps{
		Repository: repo,
		Payments:   verifier,
		Interval:   time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new refund sweeper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop on cancel")
	}
}
