package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/repositories"
)

var (
	// ErrCouponInvalidInput indicates the caller supplied invalid coupon input.
	ErrCouponInvalidInput = errors.New("coupon service: invalid input")
	// ErrCouponNotFound indicates the coupon code does not exist.
	ErrCouponNotFound = errors.New("coupon service: not found")
	// ErrCouponExpired indicates the coupon expiry has passed.
	ErrCouponExpired = errors.New("coupon service: coupon expired")
	// ErrCouponUsageExceeded indicates the coupon usage cap has been reached.
	ErrCouponUsageExceeded = errors.New("coupon service: usage limit reached")
	// ErrCouponMinCartValue indicates the cart total is below the coupon minimum.
	ErrCouponMinCartValue = errors.New("coupon service: minimum cart value not met")
	// ErrCouponConflict indicates a coupon with the same code already exists.
	ErrCouponConflict = errors.New("coupon service: conflict")
	// ErrCouponUnavailable indicates the coupon backend cannot fulfil the request.
	ErrCouponUnavailable = errors.New("coupon service: unavailable")
)

// CouponServiceDeps wires the repository and clock for coupon operations.
type CouponServiceDeps struct {
	Repository repositories.CouponRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type couponService struct {
	repo   repositories.CouponRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewCouponService constructs a CouponService enforcing dependency validation.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Repository == nil {
		return nil, errors.New("coupon service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &couponService{
		repo:   deps.Repository,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Validate runs the advisory pre-checkout checks: the code exists, has not
// expired, is under its usage cap, and the cart meets the minimum value. It
// never mutates the usage counter; the atomic Redeem at commit time is the
// authoritative check.
func (s *couponService) Validate(ctx context.Context, code string, cartTotal int64) (CouponValidationResult, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return CouponValidationResult{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	if cartTotal < 0 {
		return CouponValidationResult{}, fmt.Errorf("%w: cart total must be non-negative", ErrCouponInvalidInput)
	}

	coupon, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if isRepoNotFound(err) {
			return CouponValidationResult{}, ErrCouponNotFound
		}
		return CouponValidationResult{}, ErrCouponUnavailable
	}

	if err := checkCouponPolicy(coupon, cartTotal, s.now()); err != nil {
		return CouponValidationResult{}, err
	}

	return CouponValidationResult{
		Valid:         true,
		Code:          coupon.Code,
		DiscountType:  coupon.DiscountType,
		DiscountValue: coupon.Value,
		Discount:      computeDiscount(coupon, cartTotal),
	}, nil
}

// Redeem performs the atomic conditional usage increment at order commit time.
// Expiry and the usage cap are re-checked inside the repository transaction;
// the minimum cart value is checked here since it depends on the cart alone.
func (s *couponService) Redeem(ctx context.Context, code string, cartTotal int64) (CouponRedemption, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return CouponRedemption{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	if cartTotal < 0 {
		return CouponRedemption{}, fmt.Errorf("%w: cart total must be non-negative", ErrCouponInvalidInput)
	}

	coupon, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if isRepoNotFound(err) {
			return CouponRedemption{}, ErrCouponNotFound
		}
		return CouponRedemption{}, ErrCouponUnavailable
	}
	if cartTotal < coupon.MinCartValue {
		return CouponRedemption{}, ErrCouponMinCartValue
	}

	redeemed, err := s.repo.Redeem(ctx, normalized, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrCouponExpired):
			return CouponRedemption{}, ErrCouponExpired
		case errors.Is(err, repositories.ErrCouponExhausted):
			return CouponRedemption{}, ErrCouponUsageExceeded
		case isRepoNotFound(err):
			return CouponRedemption{}, ErrCouponNotFound
		}
		return CouponRedemption{}, ErrCouponUnavailable
	}

	return CouponRedemption{
		Coupon:   redeemed,
		Discount: computeDiscount(redeemed, cartTotal),
	}, nil
}

// ListCoupons returns every coupon definition for the admin surface.
func (s *couponService) ListCoupons(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.repo.List(ctx)
	if err != nil {
		return nil, ErrCouponUnavailable
	}
	return coupons, nil
}

// CreateCoupon registers a new coupon definition.
func (s *couponService) CreateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	coupon, err := s.couponFromCommand(cmd)
	if err != nil {
		return Coupon{}, err
	}
	if err := s.repo.Insert(ctx, coupon); err != nil {
		if isRepoConflict(err) {
			return Coupon{}, ErrCouponConflict
		}
		return Coupon{}, ErrCouponUnavailable
	}
	s.logger(ctx, "coupon.created", map[string]any{"code": coupon.Code})
	coupon.ID = coupon.Code
	return coupon, nil
}

// UpdateCoupon replaces an existing coupon definition, preserving its usage counter.
func (s *couponService) UpdateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	coupon, err := s.couponFromCommand(cmd)
	if err != nil {
		return Coupon{}, err
	}
	if err := s.repo.Update(ctx, coupon); err != nil {
		if isRepoNotFound(err) {
			return Coupon{}, ErrCouponNotFound
		}
		return Coupon{}, ErrCouponUnavailable
	}
	updated, err := s.repo.FindByCode(ctx, coupon.Code)
	if err != nil {
		return Coupon{}, ErrCouponUnavailable
	}
	return updated, nil
}

// DeleteCoupon removes a coupon definition.
func (s *couponService) DeleteCoupon(ctx context.Context, couponID string) error {
	id := strings.TrimSpace(couponID)
	if id == "" {
		return ErrCouponInvalidInput
	}
	if _, err := s.repo.FindByCode(ctx, id); err != nil {
		if isRepoNotFound(err) {
			return ErrCouponNotFound
		}
		return ErrCouponUnavailable
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return ErrCouponUnavailable
	}
	return nil
}

func (s *couponService) couponFromCommand(cmd UpsertCouponCommand) (Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(cmd.Code))
	if code == "" {
		return Coupon{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	switch cmd.DiscountType {
	case domain.DiscountPercentage:
		if cmd.Value <= 0 || cmd.Value > 100 {
			return Coupon{}, fmt.Errorf("%w: percentage value must be between 1 and 100", ErrCouponInvalidInput)
		}
	case domain.DiscountFixed:
		if cmd.Value <= 0 {
			return Coupon{}, fmt.Errorf("%w: fixed value must be greater than zero", ErrCouponInvalidInput)
		}
	default:
		return Coupon{}, fmt.Errorf("%w: discount type must be percentage or fixed", ErrCouponInvalidInput)
	}
	if cmd.MinCartValue < 0 {
		return Coupon{}, fmt.Errorf("%w: minimum cart value must be non-negative", ErrCouponInvalidInput)
	}
	if cmd.MaxUses != nil && *cmd.MaxUses <= 0 {
		return Coupon{}, fmt.Errorf("%w: max uses must be greater than zero", ErrCouponInvalidInput)
	}
	if cmd.ExpiresAt.IsZero() || !cmd.ExpiresAt.After(s.now()) {
		return Coupon{}, fmt.Errorf("%w: expiry must be in the future", ErrCouponInvalidInput)
	}

	return Coupon{
		ID:           strings.TrimSpace(cmd.CouponID),
		Code:         code,
		DiscountType: cmd.DiscountType,
		Value:        cmd.Value,
		MinCartValue: cmd.MinCartValue,
		MaxUses:      cmd.MaxUses,
		ExpiresAt:    cmd.ExpiresAt.UTC(),
	}, nil
}

func checkCouponPolicy(coupon Coupon, cartTotal int64, now time.Time) error {
	if !coupon.ExpiresAt.After(now) {
		return ErrCouponExpired
	}
	if coupon.MaxUses != nil && coupon.TimesUsed >= *coupon.MaxUses {
		return ErrCouponUsageExceeded
	}
	if cartTotal < coupon.MinCartValue {
		return ErrCouponMinCartValue
	}
	return nil
}

// computeDiscount derives the discount amount, clamped to the cart total so a
// payable amount is never negative.
func computeDiscount(coupon Coupon, cartTotal int64) int64 {
	var discount int64
	switch coupon.DiscountType {
	case domain.DiscountPercentage:
		discount = cartTotal * coupon.Value / 100
	case domain.DiscountFixed:
		discount = coupon.Value
	}
	if discount > cartTotal {
		discount = cartTotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
