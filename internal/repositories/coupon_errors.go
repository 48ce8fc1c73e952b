package repositories

import "errors"

var (
	// ErrCouponExpired is returned by CouponRepository.Redeem when the coupon
	// expiry is not strictly in the future.
	ErrCouponExpired = errors.New("coupons: expired")
	// ErrCouponExhausted is returned by CouponRepository.Redeem when the usage
	// cap has been reached.
	ErrCouponExhausted = errors.New("coupons: usage limit reached")
)
