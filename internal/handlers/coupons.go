package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snapedits/api/internal/platform/auth"
	"github.com/snapedits/api/internal/platform/httpx"
	"github.com/snapedits/api/internal/services"
)

// CouponHandlers exposes the pre-checkout coupon validation endpoint.
type CouponHandlers struct {
	authn   *auth.Authenticator
	coupons services.CouponService
	limiter rateLimiter
}

const (
	maxCouponBodySize = 4 * 1024

	// Validation is throttled per user to slow down coupon code guessing.
	couponValidateLimit  = 20
	couponValidateWindow = time.Minute
)

// NewCouponHandlers constructs handlers for the public coupon surface.
func NewCouponHandlers(authn *auth.Authenticator, coupons services.CouponService) *CouponHandlers {
	return &CouponHandlers{
		authn:   authn,
		coupons: coupons,
		limiter: newSimpleRateLimiter(couponValidateLimit, couponValidateWindow, time.Now),
	}
}

// Routes wires the /coupons endpoints onto the provided router.
func (h *CouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/validate", h.validate)
}

func (h *CouponHandlers) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
		return
	}

	limiterKey := ""
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		limiterKey = identity.UID
	}
	if h.limiter != nil && !h.limiter.Allow(limiterKey) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many validation attempts", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxCouponBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req validateCouponRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	result, err := h.coupons.Validate(ctx, req.Code, req.CartTotal)
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, validateCouponResponse{
		Valid:         result.Valid,
		Code:          result.Code,
		DiscountType:  string(result.DiscountType),
		DiscountValue: result.DiscountValue,
		Discount:      result.Discount,
	})
}

// writeCouponError maps coupon sentinels to response codes. Policy failures
// are client errors so the storefront can show why the code was rejected.
func writeCouponError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponExpired):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_expired", "coupon has expired", http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponUsageExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_usage_exceeded", "coupon usage limit reached", http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponMinCartValue):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_min_cart_value", "cart total is below the coupon minimum", http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponConflict):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_conflict", "coupon code already exists", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("coupon_error", "failed to process coupon request", http.StatusInternalServerError))
	}
}

type validateCouponRequest struct {
	Code      string `json:"code"`
	CartTotal int64  `json:"cart_total"`
}

type validateCouponResponse struct {
	Valid         bool   `json:"valid"`
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue int64  `json:"discount_value"`
	Discount      int64  `json:"discount"`
}

// couponPayload is shared with the admin coupon management endpoints.
type couponPayload struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	DiscountType string `json:"discount_type"`
	Value        int64  `json:"value"`
	MinCartValue int64  `json:"min_cart_value"`
	MaxUses      *int64 `json:"max_uses,omitempty"`
	TimesUsed    int64  `json:"times_used"`
	ExpiresAt    string `json:"expires_at"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

func buildCouponPayload(coupon services.Coupon) couponPayload {
	payload := couponPayload{
		ID:           coupon.ID,
		Code:         coupon.Code,
		DiscountType: string(coupon.DiscountType),
		Value:        coupon.Value,
		MinCartValue: coupon.MinCartValue,
		TimesUsed:    coupon.TimesUsed,
		ExpiresAt:    formatTime(coupon.ExpiresAt),
	}
	if coupon.MaxUses != nil {
		limit := *coupon.MaxUses
		payload.MaxUses = &limit
	}
	if !coupon.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(coupon.CreatedAt)
	}
	if !coupon.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(coupon.UpdatedAt)
	}
	return payload
}
