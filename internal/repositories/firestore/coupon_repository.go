package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/snapedits/api/internal/domain"
	pfirestore "github.com/snapedits/api/internal/platform/firestore"
	"github.com/snapedits/api/internal/repositories"
)

const couponsCollection = "coupons"

type couponDocument struct {
	Code         string    `firestore:"code"`
	DiscountType string    `firestore:"discountType"`
	Value        int64     `firestore:"value"`
	MinCartValue int64     `firestore:"minCartValue"`
	MaxUses      *int64    `firestore:"maxUses,omitempty"`
	TimesUsed    int64     `firestore:"timesUsed"`
	ExpiresAt    time.Time `firestore:"expiresAt"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// CouponRepository stores coupon definitions in Firestore. Coupon documents are
// keyed by the uppercase code, which enforces code uniqueness.
type CouponRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[couponDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[couponDocument](provider, couponsCollection, nil, nil),
	}, nil
}

// Insert creates a new coupon document; an existing code is a conflict.
func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) error {
	if r == nil || r.base == nil {
		return errors.New("coupon repository not initialised")
	}
	code := normalizeCouponCode(coupon.Code)
	if code == "" {
		return errors.New("coupon repository: code is required")
	}

	ref, err := r.base.DocumentRef(ctx, code)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := encodeCoupon(coupon, code)
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("coupons.insert", err)
	}
	return nil
}

// Update overwrites the coupon definition while preserving the usage counter.
func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	if r == nil || r.provider == nil {
		return errors.New("coupon repository not initialised")
	}
	code := normalizeCouponCode(coupon.Code)
	if code == "" {
		return errors.New("coupon repository: code is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, code)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var existing couponDocument
		if err := snapshot.DataTo(&existing); err != nil {
			return fmt.Errorf("firestore coupons decode %s: %w", code, err)
		}

		doc := encodeCoupon(coupon, code)
		doc.TimesUsed = existing.TimesUsed
		doc.CreatedAt = existing.CreatedAt
		doc.UpdatedAt = time.Now().UTC()
		return tx.Set(ref, doc)
	})
	if err != nil {
		return pfirestore.WrapError("coupons.update", err)
	}
	return nil
}

// Delete removes the coupon document.
func (r *CouponRepository) Delete(ctx context.Context, couponID string) error {
	if r == nil || r.base == nil {
		return errors.New("coupon repository not initialised")
	}
	code := normalizeCouponCode(couponID)
	if code == "" {
		return errors.New("coupon repository: code is required")
	}
	ref, err := r.base.DocumentRef(ctx, code)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("coupons.delete", err)
	}
	return nil
}

// FindByCode loads the coupon for the normalized code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if r == nil || r.base == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	normalized := normalizeCouponCode(code)
	if normalized == "" {
		return domain.Coupon{}, errors.New("coupon repository: code is required")
	}
	doc, err := r.base.Get(ctx, normalized)
	if err != nil {
		return domain.Coupon{}, err
	}
	return decodeCoupon(doc.ID, doc.Data), nil
}

// List returns every coupon definition.
func (r *CouponRepository) List(ctx context.Context) ([]domain.Coupon, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("coupon repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	coupons := make([]domain.Coupon, 0, len(docs))
	for _, doc := range docs {
		coupons = append(coupons, decodeCoupon(doc.ID, doc.Data))
	}
	return coupons, nil
}

// Redeem increments the usage counter inside a transaction, re-checking expiry
// and the usage cap against the current document state. The increment is the
// authoritative validity check at order commit time.
func (r *CouponRepository) Redeem(ctx context.Context, code string, now time.Time) (domain.Coupon, error) {
	if r == nil || r.provider == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	normalized := normalizeCouponCode(code)
	if normalized == "" {
		return domain.Coupon{}, errors.New("coupon repository: code is required")
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	var redeemed domain.Coupon
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, normalized)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return newNotFoundError("coupons.redeem", fmt.Sprintf("coupon %q not found", normalized))
		}
		if err != nil {
			return err
		}

		var doc couponDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore coupons decode %s: %w", normalized, err)
		}

		if !doc.ExpiresAt.After(now) {
			return repositories.ErrCouponExpired
		}
		if doc.MaxUses != nil && doc.TimesUsed >= *doc.MaxUses {
			return repositories.ErrCouponExhausted
		}

		doc.TimesUsed++
		doc.UpdatedAt = now
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		redeemed = decodeCoupon(snapshot.Ref.ID, doc)
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrCouponExpired) || errors.Is(err, repositories.ErrCouponExhausted) {
			return domain.Coupon{}, err
		}
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			return domain.Coupon{}, err
		}
		return domain.Coupon{}, pfirestore.WrapError("coupons.redeem", err)
	}
	return redeemed, nil
}

func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func encodeCoupon(coupon domain.Coupon, code string) couponDocument {
	return couponDocument{
		Code:         code,
		DiscountType: string(coupon.DiscountType),
		Value:        coupon.Value,
		MinCartValue: coupon.MinCartValue,
		MaxUses:      coupon.MaxUses,
		TimesUsed:    coupon.TimesUsed,
		ExpiresAt:    coupon.ExpiresAt.UTC(),
		CreatedAt:    coupon.CreatedAt,
		UpdatedAt:    coupon.UpdatedAt,
	}
}

func decodeCoupon(id string, doc couponDocument) domain.Coupon {
	return domain.Coupon{
		ID:           id,
		Code:         doc.Code,
		DiscountType: domain.DiscountType(doc.DiscountType),
		Value:        doc.Value,
		MinCartValue: doc.MinCartValue,
		MaxUses:      doc.MaxUses,
		TimesUsed:    doc.TimesUsed,
		ExpiresAt:    doc.ExpiresAt,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)
