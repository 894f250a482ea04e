package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// RepoValidator is the authoritative validator: it enforces the rules the
// client cannot be trusted with (validity window, usage cap, minimum order
// amount) against rules loaded from a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Active returns the coupons a shopper may currently pick from.
func (v *RepoValidator) Active(ctx context.Context) ([]Coupon, error) {
	now := v.now()
	rules, err := v.repo.ListActive(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}

	coupons := make([]Coupon, 0, len(rules))
	for _, r := range rules {
		if checkRule(&r, now) != nil {
			continue
		}
		c := r.Coupon
		c.Source = SourceCatalog
		coupons = append(coupons, c)
	}
	return coupons, nil
}

// ValidateCoupon looks up code and checks it against orderAmount. It does
// not consume a use: redemption happens when the order is placed.
func (v *RepoValidator) ValidateCoupon(ctx context.Context, code string, orderAmount decimal.Decimal) (*Validation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrNotFound
	}

	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := checkRule(rule, v.now()); err != nil {
		return nil, err
	}
	if !IsApplicable(rule.Coupon, orderAmount) {
		return nil, &MinimumNotMetError{Code: rule.Code, MinAmount: rule.MinAmount}
	}

	val := &Validation{
		ID:            rule.ID,
		Code:          rule.Code,
		DiscountType:  rule.Type,
		DiscountValue: rule.Value,
		MinAmount:     decimal.NewNullDecimal(rule.MinAmount),
		Description:   rule.Description,
		Savings:       Savings(rule.Coupon, orderAmount),
	}
	if rule.Type == TypePercentage {
		val.MaxDiscount = rule.MaxDiscount
	}
	if !rule.ExpiresAt.IsZero() {
		exp := rule.ExpiresAt
		val.ExpiresAt = &exp
	}
	return val, nil
}

func checkRule(r *Rule, now time.Time) error {
	if !r.Active {
		return ErrNotFound
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrExpired
	}
	if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
		return ErrExpired
	}
	if r.MaxUses > 0 && r.Uses >= r.MaxUses {
		return ErrUsageLimitReached
	}
	return nil
}
