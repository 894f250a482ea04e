package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercentage takes a percentage of the subtotal, optionally capped.
	TypePercentage Type = "percentage"
	// TypeFixed takes a flat amount off the subtotal.
	TypeFixed Type = "fixed"
)

// Valid reports whether t is a known discount type.
func (t Type) Valid() bool {
	return t == TypePercentage || t == TypeFixed
}

// ParseType normalizes a raw discount type from an external source.
// Unknown values are rejected with ErrUnknownType.
func ParseType(raw string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", errors.Wrapf(ErrUnknownType, "%q", raw)
	}
	return t, nil
}

// Source records where a coupon record came from.
type Source string

const (
	// SourceCatalog marks coupons listed by the active coupon endpoint.
	SourceCatalog Source = "catalog"
	// SourceManual marks coupons synthesized from a validated manual code.
	SourceManual Source = "manual"
)

var (
	// ErrNotFound is returned when no active coupon matches a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when a coupon is outside its validity window.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when a coupon has exhausted its uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrDuplicateCoupon is returned when a code is already selected.
	ErrDuplicateCoupon = errors.New("coupon already selected")
	// ErrUnknownType is returned for a discount type other than
	// percentage or fixed.
	ErrUnknownType = errors.New("unknown type")
	// ErrValidationUnavailable is returned when the remote validation
	// round-trip could not be completed (network failure, server error).
	ErrValidationUnavailable = errors.New("coupon validation unavailable")
)

// MinimumNotMetError indicates the subtotal is below the coupon's minimum.
type MinimumNotMetError struct {
	Code      string
	MinAmount decimal.Decimal
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum order of %s", e.Code, e.MinAmount.StringFixed(2))
}

// UnavailableError keeps the cause of a failed validation round trip. It
// matches ErrValidationUnavailable under errors.Is.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return ErrValidationUnavailable.Error() + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool {
	return target == ErrValidationUnavailable
}

// RejectedError carries a business-rule rejection from the validation
// server. Message is the server's text, unmodified.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("coupon %s rejected", e.Code)
	}
	return e.Message
}

// Coupon is a discount offer.
type Coupon struct {
	ID        string
	Code      string
	Type      Type
	Value     decimal.Decimal
	MinAmount decimal.Decimal
	// MaxDiscount caps percentage coupons. Ignored for fixed coupons.
	MaxDiscount decimal.NullDecimal
	ExpiresAt   time.Time
	Description string
	Source      Source
}

// Rule extends Coupon with the server-side admission constraints that the
// client never sees.
type Rule struct {
	Coupon
	ValidFrom *time.Time
	MaxUses   int
	Uses      int
	Active    bool
}

// Validation is the server's answer to a manual code check.
type Validation struct {
	ID            string
	Code          string
	DiscountType  Type
	DiscountValue decimal.Decimal
	MinAmount     decimal.NullDecimal
	MaxDiscount   decimal.NullDecimal
	ExpiresAt     *time.Time
	Description   string
	Savings       decimal.Decimal
}

// Coupon synthesizes a manual coupon record from the validation response.
// Metadata the server did not echo stays at its zero value: MinAmount 0
// and an unknown (zero) expiry.
func (v *Validation) Coupon() Coupon {
	c := Coupon{
		ID:          v.ID,
		Code:        NormalizeCode(v.Code),
		Type:        v.DiscountType,
		Value:       v.DiscountValue,
		Description: v.Description,
		Source:      SourceManual,
	}
	if c.ID == "" {
		c.ID = c.Code
	}
	if v.MinAmount.Valid {
		c.MinAmount = v.MinAmount.Decimal
	}
	if v.DiscountType == TypePercentage {
		c.MaxDiscount = v.MaxDiscount
	}
	if v.ExpiresAt != nil {
		c.ExpiresAt = *v.ExpiresAt
	}
	return c
}

// RemoteValidator re-validates a manually entered code on the server.
type RemoteValidator interface {
	ValidateCoupon(ctx context.Context, code string, orderAmount decimal.Decimal) (*Validation, error)
}

// Repository provides lookup of coupon rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	ListActive(ctx context.Context, now time.Time) ([]Rule, error)
}

// NormalizeCode trims and upper-cases a human-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
