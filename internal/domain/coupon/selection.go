package coupon

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Selection tracks the coupons a shopper has tentatively selected in the
// picker and the set actually applied to checkout.
//
// Selected and Applied diverge only while the picker is open: Commit copies
// Selected into Applied and closes it, Open resets Selected back to Applied.
type Selection struct {
	remote RemoteValidator

	mu       sync.Mutex
	catalog  []Coupon
	selected []Coupon
	applied  []Coupon
	open     bool
}

// NewSelection creates an empty Selection. remote is consulted for codes
// that are not in the catalog.
func NewSelection(remote RemoteValidator) *Selection {
	return &Selection{remote: remote}
}

// SetCatalog replaces the known coupon list.
func (s *Selection) SetCatalog(coupons []Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = slices.Clone(coupons)
}

// Catalog returns a copy of the known coupon list.
func (s *Selection) Catalog() []Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.catalog)
}

// Open marks the picker open and restarts the tentative set from Applied.
func (s *Selection) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.selected = slices.Clone(s.applied)
}

// IsOpen reports whether the picker is open.
func (s *Selection) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Toggle flips c's membership in the selected set. Inapplicable coupons are
// ignored. It reports whether c is selected after the call.
func (s *Selection) Toggle(c Coupon, subtotal decimal.Decimal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexByID(c.ID)
	if !IsApplicable(c, subtotal) {
		return idx >= 0
	}
	if idx >= 0 {
		s.selected = slices.Delete(s.selected, idx, idx+1)
		return false
	}
	s.selected = append(s.selected, c)
	return true
}

// ApplyManualCode selects a coupon by its human-entered code. Catalog
// coupons are admitted locally; unknown codes are re-validated by the
// remote validator. On failure the selection is left untouched.
func (s *Selection) ApplyManualCode(ctx context.Context, code string, subtotal decimal.Decimal) (Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Coupon{}, ErrNotFound
	}

	s.mu.Lock()
	if s.indexByCode(code) >= 0 {
		s.mu.Unlock()
		return Coupon{}, ErrDuplicateCoupon
	}
	if c, ok := s.findInCatalog(code); ok {
		defer s.mu.Unlock()
		if !IsApplicable(c, subtotal) {
			return Coupon{}, &MinimumNotMetError{Code: c.Code, MinAmount: c.MinAmount}
		}
		s.selected = append(s.selected, c)
		return c, nil
	}
	s.mu.Unlock()

	if s.remote == nil {
		return Coupon{}, ErrNotFound
	}
	v, err := s.remote.ValidateCoupon(ctx, code, subtotal)
	if err != nil {
		return Coupon{}, err
	}
	c := v.Coupon()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have selected the same code while we were waiting.
	if s.indexByCode(c.Code) >= 0 || s.indexByID(c.ID) >= 0 {
		return Coupon{}, ErrDuplicateCoupon
	}
	s.selected = append(s.selected, c)
	return c, nil
}

// Selected returns a copy of the tentative set.
func (s *Selection) Selected() []Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.selected)
}

// Applied returns a copy of the committed set.
func (s *Selection) Applied() []Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.applied)
}

// TotalSavings sums the savings of the selected coupons.
func (s *Selection) TotalSavings(subtotal decimal.Decimal) decimal.Decimal {
	return TotalSavings(s.Selected(), subtotal)
}

// AppliedSavings sums the savings of the applied coupons.
func (s *Selection) AppliedSavings(subtotal decimal.Decimal) decimal.Decimal {
	return TotalSavings(s.Applied(), subtotal)
}

// Commit replaces Applied with a copy of Selected and closes the picker.
func (s *Selection) Commit() []Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = slices.Clone(s.selected)
	s.open = false
	return slices.Clone(s.applied)
}

// Clear empties both sets.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.applied = nil
}

// IsSelected reports whether a coupon with the given ID is selected.
func (s *Selection) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexByID(id) >= 0
}

func (s *Selection) indexByID(id string) int {
	return slices.IndexFunc(s.selected, func(c Coupon) bool { return c.ID == id })
}

func (s *Selection) indexByCode(code string) int {
	return slices.IndexFunc(s.selected, func(c Coupon) bool { return NormalizeCode(c.Code) == code })
}

func (s *Selection) findInCatalog(code string) (Coupon, bool) {
	i := slices.IndexFunc(s.catalog, func(c Coupon) bool { return NormalizeCode(c.Code) == code })
	if i < 0 {
		return Coupon{}, false
	}
	return s.catalog[i], true
}

// IsUserFacing reports whether err should be shown to the shopper as-is
// rather than replaced by a generic failure message.
func IsUserFacing(err error) bool {
	var (
		minErr *MinimumNotMetError
		rejErr *RejectedError
	)
	return errors.As(err, &minErr) || errors.As(err, &rejErr) ||
		errors.Is(err, ErrDuplicateCoupon) || errors.Is(err, ErrNotFound)
}
