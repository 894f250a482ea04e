package coupon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// IsApplicable reports whether the subtotal meets the coupon's minimum.
// It is the only client-side admission gate: catalog coupons are assumed
// already filtered to active by the server.
func IsApplicable(c Coupon, subtotal decimal.Decimal) bool {
	return subtotal.GreaterThanOrEqual(c.MinAmount)
}

// Savings returns the discount c yields on subtotal. An inapplicable
// coupon yields zero rather than an error.
func Savings(c Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if !IsApplicable(c, subtotal) {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch c.Type {
	case TypePercentage:
		amount = subtotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.Valid {
			amount = decimal.Min(amount, c.MaxDiscount.Decimal)
		}
	case TypeFixed:
		amount = c.Value
	default:
		return decimal.Zero
	}

	return floorAtZero(amount).Round(2)
}

// TotalSavings sums Savings over coupons. Stacked coupons add linearly and
// the result is not clamped to subtotal.
func TotalSavings(coupons []Coupon, subtotal decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range coupons {
		sum = sum.Add(Savings(c, subtotal))
	}
	return sum
}

// CheckoutTotal returns subtotal minus savings, floored at zero and rounded
// to 2 decimal places.
func CheckoutTotal(subtotal, savings decimal.Decimal) decimal.Decimal {
	return floorAtZero(subtotal.Sub(savings)).Round(2)
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
