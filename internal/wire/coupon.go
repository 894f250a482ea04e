package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
)

// EncodeCoupon writes a catalog coupon.
func EncodeCoupon(e *jx.Encoder, c coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("type")
	e.Str(string(c.Type))
	e.FieldStart("value")
	encodeDecimal(e, c.Value)
	e.FieldStart("minAmount")
	encodeDecimal(e, c.MinAmount)
	e.FieldStart("maxDiscount")
	encodeNullDecimal(e, c.MaxDiscount)
	if !c.ExpiresAt.IsZero() {
		e.FieldStart("expiryDate")
		encodeTime(e, c.ExpiresAt)
	}
	if c.Description != "" {
		e.FieldStart("description")
		e.Str(c.Description)
	}
	e.ObjEnd()
}

// EncodeCoupons writes a coupon array.
func EncodeCoupons(e *jx.Encoder, cs []coupon.Coupon) {
	e.ArrStart()
	for _, c := range cs {
		EncodeCoupon(e, c)
	}
	e.ArrEnd()
}

// DecodeCoupon reads a coupon. "discountType" and "discountValue" are
// accepted as aliases of "type" and "value".
func DecodeCoupon(d *jx.Decoder) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := d.Obj(func(d *jx.Decoder, key string) error {
		ok, err := decodeCouponField(d, key, &c)
		if err == nil && !ok {
			err = d.Skip()
		}
		return fieldErr(err, key)
	})
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "decode coupon")
	}
	if err := normalizeCoupon(&c); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "decode coupon")
	}
	return c, nil
}

// DecodeRule reads a coupon together with its admission constraints:
// validFrom, maxUses, uses and active. A missing "active" means true.
func DecodeRule(d *jx.Decoder) (coupon.Rule, error) {
	r := coupon.Rule{Active: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		ok, err := decodeCouponField(d, key, &r.Coupon)
		if err != nil || ok {
			return fieldErr(err, key)
		}
		switch key {
		case "validFrom":
			var t time.Time
			if t, err = decodeTime(d); err == nil && !t.IsZero() {
				r.ValidFrom = &t
			}
		case "maxUses":
			r.MaxUses, err = d.Int()
		case "uses":
			r.Uses, err = d.Int()
		case "active":
			r.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return fieldErr(err, key)
	})
	if err != nil {
		return coupon.Rule{}, errors.Wrap(err, "decode rule")
	}
	if err := normalizeCoupon(&r.Coupon); err != nil {
		return coupon.Rule{}, errors.Wrap(err, "decode rule")
	}
	return r, nil
}

func decodeCouponField(d *jx.Decoder, key string, c *coupon.Coupon) (ok bool, err error) {
	switch key {
	case "id", "_id":
		c.ID, err = decodeID(d)
	case "code":
		c.Code, err = decodeOptStr(d)
	case "type", "discountType":
		var s string
		s, err = decodeOptStr(d)
		c.Type = coupon.Type(s)
	case "value", "discountValue":
		c.Value, err = decodeDecimal(d)
	case "minAmount":
		c.MinAmount, err = decodeDecimal(d)
	case "maxDiscount":
		c.MaxDiscount, err = decodeNullDecimal(d)
	case "expiryDate":
		c.ExpiresAt, err = decodeTime(d)
	case "description":
		c.Description, err = decodeOptStr(d)
	default:
		return false, nil
	}
	return true, err
}

// normalizeCoupon runs once the whole object is consumed, so a bad type
// leaves the decoder positioned at the next value.
func normalizeCoupon(c *coupon.Coupon) error {
	c.Code = coupon.NormalizeCode(c.Code)
	if c.ID == "" {
		c.ID = c.Code
	}
	t, err := coupon.ParseType(string(c.Type))
	if err != nil {
		return errors.Wrapf(err, "coupon %s", c.Code)
	}
	c.Type = t
	return nil
}

// DecodeCoupons reads a coupon array. Coupons with an unknown discount
// type are dropped so they can never be selected.
func DecodeCoupons(d *jx.Decoder) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	err := d.Arr(func(d *jx.Decoder) error {
		c, err := DecodeCoupon(d)
		if errors.Is(err, coupon.ErrUnknownType) {
			return nil
		}
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

// ValidateRequest is the body of a coupon validation call.
type ValidateRequest struct {
	Code        string
	OrderAmount decimal.Decimal
}

// EncodeValidateRequest writes a validation request.
func EncodeValidateRequest(e *jx.Encoder, r ValidateRequest) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(r.Code)
	e.FieldStart("orderAmount")
	encodeDecimal(e, r.OrderAmount)
	e.ObjEnd()
}

// DecodeValidateRequest reads a validation request.
func DecodeValidateRequest(d *jx.Decoder) (ValidateRequest, error) {
	var r ValidateRequest
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "code":
			r.Code, err = decodeOptStr(d)
		case "orderAmount", "subtotal":
			r.OrderAmount, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return fieldErr(err, key)
	})
	if err != nil {
		return ValidateRequest{}, errors.Wrap(err, "decode validate request")
	}
	return r, nil
}

// EncodeValidation writes a successful validation result.
func EncodeValidation(e *jx.Encoder, v coupon.Validation) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(v.ID)
	e.FieldStart("code")
	e.Str(v.Code)
	e.FieldStart("discountType")
	e.Str(string(v.DiscountType))
	e.FieldStart("discountValue")
	encodeDecimal(e, v.DiscountValue)
	if v.MinAmount.Valid {
		e.FieldStart("minAmount")
		encodeDecimal(e, v.MinAmount.Decimal)
	}
	e.FieldStart("maxDiscount")
	encodeNullDecimal(e, v.MaxDiscount)
	if v.ExpiresAt != nil {
		e.FieldStart("expiryDate")
		encodeTime(e, *v.ExpiresAt)
	}
	if v.Description != "" {
		e.FieldStart("description")
		e.Str(v.Description)
	}
	e.FieldStart("savings")
	encodeDecimal(e, v.Savings)
	e.ObjEnd()
}

// DecodeValidation reads a validation result. Fields a minimal server
// omits are left unset.
func DecodeValidation(d *jx.Decoder) (coupon.Validation, error) {
	var v coupon.Validation
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id", "_id":
			v.ID, err = decodeID(d)
		case "code":
			v.Code, err = decodeOptStr(d)
		case "discountType", "type":
			var s string
			s, err = decodeOptStr(d)
			v.DiscountType = coupon.Type(s)
		case "discountValue", "value":
			v.DiscountValue, err = decodeDecimal(d)
		case "minAmount":
			v.MinAmount, err = decodeNullDecimal(d)
		case "maxDiscount":
			v.MaxDiscount, err = decodeNullDecimal(d)
		case "expiryDate":
			var t time.Time
			t, err = decodeTime(d)
			if err == nil && !t.IsZero() {
				v.ExpiresAt = &t
			}
		case "description":
			v.Description, err = decodeOptStr(d)
		case "savings", "discount":
			v.Savings, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return fieldErr(err, key)
	})
	if err != nil {
		return coupon.Validation{}, errors.Wrap(err, "decode validation")
	}
	if v.DiscountType, err = coupon.ParseType(string(v.DiscountType)); err != nil {
		return coupon.Validation{}, errors.Wrap(err, "decode validation")
	}
	return v, nil
}
