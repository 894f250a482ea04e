// Package wire holds the JSON representation of the storefront API,
// shared by the HTTP handlers and the client.
//
// Every response uses the envelope {"success", "message", "code", "data"}.
// Money is written as a JSON number and accepted as a number or a numeric
// string.
package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Envelope is the common response wrapper.
type Envelope struct {
	Success bool
	Message string
	Code    string
}

// Error codes carried in Envelope.Code.
const (
	CodeNotFound         = "not_found"
	CodeBadRequest       = "bad_request"
	CodeInvalidCoupon    = "invalid_coupon"
	CodeExpired          = "coupon_expired"
	CodeUsageLimit       = "usage_limit_reached"
	CodeMinimumNotMet    = "minimum_not_met"
	CodeOrderDispatched  = "order_dispatched"
	CodeAlreadyCancelled = "already_cancelled"
	CodeNotCancellable   = "not_cancellable"
	CodeNotReturnable    = "not_returnable"
	CodeNotInOrder       = "product_not_in_order"
	CodeInternal         = "internal_error"
)

// EncodeEnvelope writes an envelope. dataKey and data are optional.
func EncodeEnvelope(e *jx.Encoder, env Envelope, dataKey string, data func(e *jx.Encoder)) {
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(env.Success)
	if env.Message != "" {
		e.FieldStart("message")
		e.Str(env.Message)
	}
	if env.Code != "" {
		e.FieldStart("code")
		e.Str(env.Code)
	}
	if data != nil {
		e.FieldStart(dataKey)
		data(e)
	}
	e.ObjEnd()
}

// DecodeEnvelope reads an envelope, handing the "data" and "request"
// members to data. Unknown members are skipped.
func DecodeEnvelope(d *jx.Decoder, data func(d *jx.Decoder) error) (Envelope, error) {
	var env Envelope
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "success":
			v, err := d.Bool()
			env.Success = v
			return err
		case "message":
			v, err := decodeOptStr(d)
			env.Message = v
			return err
		case "code":
			v, err := decodeOptStr(d)
			env.Code = v
			return err
		case "data", "request":
			if data == nil || d.Next() == jx.Null {
				return d.Skip()
			}
			return data(d)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Envelope{}, errors.Wrap(err, "decode envelope")
	}
	return env, nil
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Float64(v.InexactFloat64())
}

func encodeNullDecimal(e *jx.Encoder, v decimal.NullDecimal) {
	if !v.Valid {
		e.Null()
		return
	}
	encodeDecimal(e, v.Decimal)
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for amount", d.Next())
	}
}

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := decodeOptStr(d)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse time %q", s)
	}
	return t, nil
}

func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeID accepts both string and numeric identifiers.
func decodeID(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		return string(n), err
	}
	return decodeOptStr(d)
}

// fieldErr annotates a member decoding error with its key. A nil err stays
// nil: errors.Wrapf always allocates.
func fieldErr(err error, key string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "field %q", key)
}
