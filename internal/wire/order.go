package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

// EncodeOrder writes an order with its permitted actions.
func EncodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("status")
	e.Str(o.Status.String())
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		encodeDecimal(e, it.Price)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	encodeDecimal(e, o.Total)
	e.FieldStart("discounts")
	encodeDecimal(e, o.Discounts)
	e.FieldStart("couponCodes")
	e.ArrStart()
	for _, c := range o.Coupons {
		e.Str(c)
	}
	e.ArrEnd()
	if !o.CreatedAt.IsZero() {
		e.FieldStart("createdAt")
		encodeTime(e, o.CreatedAt)
	}
	if !o.UpdatedAt.IsZero() {
		e.FieldStart("updatedAt")
		encodeTime(e, o.UpdatedAt)
	}

	e.FieldStart("canCancel")
	e.Bool(o.Status.CanCancel())
	e.FieldStart("canReturn")
	e.Bool(o.Status.CanReturn())
	e.FieldStart("canExchange")
	e.Bool(o.Status.CanExchange())
	e.FieldStart("canTrack")
	e.Bool(o.Status.CanTrack())

	a := order.ResolveAction(o)
	e.FieldStart("action")
	e.ObjStart()
	e.FieldStart("kind")
	e.Str(string(a.Kind))
	if a.Label != "" {
		e.FieldStart("label")
		e.Str(a.Label)
	}
	e.ObjEnd()

	e.ObjEnd()
}

// DecodeOrder reads an order. The status string is normalized with
// order.ParseStatus; derived flags and actions are ignored.
func DecodeOrder(d *jx.Decoder) (order.Order, error) {
	var o order.Order
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id", "_id", "orderId":
			o.ID, err = decodeID(d)
		case "status", "orderStatus":
			var s string
			s, err = decodeOptStr(d)
			o.Status = order.ParseStatus(s)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		case "total", "totalAmount":
			o.Total, err = decodeDecimal(d)
		case "discounts":
			o.Discounts, err = decodeDecimal(d)
		case "couponCodes":
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				o.Coupons = append(o.Coupons, s)
				return nil
			})
		case "createdAt":
			o.CreatedAt, err = decodeTime(d)
		case "updatedAt":
			o.UpdatedAt, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return fieldErr(err, key)
	})
	if err != nil {
		return order.Order{}, errors.Wrap(err, "decode order")
	}
	if o.Status == "" {
		o.Status = order.StatusUnknown
	}
	return o, nil
}

func decodeItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "productId":
			it.ProductID, err = decodeID(d)
		case "name":
			it.Name, err = decodeOptStr(d)
		case "quantity":
			it.Quantity, err = d.Int()
		case "price":
			it.Price, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return fieldErr(err, key)
	})
	return it, err
}

// CancelRequest is the body of a cancel call.
type CancelRequest struct {
	OrderID string
}

// EncodeCancelRequest writes a cancel request.
func EncodeCancelRequest(e *jx.Encoder, r CancelRequest) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(r.OrderID)
	e.ObjEnd()
}

// EncodeReturnRequest writes a return or exchange request.
func EncodeReturnRequest(e *jx.Encoder, r order.ReturnRequest) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Str(r.ProductID)
	e.FieldStart("reason")
	e.Str(r.Reason)
	e.FieldStart("refundMethod")
	e.Str(string(r.RefundMethod))
	e.FieldStart("type")
	e.Str(string(r.Kind))
	e.ObjEnd()
}

// DecodeReturnRequest reads a return request. Defaults are not applied.
func DecodeReturnRequest(d *jx.Decoder) (order.ReturnRequest, error) {
	var r order.ReturnRequest
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		var s string
		switch key {
		case "productId":
			r.ProductID, err = decodeID(d)
		case "reason":
			r.Reason, err = decodeOptStr(d)
		case "refundMethod":
			s, err = decodeOptStr(d)
			r.RefundMethod = order.RefundMethod(s)
		case "type", "kind":
			s, err = decodeOptStr(d)
			r.Kind = order.RequestKind(s)
		default:
			err = d.Skip()
		}
		return fieldErr(err, key)
	})
	if err != nil {
		return order.ReturnRequest{}, errors.Wrap(err, "decode return request")
	}
	return r, nil
}

// EncodeReturnRecord writes a stored return request.
func EncodeReturnRecord(e *jx.Encoder, r order.ReturnRecord) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("orderId")
	e.Str(r.OrderID)
	e.FieldStart("productId")
	e.Str(r.ProductID)
	e.FieldStart("reason")
	e.Str(r.Reason)
	e.FieldStart("refundMethod")
	e.Str(string(r.RefundMethod))
	e.FieldStart("type")
	e.Str(string(r.Kind))
	e.FieldStart("status")
	e.Str(r.Status)
	e.FieldStart("createdAt")
	encodeTime(e, r.CreatedAt)
	e.ObjEnd()
}

// DecodeReturnRecord reads a stored return request.
func DecodeReturnRecord(d *jx.Decoder) (order.ReturnRecord, error) {
	var r order.ReturnRecord
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		var s string
		switch key {
		case "id", "_id":
			r.ID, err = decodeID(d)
		case "orderId":
			r.OrderID, err = decodeID(d)
		case "productId":
			r.ProductID, err = decodeID(d)
		case "reason":
			r.Reason, err = decodeOptStr(d)
		case "refundMethod":
			s, err = decodeOptStr(d)
			r.RefundMethod = order.RefundMethod(s)
		case "type", "kind":
			s, err = decodeOptStr(d)
			r.Kind = order.RequestKind(s)
		case "status":
			r.Status, err = decodeOptStr(d)
		case "createdAt":
			r.CreatedAt, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return fieldErr(err, key)
	})
	if err != nil {
		return order.ReturnRecord{}, errors.Wrap(err, "decode return record")
	}
	return r, nil
}
