package main

import (
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/wire"
)

func loadRules(path string) ([]coupon.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	var rules []coupon.Rule
	if err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		r, err := wire.DecodeRule(d)
		if err != nil {
			return err
		}
		rules = append(rules, r)
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return rules, nil
}

func loadOrders(path string) ([]order.Order, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	var orders []order.Order
	if err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		o, err := wire.DecodeOrder(d)
		if err != nil {
			return err
		}
		if o.Status == order.StatusUnknown {
			return errors.Errorf("order %s: unrecognized status", o.ID)
		}
		orders = append(orders, o)
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return orders, nil
}
