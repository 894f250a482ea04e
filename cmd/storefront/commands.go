package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
)

// storefrontAPI is the part of client.Client the CLI needs.
type storefrontAPI interface {
	coupon.RemoteValidator
	order.Canceller
	order.ReturnSubmitter
	ListActiveCoupons(ctx context.Context) ([]coupon.Coupon, error)
	GetOrder(ctx context.Context, id string) (*order.Order, error)
}

type cli struct {
	api storefrontAPI
	out io.Writer
}

var errUsage = errors.New("invalid usage")

func (c *cli) Run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "coupons":
		return c.coupons(ctx)
	case "checkout":
		return c.checkout(ctx, args)
	case "order":
		return c.order(ctx, args)
	case "cancel":
		return c.cancel(ctx, args)
	case "return":
		return c.returnItem(ctx, args)
	default:
		return errors.Wrapf(errUsage, "unknown command %q", cmd)
	}
}

func (c *cli) coupons(ctx context.Context) error {
	cs, err := c.api.ListActiveCoupons(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupons")
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tDISCOUNT\tMIN ORDER\tEXPIRES\tDESCRIPTION")
	for _, cp := range cs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			cp.Code, describeDiscount(cp), cp.MinAmount.StringFixed(2), expiry(cp), cp.Description)
	}
	return tw.Flush()
}

// stringList collects a repeated string flag.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func (c *cli) checkout(ctx context.Context, args []string) error {
	var (
		fs       = flag.NewFlagSet("checkout", flag.ContinueOnError)
		subtotal = fs.String("subtotal", "", "cart subtotal")
		codes    stringList
	)
	fs.SetOutput(io.Discard)
	fs.Var(&codes, "code", "coupon code to apply (repeatable)")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(errUsage, err.Error())
	}
	amount, err := decimal.NewFromString(*subtotal)
	if err != nil || amount.IsNegative() {
		return errors.Wrapf(errUsage, "subtotal %q must be a non-negative number", *subtotal)
	}

	catalog, err := c.api.ListActiveCoupons(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupons")
	}
	sel := coupon.NewSelection(c.api)
	sel.SetCatalog(catalog)
	sel.Open()

	for _, code := range codes {
		cp, err := sel.ApplyManualCode(ctx, code, amount)
		switch {
		case err == nil:
			fmt.Fprintf(c.out, "applied %s: -%s\n", cp.Code, coupon.Savings(cp, amount).StringFixed(2))
		case coupon.IsUserFacing(err):
			fmt.Fprintf(c.out, "skipped %s: %s\n", coupon.NormalizeCode(code), err)
		default:
			fmt.Fprintf(c.out, "skipped %s: could not validate the coupon, try again later\n", coupon.NormalizeCode(code))
		}
	}

	applied := sel.Commit()
	savings := sel.AppliedSavings(amount)
	fmt.Fprintf(c.out, "subtotal: %s\n", amount.StringFixed(2))
	fmt.Fprintf(c.out, "coupons:  %d\n", len(applied))
	fmt.Fprintf(c.out, "savings:  %s\n", savings.StringFixed(2))
	fmt.Fprintf(c.out, "total:    %s\n", coupon.CheckoutTotal(amount, savings).StringFixed(2))
	return nil
}

func (c *cli) order(ctx context.Context, args []string) error {
	o, err := c.fetchOrder(ctx, args)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "order:  %s\n", o.ID)
	fmt.Fprintf(c.out, "status: %s\n", o.Status)
	fmt.Fprintf(c.out, "total:  %s\n", o.Total.StringFixed(2))
	for _, it := range o.Items {
		fmt.Fprintf(c.out, "  %s x%d %s (%s)\n", it.ProductID, it.Quantity, it.Name, it.Price.StringFixed(2))
	}
	if a := order.ResolveAction(*o); a.Kind != order.ActionNone {
		fmt.Fprintf(c.out, "action: %s\n", a.Label)
	}
	return nil
}

func (c *cli) cancel(ctx context.Context, args []string) error {
	o, err := c.fetchOrder(ctx, args)
	if err != nil {
		return err
	}
	flow := order.NewCancelFlow(*o, c.api, nil)
	if err := flow.Open(); err != nil {
		return err
	}
	err = flow.Confirm(ctx)
	fmt.Fprintln(c.out, flow.Message())
	if err != nil && flow.State() != order.CancelCancelled && flow.State() != order.CancelErrorDispatched {
		return err
	}
	return nil
}

func (c *cli) returnItem(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.Wrap(errUsage, "order id required")
	}
	id := args[0]

	var (
		fs       = flag.NewFlagSet("return", flag.ContinueOnError)
		product  = fs.String("product", "", "product id to return")
		reason   = fs.String("reason", "", "reason for the return")
		refund   = fs.String("refund", string(order.RefundOriginalPayment), "refund method")
		exchange = fs.Bool("exchange", false, "request an exchange instead of a refund")
		accept   = fs.Bool("accept", false, "accept the return policy")
	)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args[1:]); err != nil {
		return errors.Wrap(errUsage, err.Error())
	}

	o, err := c.api.GetOrder(ctx, id)
	if err != nil {
		return errors.Wrap(err, "get order")
	}
	req := order.ReturnRequest{
		ProductID:    *product,
		Reason:       *reason,
		RefundMethod: order.RefundMethod(*refund),
		Kind:         order.KindReturn,
	}
	if *exchange {
		req.Kind = order.KindExchange
	}

	flow := order.NewReturnFlow(*o, c.api)
	flow.AcceptTerms(*accept)
	res, err := flow.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, res.Message)
	fmt.Fprintf(c.out, "request: %s (%s, %s)\n", res.Request.ID, res.Request.Kind, res.Request.Status)
	return nil
}

func (c *cli) fetchOrder(ctx context.Context, args []string) (*order.Order, error) {
	if len(args) != 1 {
		return nil, errors.Wrap(errUsage, "exactly one order id required")
	}
	o, err := c.api.GetOrder(ctx, args[0])
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

func describeDiscount(c coupon.Coupon) string {
	if c.Type == coupon.TypeFixed {
		return c.Value.StringFixed(2) + " off"
	}
	s := c.Value.String() + "% off"
	if c.MaxDiscount.Valid {
		s += " up to " + c.MaxDiscount.Decimal.StringFixed(2)
	}
	return s
}

func expiry(c coupon.Coupon) string {
	if c.ExpiresAt.IsZero() {
		return "-"
	}
	return c.ExpiresAt.Format("2006-01-02")
}
