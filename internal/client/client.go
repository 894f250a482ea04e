// Package client talks to the storefront API on behalf of the shopper.
//
// It is the remote validation gateway for manual coupon codes and the
// backend for the order cancel and return flows.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/internal/wire"
)

const maxBodySize = 1 << 20

// APIError is a non-success response that has no domain meaning.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// Client is a storefront API client.
type Client struct {
	base    *url.URL
	http    *http.Client
	session session.Store
}

var (
	_ coupon.RemoteValidator = (*Client)(nil)
	_ order.Canceller        = (*Client)(nil)
	_ order.ReturnSubmitter  = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSession attaches a session token store. Requests carry the token as
// a bearer credential, and a 401 response clears it.
func WithSession(s session.Store) Option {
	return func(c *Client) { c.session = s }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ListActiveCoupons fetches the active coupon catalog.
func (c *Client) ListActiveCoupons(ctx context.Context) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	resp, err := c.do(ctx, http.MethodGet, "/website/coupons/active", nil, func(d *jx.Decoder) (err error) {
		out, err = wire.DecodeCoupons(d)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}
	if !resp.ok() {
		return nil, resp.apiError()
	}
	for i := range out {
		out[i].Source = coupon.SourceCatalog
	}
	return out, nil
}

// ValidateCoupon asks the server whether code applies to orderAmount.
//
// Business rejections come back as *coupon.RejectedError carrying the
// server's message. Transport failures and 5xx responses wrap
// coupon.ErrValidationUnavailable.
func (c *Client) ValidateCoupon(ctx context.Context, code string, orderAmount decimal.Decimal) (*coupon.Validation, error) {
	code = coupon.NormalizeCode(code)
	req := wire.ValidateRequest{Code: code, OrderAmount: orderAmount}

	var v coupon.Validation
	resp, err := c.do(ctx, http.MethodPost, "/website/coupons/validate",
		func(e *jx.Encoder) { wire.EncodeValidateRequest(e, req) },
		func(d *jx.Decoder) (err error) {
			v, err = wire.DecodeValidation(d)
			return err
		},
	)
	if err != nil {
		return nil, &coupon.UnavailableError{Err: err}
	}

	switch {
	case resp.ok() && resp.env.Success:
		if v.Code == "" {
			v.Code = code
		}
		return &v, nil
	case resp.ok():
		return nil, &coupon.RejectedError{Code: code, Message: resp.env.Message}
	case resp.status >= http.StatusInternalServerError:
		return nil, errors.Wrapf(coupon.ErrValidationUnavailable, "status %d", resp.status)
	}

	switch resp.status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return nil, &coupon.RejectedError{Code: code, Message: resp.env.Message}
	default:
		return nil, resp.apiError()
	}
}

// GetOrder fetches a single order.
func (c *Client) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	resp, err := c.do(ctx, http.MethodGet, "/website/orders/"+url.PathEscape(id), nil, func(d *jx.Decoder) (err error) {
		o, err = wire.DecodeOrder(d)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	switch {
	case resp.status == http.StatusNotFound:
		return nil, order.ErrNotFound
	case !resp.ok():
		return nil, resp.apiError()
	}
	return &o, nil
}

// CancelOrder requests cancellation. A 400 or 409 response means the order
// has left the warehouse and yields order.ErrDispatched.
func (c *Client) CancelOrder(ctx context.Context, id string) (*order.CancelResult, error) {
	var (
		o        order.Order
		hasOrder bool
	)
	resp, err := c.do(ctx, http.MethodPost, "/website/orders/"+url.PathEscape(id)+"/cancel",
		func(e *jx.Encoder) { wire.EncodeCancelRequest(e, wire.CancelRequest{OrderID: id}) },
		func(d *jx.Decoder) (err error) {
			o, err = wire.DecodeOrder(d)
			hasOrder = err == nil
			return err
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "cancel order %s", id)
	}

	switch {
	case resp.ok():
		res := &order.CancelResult{Message: resp.env.Message}
		if hasOrder {
			res.Order = &o
		}
		return res, nil
	case resp.env.Code == wire.CodeAlreadyCancelled:
		return nil, order.ErrAlreadyCancelled
	case resp.status == http.StatusBadRequest, resp.status == http.StatusConflict:
		return nil, errors.Wrap(order.ErrDispatched, resp.env.Message)
	case resp.status == http.StatusNotFound:
		return nil, order.ErrNotFound
	default:
		return nil, resp.apiError()
	}
}

// SubmitReturn files a return or exchange request.
func (c *Client) SubmitReturn(ctx context.Context, orderID string, req order.ReturnRequest) (*order.ReturnResult, error) {
	var rec order.ReturnRecord
	resp, err := c.do(ctx, http.MethodPost, "/website/orders/"+url.PathEscape(orderID)+"/return",
		func(e *jx.Encoder) { wire.EncodeReturnRequest(e, req) },
		func(d *jx.Decoder) (err error) {
			rec, err = wire.DecodeReturnRecord(d)
			return err
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "submit return for order %s", orderID)
	}

	switch {
	case resp.ok():
		return &order.ReturnResult{Message: resp.env.Message, Request: rec}, nil
	case resp.status == http.StatusNotFound:
		return nil, order.ErrNotFound
	case resp.env.Code == wire.CodeNotReturnable:
		return nil, order.ErrNotReturnable
	default:
		return nil, resp.apiError()
	}
}

type response struct {
	status int
	env    wire.Envelope
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (r response) apiError() *APIError {
	return &APIError{StatusCode: r.status, Code: r.env.Code, Message: r.env.Message}
}

// do performs one request. data is only consulted for 2xx responses; the
// returned error covers transport and decoding failures.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	body func(e *jx.Encoder),
	data func(d *jx.Decoder) error,
) (response, error) {
	lg := zctx.From(ctx).With(zap.String("method", method), zap.String("path", path))

	var reqBody io.Reader
	if body != nil {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		body(e)
		reqBody = bytes.NewReader(e.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reqBody)
	if err != nil {
		return response{}, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		if tok, ok := c.session.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		lg.Warn("Request failed", zap.Error(err))
		return response{}, errors.Wrap(err, "send request")
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return response{}, errors.Wrap(err, "read response")
	}

	resp := response{status: httpResp.StatusCode}
	lg.Debug("Response",
		zap.Int("status", resp.status),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.status == http.StatusUnauthorized && c.session != nil {
		lg.Info("Session rejected, clearing token")
		c.session.Clear()
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return resp, nil
	}
	if !resp.ok() {
		data = nil
	}
	env, err := wire.DecodeEnvelope(jx.DecodeBytes(raw), data)
	if err != nil {
		if !resp.ok() {
			// Non-JSON error pages still carry a usable status.
			return resp, nil
		}
		return resp, errors.Wrap(err, "decode response")
	}
	resp.env = env
	return resp, nil
}
