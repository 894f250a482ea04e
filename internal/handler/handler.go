// Package handler serves the storefront API routes.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/wire"
)

const maxBodySize = 64 << 10

// CouponService is the server-side coupon authority.
type CouponService interface {
	Active(ctx context.Context) ([]coupon.Coupon, error)
	ValidateCoupon(ctx context.Context, code string, orderAmount decimal.Decimal) (*coupon.Validation, error)
}

// OrderService is the server-side order authority.
type OrderService interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	Cancel(ctx context.Context, id string) (*order.Order, error)
	RequestReturn(ctx context.Context, id string, req order.ReturnRequest) (*order.ReturnRecord, error)
}

var (
	_ CouponService = (*coupon.RepoValidator)(nil)
	_ OrderService  = (*order.Service)(nil)
)

// Handler implements the /website routes.
type Handler struct {
	coupons CouponService
	orders  OrderService

	validations metric.Int64Counter
	transitions metric.Int64Counter
}

// NewHandler creates a Handler recording metrics with meter.
func NewHandler(coupons CouponService, orders OrderService, meter metric.Meter) (*Handler, error) {
	validations, err := meter.Int64Counter("storefront.coupon.validations",
		metric.WithDescription("Coupon validation requests by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create validations counter")
	}
	transitions, err := meter.Int64Counter("storefront.order.transitions",
		metric.WithDescription("Order cancel and return requests by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create transitions counter")
	}
	return &Handler{
		coupons:     coupons,
		orders:      orders,
		validations: validations,
		transitions: transitions,
	}, nil
}

// Register mounts the routes on r. validate wraps the coupon validation
// route only.
func (h *Handler) Register(r chi.Router, validate ...func(http.Handler) http.Handler) {
	r.Route("/website", func(r chi.Router) {
		r.Get("/coupons/active", h.ListActiveCoupons)
		r.With(validate...).Post("/coupons/validate", h.ValidateCoupon)

		r.Get("/orders/{id}", h.GetOrder)
		r.Post("/orders/{id}/cancel", h.CancelOrder)
		r.Post("/orders/{id}/return", h.RequestReturn)
	})
}

func writeJSON(w http.ResponseWriter, status int, env wire.Envelope, dataKey string, data func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	wire.EncodeEnvelope(e, env, dataKey, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, wire.Envelope{Message: message, Code: code}, "", nil)
}

// writeInternal logs err and hides it from the caller.
func writeInternal(ctx context.Context, w http.ResponseWriter, err error) {
	zctx.From(ctx).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, wire.CodeInternal, "Something went wrong. Please try again.")
}

// readBody returns a decoder over the request body. An empty body yields
// an empty object.
func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return jx.DecodeBytes(raw), nil
}
