package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/storefront/internal/client"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/wire"
)

// --- Mock implementations ---

type memCoupons struct {
	rules map[string]*coupon.Rule
	err   error
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.rules[coupon.NormalizeCode(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memCoupons) ListActive(_ context.Context, _ time.Time) ([]coupon.Rule, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []coupon.Rule
	for _, r := range m.rules {
		out = append(out, *r)
	}
	return out, nil
}

type memOrders struct {
	orders  map[string]*order.Order
	returns []*order.ReturnRecord
}

func (m *memOrders) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) TransitionStatus(_ context.Context, id string, from []order.Status, to order.Status) (*order.Order, bool, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, false, order.ErrNotFound
	}
	for _, s := range from {
		if o.Status == s {
			o.Status = to
			cp := *o
			return &cp, true, nil
		}
	}
	cp := *o
	return &cp, false, nil
}

func (m *memOrders) CreateReturn(_ context.Context, r *order.ReturnRecord) error {
	m.returns = append(m.returns, r)
	return nil
}

// --- Helpers ---

func newFixtures() (*memCoupons, *memOrders) {
	exp := time.Now().Add(24 * time.Hour)
	coupons := &memCoupons{rules: map[string]*coupon.Rule{
		"TENOFF": {
			Coupon: coupon.Coupon{
				ID: "c1", Code: "TENOFF", Type: coupon.TypePercentage,
				Value: decimal.NewFromInt(10), MinAmount: decimal.NewFromInt(200),
				MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(50)), ExpiresAt: exp,
			},
			Active: true,
		},
		"OLD": {
			Coupon: coupon.Coupon{ID: "c2", Code: "OLD", Type: coupon.TypeFixed, Value: decimal.NewFromInt(5),
				ExpiresAt: time.Now().Add(-time.Hour)},
			Active: true,
		},
	}}
	item := order.Item{ProductID: "p1", Name: "Mug", Quantity: 1, Price: decimal.NewFromInt(10)}
	orders := &memOrders{orders: map[string]*order.Order{
		"pending":   {ID: "pending", Status: order.StatusPending, Items: []order.Item{item}},
		"shipped":   {ID: "shipped", Status: order.StatusShipped, Items: []order.Item{item}},
		"delivered": {ID: "delivered", Status: order.StatusDelivered, Items: []order.Item{item}},
		"failed":    {ID: "failed", Status: order.StatusFailed, Items: []order.Item{item}},
	}}
	return coupons, orders
}

func newRouter(t *testing.T, coupons coupon.Repository, orders order.Repository) http.Handler {
	t.Helper()
	h, err := NewHandler(coupon.NewRepoValidator(coupons), order.NewService(orders), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, wire.Envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, rd))

	env, err := wire.DecodeEnvelope(jx.DecodeBytes(w.Body.Bytes()), nil)
	require.NoError(t, err, w.Body.String())
	return w, env
}

// --- Tests ---

func TestValidateCoupon(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "valid", body: `{"code":"tenoff","orderAmount":250}`, wantStatus: http.StatusOK},
		{name: "below minimum", body: `{"code":"TENOFF","orderAmount":150}`, wantStatus: http.StatusUnprocessableEntity, wantCode: wire.CodeMinimumNotMet},
		{name: "unknown", body: `{"code":"NOPE","orderAmount":150}`, wantStatus: http.StatusNotFound, wantCode: wire.CodeInvalidCoupon},
		{name: "expired", body: `{"code":"OLD","orderAmount":150}`, wantStatus: http.StatusUnprocessableEntity, wantCode: wire.CodeExpired},
		{name: "missing code", body: `{"orderAmount":150}`, wantStatus: http.StatusBadRequest, wantCode: wire.CodeBadRequest},
		{name: "negative amount", body: `{"code":"TENOFF","orderAmount":-1}`, wantStatus: http.StatusBadRequest, wantCode: wire.CodeBadRequest},
		{name: "malformed", body: `{"code":`, wantStatus: http.StatusBadRequest, wantCode: wire.CodeBadRequest},
	}

	coupons, orders := newFixtures()
	h := newRouter(t, coupons, orders)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/website/coupons/validate", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var v coupon.Validation
			env, err := wire.DecodeEnvelope(jx.DecodeBytes(w.Body.Bytes()), func(d *jx.Decoder) (err error) {
				v, err = wire.DecodeValidation(d)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, env.Code)
			if tt.wantStatus != http.StatusOK {
				assert.False(t, env.Success)
				assert.NotEmpty(t, env.Message)
				return
			}
			assert.True(t, env.Success)
			assert.Equal(t, "TENOFF", v.Code)
			assert.True(t, v.Savings.Equal(decimal.NewFromInt(25)))
		})
	}
}

func TestValidateCoupon_RepoFailureIsHidden(t *testing.T) {
	_, orders := newFixtures()
	h := newRouter(t, &memCoupons{err: errors.New("pq: connection reset")}, orders)

	w, env := do(t, h, http.MethodPost, "/website/coupons/validate", `{"code":"X","orderAmount":1}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, wire.CodeInternal, env.Code)
	assert.NotContains(t, env.Message, "pq")
}

func TestListActiveCoupons(t *testing.T) {
	coupons, orders := newFixtures()
	h := newRouter(t, coupons, orders)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/website/coupons/active", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got []coupon.Coupon
	_, err := wire.DecodeEnvelope(jx.DecodeBytes(w.Body.Bytes()), func(d *jx.Decoder) (err error) {
		got, err = wire.DecodeCoupons(d)
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 1, "expired coupon filtered")
	assert.Equal(t, "TENOFF", got[0].Code)
}

func TestOrderRoutes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "get", method: http.MethodGet, path: "/website/orders/pending", wantStatus: http.StatusOK},
		{name: "get missing", method: http.MethodGet, path: "/website/orders/nope", wantStatus: http.StatusNotFound, wantCode: wire.CodeNotFound},
		{name: "cancel pending", method: http.MethodPost, path: "/website/orders/pending/cancel", wantStatus: http.StatusOK},
		{name: "cancel shipped", method: http.MethodPost, path: "/website/orders/shipped/cancel", wantStatus: http.StatusConflict, wantCode: wire.CodeOrderDispatched},
		{name: "cancel failed", method: http.MethodPost, path: "/website/orders/failed/cancel", wantStatus: http.StatusUnprocessableEntity, wantCode: wire.CodeNotCancellable},
		{name: "return delivered", method: http.MethodPost, path: "/website/orders/delivered/return", body: `{"productId":"p1"}`, wantStatus: http.StatusCreated},
		{name: "return shipped", method: http.MethodPost, path: "/website/orders/shipped/return", body: `{"productId":"p1"}`, wantStatus: http.StatusUnprocessableEntity, wantCode: wire.CodeNotReturnable},
		{name: "return foreign product", method: http.MethodPost, path: "/website/orders/delivered/return", body: `{"productId":"p9"}`, wantStatus: http.StatusUnprocessableEntity, wantCode: wire.CodeNotInOrder},
		{name: "return bad refund", method: http.MethodPost, path: "/website/orders/delivered/return", body: `{"productId":"p1","refundMethod":"cash"}`, wantStatus: http.StatusBadRequest, wantCode: wire.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coupons, orders := newFixtures()
			h := newRouter(t, coupons, orders)

			w, env := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.Equal(t, tt.wantCode == "", env.Success)
		})
	}
}

func TestCancelTwice(t *testing.T) {
	coupons, orders := newFixtures()
	h := newRouter(t, coupons, orders)

	w, _ := do(t, h, http.MethodPost, "/website/orders/pending/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, env := do(t, h, http.MethodPost, "/website/orders/pending/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, wire.CodeAlreadyCancelled, env.Code)
}

// TestClientRoundTrip drives the client-side core against the real routes.
func TestClientRoundTrip(t *testing.T) {
	coupons, orders := newFixtures()
	srv := httptest.NewServer(newRouter(t, coupons, orders))
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL, client.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("manual code", func(t *testing.T) {
		sel := coupon.NewSelection(c)
		subtotal := decimal.NewFromInt(300)

		cp, err := sel.ApplyManualCode(ctx, "tenoff", subtotal)
		require.NoError(t, err)
		assert.Equal(t, "c1", cp.ID)
		assert.Equal(t, coupon.SourceManual, cp.Source)
		assert.True(t, sel.TotalSavings(subtotal).Equal(decimal.NewFromInt(30)))

		_, err = sel.ApplyManualCode(ctx, "OLD", subtotal)
		var rej *coupon.RejectedError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, "This coupon has expired.", rej.Error())
		assert.Len(t, sel.Selected(), 1, "rejection leaves selection untouched")
	})

	t.Run("cancel flow", func(t *testing.T) {
		o, err := c.GetOrder(ctx, "shipped")
		require.NoError(t, err)
		assert.Equal(t, order.ActionTrack, order.ResolveAction(*o).Kind)

		// Pretend the shopper's view is stale: the server still refuses.
		stale := *o
		stale.Status = order.StatusProcessing
		f := order.NewCancelFlow(stale, c, nil)
		require.NoError(t, f.Open())
		require.ErrorIs(t, f.Confirm(ctx), order.ErrDispatched)
		assert.Equal(t, order.CancelErrorDispatched, f.State())

		p, err := c.GetOrder(ctx, "pending")
		require.NoError(t, err)
		f = order.NewCancelFlow(*p, c, nil)
		require.NoError(t, f.Open())
		require.NoError(t, f.Confirm(ctx))
		assert.Equal(t, order.StatusCancelled, orders.orders["pending"].Status)
	})

	t.Run("return flow", func(t *testing.T) {
		o, err := c.GetOrder(ctx, "delivered")
		require.NoError(t, err)

		f := order.NewReturnFlow(*o, c)
		_, err = f.Submit(ctx, order.ReturnRequest{ProductID: "p1"})
		require.ErrorIs(t, err, order.ErrTermsNotAccepted)

		f.AcceptTerms(true)
		res, err := f.Submit(ctx, order.ReturnRequest{ProductID: "p1", Kind: order.KindExchange})
		require.NoError(t, err)
		assert.Equal(t, "Exchange request submitted.", res.Message)
		assert.Equal(t, order.DefaultReturnReason, res.Request.Reason)
		require.Len(t, orders.returns, 1)
	})
}
