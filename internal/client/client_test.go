package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/internal/wire"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/api")
	require.Error(t, err)
}

func TestValidateCoupon_Success(t *testing.T) {
	var gotReq wire.ValidateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/website/coupons/validate", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		b, _ := io.ReadAll(r.Body)
		var err error
		gotReq, err = wire.DecodeValidateRequest(jx.DecodeBytes(b))
		assert.NoError(t, err)

		reply(http.StatusOK, `{"success":true,"data":{"id":"c1","code":"WELCOME",
			"discountType":"percentage","discountValue":15,"minAmount":50,"maxDiscount":20,"savings":18}}`)(w, r)
	}, WithSession(session.NewMemory("tok")))

	v, err := c.ValidateCoupon(context.Background(), " welcome ", decimal.NewFromInt(120))
	require.NoError(t, err)

	assert.Equal(t, "WELCOME", gotReq.Code)
	assert.True(t, gotReq.OrderAmount.Equal(decimal.NewFromInt(120)))

	cp := v.Coupon()
	assert.Equal(t, "c1", cp.ID)
	assert.Equal(t, coupon.SourceManual, cp.Source)
	assert.True(t, cp.MinAmount.Equal(decimal.NewFromInt(50)))
	assert.True(t, cp.MaxDiscount.Valid)
}

func TestValidateCoupon_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		unavailable bool
	}{
		{
			name:        "expired",
			status:      http.StatusUnprocessableEntity,
			body:        `{"success":false,"message":"This coupon expired on 1 Jan","code":"coupon_expired"}`,
			wantMessage: "This coupon expired on 1 Jan",
		},
		{
			name:        "unknown code",
			status:      http.StatusNotFound,
			body:        `{"success":false,"message":"Invalid coupon code"}`,
			wantMessage: "Invalid coupon code",
		},
		{
			name:        "soft failure on 200",
			status:      http.StatusOK,
			body:        `{"success":false,"message":"Minimum order is 500"}`,
			wantMessage: "Minimum order is 500",
		},
		{
			name:        "server error",
			status:      http.StatusBadGateway,
			body:        `<html>bad gateway</html>`,
			unavailable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, reply(tt.status, tt.body))

			_, err := c.ValidateCoupon(context.Background(), "X", decimal.NewFromInt(10))
			require.Error(t, err)

			if tt.unavailable {
				require.ErrorIs(t, err, coupon.ErrValidationUnavailable)
				return
			}
			var rej *coupon.RejectedError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tt.wantMessage, rej.Error())
		})
	}
}

func TestValidateCoupon_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	srv.Close()

	_, err = c.ValidateCoupon(context.Background(), "X", decimal.NewFromInt(10))
	require.ErrorIs(t, err, coupon.ErrValidationUnavailable)
}

func TestUnauthorized_ClearsSession(t *testing.T) {
	s := session.NewMemory("stale")
	c := newTestClient(t, reply(http.StatusUnauthorized, `{"success":false,"message":"token expired"}`), WithSession(s))

	_, err := c.ListActiveCoupons(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	_, ok := s.Token()
	assert.False(t, ok)
}

func TestListActiveCoupons(t *testing.T) {
	c := newTestClient(t, reply(http.StatusOK, `{"success":true,"data":[
		{"id":"a","code":"FLAT50","type":"fixed","value":50,"minAmount":100}]}`))

	got, err := c.ListActiveCoupons(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, coupon.SourceCatalog, got[0].Source)
	assert.Equal(t, coupon.TypeFixed, got[0].Type)
}

func TestGetOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/website/orders/o1" {
			reply(http.StatusNotFound, `{"success":false,"message":"Order not found"}`)(w, r)
			return
		}
		reply(http.StatusOK, `{"success":true,"data":{"id":"o1","status":"SHIPPED","total":10}}`)(w, r)
	})

	o, err := c.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, o.Status)

	_, err = c.GetOrder(context.Background(), "o2")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestCancelOrder(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "accepted",
			status: http.StatusOK,
			body:   `{"success":true,"message":"Order cancelled","data":{"id":"o1","status":"cancelled"}}`,
		},
		{
			name:    "dispatched conflict",
			status:  http.StatusConflict,
			body:    `{"success":false,"message":"Order already shipped","code":"order_dispatched"}`,
			wantErr: order.ErrDispatched,
		},
		{
			name:    "bad request",
			status:  http.StatusBadRequest,
			body:    `{"success":false,"message":"cannot cancel"}`,
			wantErr: order.ErrDispatched,
		},
		{
			name:    "already cancelled",
			status:  http.StatusConflict,
			body:    `{"success":false,"code":"already_cancelled"}`,
			wantErr: order.ErrAlreadyCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/website/orders/o1/cancel", r.URL.Path)
				reply(tt.status, tt.body)(w, r)
			})

			res, err := c.CancelOrder(context.Background(), "o1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Order cancelled", res.Message)
			require.NotNil(t, res.Order)
			assert.Equal(t, order.StatusCancelled, res.Order.Status)
		})
	}
}

func TestCancelOrder_ServerErrorIsRetryable(t *testing.T) {
	c := newTestClient(t, reply(http.StatusInternalServerError, `{"success":false,"message":"boom"}`))

	f := order.NewCancelFlow(order.Order{ID: "o1", Status: order.StatusPending}, c, nil)
	require.NoError(t, f.Open())
	require.Error(t, f.Confirm(context.Background()))
	assert.Equal(t, order.CancelFailed, f.State())
	assert.Equal(t, order.MessageTryAgain, f.Message())
}

func TestSubmitReturn(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		req, err := wire.DecodeReturnRequest(jx.DecodeBytes(b))
		assert.NoError(t, err)
		assert.Equal(t, order.KindExchange, req.Kind)

		reply(http.StatusCreated, `{"success":true,"message":"Exchange request submitted",
			"request":{"id":"r1","orderId":"o1","productId":"p1","type":"exchange","status":"requested"}}`)(w, r)
	})

	res, err := c.SubmitReturn(context.Background(), "o1", order.ReturnRequest{
		ProductID: "p1", Kind: order.KindExchange,
	}.WithDefaults())
	require.NoError(t, err)
	assert.Equal(t, "Exchange request submitted", res.Message)
	assert.Equal(t, "r1", res.Request.ID)
	assert.Equal(t, order.KindExchange, res.Request.Kind)
}

func TestValidateCoupon_KeepsTransportCause(t *testing.T) {
	c := newTestClient(t, reply(http.StatusOK, `{"success":true}`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ValidateCoupon(ctx, "X", decimal.NewFromInt(10))
	require.ErrorIs(t, err, coupon.ErrValidationUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidateCoupon_UnknownTypeIsUnavailable(t *testing.T) {
	c := newTestClient(t, reply(http.StatusOK, `{"success":true,"data":{"code":"X","discountType":"bogo","discountValue":1}}`))

	_, err := c.ValidateCoupon(context.Background(), "X", decimal.NewFromInt(10))
	require.ErrorIs(t, err, coupon.ErrValidationUnavailable)
	require.ErrorIs(t, err, coupon.ErrUnknownType)
}

func TestSelection_ManualCodeFromServer(t *testing.T) {
	c := newTestClient(t, reply(http.StatusOK,
		`{"success":true,"data":{"code":"SAVE10","discountType":"Percentage","discountValue":10}}`))

	sel := coupon.NewSelection(c)
	got, err := sel.ApplyManualCode(context.Background(), "save10", decimal.NewFromInt(100))
	require.NoError(t, err)

	assert.Equal(t, "SAVE10", got.Code)
	assert.Equal(t, coupon.SourceManual, got.Source)
	assert.True(t, sel.TotalSavings(decimal.NewFromInt(100)).Equal(decimal.NewFromInt(10)))
}

func TestCancelOrder_AlreadyCancelledSettlesFlow(t *testing.T) {
	c := newTestClient(t, reply(http.StatusConflict, `{"success":false,"code":"already_cancelled"}`))

	f := order.NewCancelFlow(order.Order{ID: "o1", Status: order.StatusPending}, c, nil)
	require.NoError(t, f.Open())
	require.ErrorIs(t, f.Confirm(context.Background()), order.ErrAlreadyCancelled)
	assert.Equal(t, order.CancelCancelled, f.State())
	assert.Equal(t, order.MessageAlreadyCancelled, f.Message())
	assert.Equal(t, order.StatusCancelled, f.Order().Status)
}
