package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/wire"
)

// ListActiveCoupons serves GET /website/coupons/active.
func (h *Handler) ListActiveCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.Active(r.Context())
	if err != nil {
		writeInternal(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Envelope{Success: true}, "data", func(e *jx.Encoder) {
		wire.EncodeCoupons(e, coupons)
	})
}

// ValidateCoupon serves POST /website/coupons/validate.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "Request body is too large or unreadable.")
		return
	}
	req, err := wire.DecodeValidateRequest(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "Malformed request body.")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "Coupon code is required.")
		return
	}
	if req.OrderAmount.IsNegative() {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "Order amount cannot be negative.")
		return
	}

	v, err := h.coupons.ValidateCoupon(ctx, req.Code, req.OrderAmount)
	if err != nil {
		status, code, msg := mapCouponError(err)
		h.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", code)))
		if status == http.StatusInternalServerError {
			writeInternal(ctx, w, err)
			return
		}
		writeError(w, status, code, msg)
		return
	}

	h.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "valid")))
	writeJSON(w, http.StatusOK, wire.Envelope{Success: true, Message: "Coupon applied."}, "data", func(e *jx.Encoder) {
		wire.EncodeValidation(e, *v)
	})
}

// mapCouponError converts validation errors to a status, error code and
// shopper-facing message.
func mapCouponError(err error) (int, string, string) {
	var minErr *coupon.MinimumNotMetError
	switch {
	case errors.As(err, &minErr):
		return http.StatusUnprocessableEntity, wire.CodeMinimumNotMet,
			"Add items worth " + minErr.MinAmount.StringFixed(2) + " or more to use this coupon."
	case errors.Is(err, coupon.ErrNotFound):
		return http.StatusNotFound, wire.CodeInvalidCoupon, "Invalid coupon code."
	case errors.Is(err, coupon.ErrExpired):
		return http.StatusUnprocessableEntity, wire.CodeExpired, "This coupon has expired."
	case errors.Is(err, coupon.ErrUsageLimitReached):
		return http.StatusUnprocessableEntity, wire.CodeUsageLimit, "This coupon has reached its usage limit."
	default:
		return http.StatusInternalServerError, wire.CodeInternal, ""
	}
}
