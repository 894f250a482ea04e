package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/wire"
)

// GetOrder serves GET /website/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Envelope{Success: true}, "data", func(e *jx.Encoder) {
		wire.EncodeOrder(e, *o)
	})
}

// CancelOrder serves POST /website/orders/{id}/cancel.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o, err := h.orders.Cancel(ctx, chi.URLParam(r, "id"))
	h.countTransition(r, "cancel", err)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Envelope{Success: true, Message: order.MessageCancelled}, "data", func(e *jx.Encoder) {
		wire.EncodeOrder(e, *o)
	})
}

// RequestReturn serves POST /website/orders/{id}/return.
func (h *Handler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "Request body is too large or unreadable.")
		return
	}
	req, err := wire.DecodeReturnRequest(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, wire.CodeBadRequest, "Malformed request body.")
		return
	}

	rec, err := h.orders.RequestReturn(r.Context(), chi.URLParam(r, "id"), req)
	h.countTransition(r, string(req.WithDefaults().Kind), err)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	msg := "Return request submitted."
	if rec.Kind == order.KindExchange {
		msg = "Exchange request submitted."
	}
	writeJSON(w, http.StatusCreated, wire.Envelope{Success: true, Message: msg}, "request", func(e *jx.Encoder) {
		wire.EncodeReturnRecord(e, *rec)
	})
}

func (h *Handler) countTransition(r *http.Request, action string, err error) {
	result := "ok"
	if err != nil {
		_, result, _ = mapOrderError(err)
	}
	h.transitions.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("result", result),
	))
}

func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapOrderError(err)
	if status == http.StatusInternalServerError {
		writeInternal(r.Context(), w, err)
		return
	}
	writeError(w, status, code, msg)
}

// mapOrderError converts order errors to a status, error code and
// shopper-facing message.
func mapOrderError(err error) (int, string, string) {
	var pErr *order.ProductNotInOrderError
	switch {
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, wire.CodeNotFound, "Order not found."
	case errors.Is(err, order.ErrDispatched):
		return http.StatusConflict, wire.CodeOrderDispatched, order.MessageDispatched
	case errors.Is(err, order.ErrAlreadyCancelled):
		return http.StatusConflict, wire.CodeAlreadyCancelled, "This order is already cancelled."
	case errors.Is(err, order.ErrNotCancellable):
		return http.StatusUnprocessableEntity, wire.CodeNotCancellable, "This order can no longer be cancelled."
	case errors.Is(err, order.ErrNotReturnable):
		return http.StatusUnprocessableEntity, wire.CodeNotReturnable, "Only delivered orders can be returned or exchanged."
	case errors.As(err, &pErr):
		return http.StatusUnprocessableEntity, wire.CodeNotInOrder, "This product is not part of the order."
	case errors.Is(err, order.ErrInvalidReturn):
		return http.StatusBadRequest, wire.CodeBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, wire.CodeInternal, ""
	}
}
