package order

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// RequestKind distinguishes returns from exchanges.
type RequestKind string

const (
	KindReturn   RequestKind = "return"
	KindExchange RequestKind = "exchange"
)

// RefundMethod is how a return is refunded.
type RefundMethod string

const (
	RefundOriginalPayment RefundMethod = "original_payment"
	RefundStoreCredit     RefundMethod = "store_credit"
	RefundBankTransfer    RefundMethod = "bank_transfer"
)

// Valid reports whether m is a known refund method.
func (m RefundMethod) Valid() bool {
	switch m {
	case RefundOriginalPayment, RefundStoreCredit, RefundBankTransfer:
		return true
	}
	return false
}

// DefaultReturnReason is used when the shopper gives no reason.
const DefaultReturnReason = "Product not as expected"

// ReturnRequest is the payload of a return or exchange submission.
type ReturnRequest struct {
	ProductID    string
	Reason       string
	RefundMethod RefundMethod
	Kind         RequestKind
}

// WithDefaults fills in the default reason, refund method and kind.
func (r ReturnRequest) WithDefaults() ReturnRequest {
	if strings.TrimSpace(r.Reason) == "" {
		r.Reason = DefaultReturnReason
	}
	if r.RefundMethod == "" {
		r.RefundMethod = RefundOriginalPayment
	}
	if r.Kind == "" {
		r.Kind = KindReturn
	}
	return r
}

// ReturnRecord is a stored return or exchange request.
type ReturnRecord struct {
	ID           string
	OrderID      string
	ProductID    string
	Reason       string
	RefundMethod RefundMethod
	Kind         RequestKind
	Status       string
	CreatedAt    time.Time
}

// ReturnResult is the server's acknowledgement of a return request.
type ReturnResult struct {
	Message string
	Request ReturnRecord
}

// ReturnSubmitter submits return requests to the authoritative backend.
type ReturnSubmitter interface {
	SubmitReturn(ctx context.Context, orderID string, req ReturnRequest) (*ReturnResult, error)
}

// ReturnFlow drives the return / exchange modal for one order. Submission
// requires the return policy to be accepted first, and only one submission
// may be in flight at a time.
type ReturnFlow struct {
	order     Order
	submitter ReturnSubmitter

	mu         sync.Mutex
	accepted   bool
	submitting bool
	result     *ReturnResult
}

// NewReturnFlow creates a flow for order o.
func NewReturnFlow(o Order, s ReturnSubmitter) *ReturnFlow {
	return &ReturnFlow{order: o, submitter: s}
}

// AcceptTerms records the shopper's acknowledgement of the return policy.
func (f *ReturnFlow) AcceptTerms(accepted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = accepted
}

// Submit validates and sends the request. Form input is never cleared on
// failure, so the caller can resubmit.
func (f *ReturnFlow) Submit(ctx context.Context, req ReturnRequest) (*ReturnResult, error) {
	req = req.WithDefaults()

	f.mu.Lock()
	switch {
	case f.submitting:
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case !f.accepted:
		f.mu.Unlock()
		return nil, ErrTermsNotAccepted
	case req.Kind == KindExchange && !f.order.Status.CanExchange(),
		req.Kind != KindExchange && !f.order.Status.CanReturn():
		f.mu.Unlock()
		return nil, ErrNotReturnable
	case req.ProductID == "":
		f.mu.Unlock()
		return nil, errors.New("product id required")
	case !req.RefundMethod.Valid():
		f.mu.Unlock()
		return nil, errors.Errorf("unsupported refund method %q", req.RefundMethod)
	}
	f.submitting = true
	f.mu.Unlock()

	res, err := f.submitter.SubmitReturn(ctx, f.order.ID, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		return nil, err
	}
	f.result = res
	return res, nil
}

// Submitting reports whether a submission is in flight.
func (f *ReturnFlow) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Result returns the last successful result, if any.
func (f *ReturnFlow) Result() *ReturnResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}
