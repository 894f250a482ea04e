package order

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
)

// CancelState is a state of the cancel confirmation flow.
type CancelState int

const (
	CancelIdle CancelState = iota
	CancelConfirming
	CancelSubmitting
	CancelErrorDispatched
	CancelCancelled
	// CancelFailed covers failures that are not a dispatch conflict, such as
	// a network error. The shopper may confirm again.
	CancelFailed
)

func (s CancelState) String() string {
	switch s {
	case CancelIdle:
		return "idle"
	case CancelConfirming:
		return "confirming"
	case CancelSubmitting:
		return "submitting"
	case CancelErrorDispatched:
		return "error_dispatched"
	case CancelCancelled:
		return "cancelled"
	case CancelFailed:
		return "failed"
	default:
		return fmt.Sprintf("CancelState(%d)", int(s))
	}
}

// User-facing messages shown by the cancel flow.
const (
	MessageCancelled  = "Your order has been cancelled."
	MessageDispatched = "This order has already been sent to our delivery partner and can no longer be cancelled."
	MessageTryAgain   = "We could not cancel your order right now. Please try again."

	// MessageAlreadyCancelled is shown when the server reports the order
	// was cancelled by an earlier request.
	MessageAlreadyCancelled = "This order has already been cancelled."
)

// TransitionError reports an event that is not valid in the current state.
type TransitionError struct {
	From  CancelState
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Event, e.From)
}

// CancelResult is the server's acknowledgement of a cancellation.
type CancelResult struct {
	Message string
	Order   *Order
}

// Canceller submits a cancellation to the authoritative backend.
type Canceller interface {
	CancelOrder(ctx context.Context, orderID string) (*CancelResult, error)
}

// CancelFlow drives the cancel confirmation modal for one order.
//
//	Idle -> Confirming -> Submitting -> Cancelled
//	                  \-> ErrorDispatched (guard failed or dispatch conflict)
//	                       Submitting -> Failed -> Submitting (retry)
type CancelFlow struct {
	order     Order
	canceller Canceller
	onSuccess func(*CancelResult)

	mu      sync.Mutex
	state   CancelState
	message string
	lastErr error
}

// NewCancelFlow creates an idle flow. onSuccess, if non-nil, is called once
// after the server accepts the cancellation.
func NewCancelFlow(o Order, c Canceller, onSuccess func(*CancelResult)) *CancelFlow {
	return &CancelFlow{
		order:     o,
		canceller: c,
		onSuccess: onSuccess,
	}
}

// Open shows the confirmation modal.
func (f *CancelFlow) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case CancelIdle, CancelFailed, CancelErrorDispatched:
		f.state = CancelConfirming
		f.message = ""
		return nil
	case CancelConfirming:
		return nil
	default:
		return &TransitionError{From: f.state, Event: "open"}
	}
}

// Close dismisses the modal. A running submission cannot be dismissed.
func (f *CancelFlow) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case CancelSubmitting:
		return ErrSubmissionInFlight
	case CancelCancelled:
		return nil
	default:
		f.state = CancelIdle
		return nil
	}
}

// Confirm submits the cancellation. The returned error is nil on success;
// otherwise State and Message describe what the shopper should see.
func (f *CancelFlow) Confirm(ctx context.Context) error {
	f.mu.Lock()
	switch f.state {
	case CancelConfirming, CancelFailed:
	case CancelSubmitting:
		f.mu.Unlock()
		return ErrSubmissionInFlight
	default:
		from := f.state
		f.mu.Unlock()
		return &TransitionError{From: from, Event: "confirm"}
	}

	if !f.order.Status.CanCancel() {
		f.state = CancelErrorDispatched
		f.message = MessageDispatched
		f.lastErr = ErrDispatched
		f.mu.Unlock()
		return ErrDispatched
	}

	f.state = CancelSubmitting
	f.mu.Unlock()

	res, err := f.canceller.CancelOrder(ctx, f.order.ID)

	f.mu.Lock()
	f.lastErr = err
	switch {
	case err == nil:
		f.state = CancelCancelled
		f.message = MessageCancelled
		if res != nil && res.Message != "" {
			f.message = res.Message
		}
		f.order.Status = StatusCancelled
	case errors.Is(err, ErrDispatched):
		f.state = CancelErrorDispatched
		f.message = MessageDispatched
	case errors.Is(err, ErrAlreadyCancelled):
		f.state = CancelCancelled
		f.message = MessageAlreadyCancelled
		f.order.Status = StatusCancelled
	default:
		f.state = CancelFailed
		f.message = MessageTryAgain
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if f.onSuccess != nil {
		f.onSuccess(res)
	}
	return nil
}

// State returns the current flow state.
func (f *CancelFlow) State() CancelState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Message returns the user-facing message for the current state.
func (f *CancelFlow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Err returns the error from the last submission attempt.
func (f *CancelFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Order returns the order as last known by the flow.
func (f *CancelFlow) Order() Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order
}
