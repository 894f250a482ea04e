package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the canonical order status. Raw status strings are converted
// with ParseStatus at the ingestion boundary and never compared directly.
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

var statusAliases = map[string]Status{
	"pending":    StatusPending,
	"confirmed":  StatusConfirmed,
	"processing": StatusProcessing,
	"shipped":    StatusShipped,
	"delivered":  StatusDelivered,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
	"failed":     StatusFailed,
}

// ParseStatus normalizes a raw status string from an external source.
// Unrecognized values map to StatusUnknown.
func ParseStatus(raw string) Status {
	if s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return StatusUnknown
}

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusFailed
}

// CanCancel reports whether an order in status s may still be cancelled.
func (s Status) CanCancel() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusProcessing
}

// CanReturn reports whether items of an order in status s may be returned.
func (s Status) CanReturn() bool {
	return s == StatusDelivered
}

// CanExchange reports whether items of an order in status s may be exchanged.
func (s Status) CanExchange() bool {
	return s == StatusDelivered
}

// CanTrack reports whether shipment tracking is meaningful for status s.
func (s Status) CanTrack() bool {
	return s == StatusShipped || s == StatusProcessing
}

// Dispatched reports whether the order has left the warehouse.
func (s Status) Dispatched() bool {
	return s == StatusShipped || s == StatusDelivered
}

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrDispatched is returned when a cancel is attempted on an order that
	// has already been handed to the delivery partner.
	ErrDispatched = errors.New("order already sent to delivery partner")
	// ErrAlreadyCancelled is returned when cancelling a cancelled order.
	ErrAlreadyCancelled = errors.New("order already cancelled")
	// ErrNotReturnable is returned when a return or exchange is requested
	// for an order that has not been delivered.
	ErrNotReturnable = errors.New("order is not eligible for return or exchange")
	// ErrTermsNotAccepted is returned when a return is submitted before the
	// return policy was acknowledged.
	ErrTermsNotAccepted = errors.New("return policy must be accepted")
	// ErrNotCancellable is returned when a terminal order other than a
	// cancelled one is asked to cancel.
	ErrNotCancellable = errors.New("order cannot be cancelled")
	// ErrInvalidReturn is returned for a malformed return request.
	ErrInvalidReturn = errors.New("invalid return request")
	// ErrSubmissionInFlight is returned when a submission is already running.
	ErrSubmissionInFlight = errors.New("submission already in progress")
)

// Order is a placed purchase as seen by the storefront.
type Order struct {
	ID        string
	Status    Status
	Items     []Item
	Total     decimal.Decimal
	Discounts decimal.Decimal
	Coupons   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a single line of an order.
type Item struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// HasProduct reports whether the order contains productID.
func (o *Order) HasProduct(productID string) bool {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

// Repository defines persistence operations for orders.
type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	// TransitionStatus moves the order to "to" only if its current status is
	// one of "from". It returns the order after the attempt and whether the
	// update was applied.
	TransitionStatus(ctx context.Context, id string, from []Status, to Status) (*Order, bool, error)
	CreateReturn(ctx context.Context, r *ReturnRecord) error
}
