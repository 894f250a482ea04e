package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ProductNotInOrderError indicates a return names a product the order lacks.
type ProductNotInOrderError struct {
	OrderID   string
	ProductID string
}

func (e *ProductNotInOrderError) Error() string {
	return fmt.Sprintf("product %s is not part of order %s", e.ProductID, e.OrderID)
}

var cancellable = []Status{StatusPending, StatusConfirmed, StatusProcessing}

// Service is the authoritative order lifecycle: it decides whether a
// requested transition is allowed and applies it atomically.
type Service struct {
	orders Repository
	now    func() time.Time
	newID  func() string
}

// NewService creates an order Service backed by the given repository.
func NewService(orders Repository) *Service {
	return &Service{
		orders: orders,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Get returns the order with the given ID.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// Cancel cancels the order if it has not been dispatched yet. The status
// check and update happen in one conditional write, so concurrent cancels
// cannot both succeed.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	o, ok, err := s.orders.TransitionStatus(ctx, id, cancellable, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "cancel order")
	}
	if ok {
		return o, nil
	}

	switch {
	case o.Status == StatusCancelled:
		return nil, ErrAlreadyCancelled
	case o.Status.Dispatched():
		return nil, ErrDispatched
	default:
		return nil, errors.Wrapf(ErrNotCancellable, "status %s", o.Status)
	}
}

// RequestReturn records a return or exchange request for a delivered order.
func (s *Service) RequestReturn(ctx context.Context, id string, req ReturnRequest) (*ReturnRecord, error) {
	req = req.WithDefaults()
	if !req.RefundMethod.Valid() {
		return nil, errors.Wrapf(ErrInvalidReturn, "unsupported refund method %q", req.RefundMethod)
	}
	if req.Kind != KindReturn && req.Kind != KindExchange {
		return nil, errors.Wrapf(ErrInvalidReturn, "unsupported request kind %q", req.Kind)
	}

	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanReturn() {
		return nil, ErrNotReturnable
	}
	if !o.HasProduct(req.ProductID) {
		return nil, &ProductNotInOrderError{OrderID: id, ProductID: req.ProductID}
	}

	rec := &ReturnRecord{
		ID:           s.newID(),
		OrderID:      id,
		ProductID:    req.ProductID,
		Reason:       req.Reason,
		RefundMethod: req.RefundMethod,
		Kind:         req.Kind,
		Status:       "requested",
		CreatedAt:    s.now().UTC(),
	}
	if err := s.orders.CreateReturn(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "create return")
	}
	return rec, nil
}
