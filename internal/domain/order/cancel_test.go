package order

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCanceller struct {
	result *CancelResult
	err    error
	calls  int
	// block, when set, holds the call until released.
	block   chan struct{}
	entered chan struct{}
}

func (m *mockCanceller) CancelOrder(_ context.Context, _ string) (*CancelResult, error) {
	m.calls++
	if m.entered != nil {
		close(m.entered)
	}
	if m.block != nil {
		<-m.block
	}
	return m.result, m.err
}

func TestCancelFlow_Success(t *testing.T) {
	c := &mockCanceller{result: &CancelResult{Message: "Order cancelled"}}
	var got *CancelResult
	f := NewCancelFlow(Order{ID: "o1", Status: StatusPending}, c, func(r *CancelResult) { got = r })

	assert.Equal(t, CancelIdle, f.State())
	require.NoError(t, f.Open())
	assert.Equal(t, CancelConfirming, f.State())

	require.NoError(t, f.Confirm(context.Background()))
	assert.Equal(t, CancelCancelled, f.State())
	assert.Equal(t, "Order cancelled", f.Message())
	assert.Equal(t, StatusCancelled, f.Order().Status)
	assert.Equal(t, 1, c.calls)
	require.NotNil(t, got)
}

func TestCancelFlow_ShippedNeverSubmits(t *testing.T) {
	c := &mockCanceller{}
	f := NewCancelFlow(Order{ID: "o1", Status: StatusShipped}, c, nil)
	require.NoError(t, f.Open())

	err := f.Confirm(context.Background())

	require.ErrorIs(t, err, ErrDispatched)
	assert.Equal(t, CancelErrorDispatched, f.State())
	assert.Equal(t, MessageDispatched, f.Message())
	assert.Zero(t, c.calls, "guard failure must not reach the server")
}

func TestCancelFlow_ServerDispatchConflict(t *testing.T) {
	c := &mockCanceller{err: errors.Wrap(ErrDispatched, "cancel order o1")}
	f := NewCancelFlow(Order{ID: "o1", Status: StatusProcessing}, c, nil)
	require.NoError(t, f.Open())

	err := f.Confirm(context.Background())

	require.ErrorIs(t, err, ErrDispatched)
	assert.Equal(t, CancelErrorDispatched, f.State())
	assert.Equal(t, MessageDispatched, f.Message())
}

func TestCancelFlow_GenericFailureAllowsRetry(t *testing.T) {
	c := &mockCanceller{err: errors.New("connection reset")}
	called := false
	f := NewCancelFlow(Order{ID: "o1", Status: StatusConfirmed}, c, func(*CancelResult) { called = true })
	require.NoError(t, f.Open())

	err := f.Confirm(context.Background())
	require.Error(t, err)
	assert.Equal(t, CancelFailed, f.State())
	assert.Equal(t, MessageTryAgain, f.Message())
	assert.Equal(t, StatusConfirmed, f.Order().Status, "order untouched on failure")
	assert.False(t, called)

	c.err = nil
	c.result = &CancelResult{}
	require.NoError(t, f.Confirm(context.Background()))
	assert.Equal(t, CancelCancelled, f.State())
	assert.Equal(t, MessageCancelled, f.Message())
	assert.Equal(t, 2, c.calls)
	assert.True(t, called)
}

func TestCancelFlow_InvalidTransitions(t *testing.T) {
	f := NewCancelFlow(Order{ID: "o1", Status: StatusPending}, &mockCanceller{result: &CancelResult{}}, nil)

	var trErr *TransitionError
	require.ErrorAs(t, f.Confirm(context.Background()), &trErr)
	assert.Equal(t, CancelIdle, trErr.From)

	require.NoError(t, f.Open())
	require.NoError(t, f.Confirm(context.Background()))

	require.ErrorAs(t, f.Open(), &trErr)
	assert.Equal(t, CancelCancelled, trErr.From)
	require.ErrorAs(t, f.Confirm(context.Background()), &trErr)
}

func TestCancelFlow_CloseResetsToIdle(t *testing.T) {
	f := NewCancelFlow(Order{ID: "o1", Status: StatusPending}, &mockCanceller{}, nil)
	require.NoError(t, f.Open())
	require.NoError(t, f.Close())
	assert.Equal(t, CancelIdle, f.State())
}

func TestCancelFlow_SingleSubmissionInFlight(t *testing.T) {
	c := &mockCanceller{
		result:  &CancelResult{},
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	f := NewCancelFlow(Order{ID: "o1", Status: StatusPending}, c, nil)
	require.NoError(t, f.Open())

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = f.Confirm(context.Background())
	}()

	<-c.entered
	assert.Equal(t, CancelSubmitting, f.State())
	require.ErrorIs(t, f.Confirm(context.Background()), ErrSubmissionInFlight)
	require.ErrorIs(t, f.Close(), ErrSubmissionInFlight)

	close(c.block)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, CancelCancelled, f.State())
}

func TestCancelState_String(t *testing.T) {
	assert.Equal(t, "error_dispatched", CancelErrorDispatched.String())
	assert.Equal(t, "CancelState(42)", CancelState(42).String())
}

func TestCancelFlow_AlreadyCancelledOnServer(t *testing.T) {
	c := &mockCanceller{err: errors.Wrap(ErrAlreadyCancelled, "status 409")}
	called := false
	f := NewCancelFlow(Order{ID: "o1", Status: StatusConfirmed}, c, func(*CancelResult) { called = true })
	require.NoError(t, f.Open())

	err := f.Confirm(context.Background())

	require.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, CancelCancelled, f.State())
	assert.Equal(t, MessageAlreadyCancelled, f.Message())
	assert.Equal(t, StatusCancelled, f.Order().Status)
	assert.False(t, called)

	var tErr *TransitionError
	require.ErrorAs(t, f.Confirm(context.Background()), &tErr, "a settled flow cannot be confirmed again")
}
