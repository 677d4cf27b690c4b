package errors

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a circuit breaker with max 3 failures
	cb := NewCircuitBreaker("provider", WithMaxFailures(3), WithResetTimeout(time.Second))

	// When: recording 3 failures
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return stderrors.New("boom") })
	}

	// Then: the circuit is open and calls are rejected without running
	assert.Equal(t, StateOpen, cb.State())
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	// Given: an open breaker with a controllable clock
	now := time.Now()
	cb := NewCircuitBreaker("provider", WithMaxFailures(1), WithResetTimeout(time.Minute))
	cb.now = func() time.Time { return now }
	_ = cb.Execute(func() error { return stderrors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	// When: the reset timeout elapses
	now = now.Add(2 * time.Minute)

	// Then: the breaker is half-open and a successful probe closes it
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_HalfOpenProbeReopensOnFailure(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("provider", WithMaxFailures(2), WithResetTimeout(time.Minute))
	cb.now = func() time.Time { return now }
	_ = cb.Execute(func() error { return stderrors.New("a") })
	_ = cb.Execute(func() error { return stderrors.New("b") })

	now = now.Add(2 * time.Minute)
	_ = cb.Execute(func() error { return stderrors.New("still down") })

	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("provider", WithMaxFailures(1), WithResetTimeout(time.Minute))
	cb.now = func() time.Time { return now }
	_ = cb.Execute(func() error { return stderrors.New("boom") })
	now = now.Add(2 * time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// While the probe is in flight a second call is rejected.
	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitExecute_IgnoredErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("provider", WithMaxFailures(1))
	ignoreCancel := func(err error) bool { return stderrors.Is(err, context.Canceled) }

	_, err := CircuitExecute(cb, func() (int, error) { return 0, context.Canceled }, ignoreCancel)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitExecute_ReturnsValue(t *testing.T) {
	cb := NewCircuitBreaker("provider")
	var calls atomic.Int32

	v, err := CircuitExecute(cb, func() (string, error) {
		calls.Add(1)
		return "ok", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
