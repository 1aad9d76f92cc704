package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errSMTP = errors.New("smtp down")

func newTestBreaker(now *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
	})
	cb.now = func() time.Time { return *now }
	return cb
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)
	fail := func() error { return errSMTP }

	assert.ErrorIs(t, cb.Execute(fail), errSMTP)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), errSMTP)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.False(t, called)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errSMTP })
	}
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(time.Minute)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errSMTP })
	}

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, cb.Execute(func() error { return errSMTP }), errSMTP)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, "open", cb.State().String())
}

func TestBreakerReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errSMTP })
	}
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
}
