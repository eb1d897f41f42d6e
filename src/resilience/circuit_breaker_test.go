package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-search-service/src/helpers"
)

// -----------------------------------------------------------------------------

var errUpstream = errors.New("upstream boom")

func newTestBreaker(threshold int, timeout time.Duration) (*CircuitBreaker, *time.Time) {
	current := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test-provider", threshold, timeout, nil)
	cb.now = func() time.Time { return current }
	return cb, &current
}

// -----------------------------------------------------------------------------

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second)

	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return errUpstream })
		require.ErrorIs(t, err, errUpstream)
	}

	status := cb.Status()
	assert.Equal(t, string(StateOpen), status.State)
	assert.Equal(t, 3, status.FailureCount)

	// while open the wrapped function is never invoked
	invoked := false
	err := cb.Call(func() error { invoked = true; return nil })
	var openErr *helpers.CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "test-provider", openErr.Name)
	assert.False(t, invoked)
}

// -----------------------------------------------------------------------------

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb, current := newTestBreaker(2, 30*time.Second)

	cb.Call(func() error { return errUpstream })
	cb.Call(func() error { return errUpstream })
	require.Equal(t, string(StateOpen), cb.Status().State)

	// trial call succeeds once the recovery timeout elapses
	*current = current.Add(31 * time.Second)
	err := cb.Call(func() error { return nil })
	require.NoError(t, err)

	status := cb.Status()
	assert.Equal(t, string(StateClosed), status.State)
	assert.Equal(t, 0, status.FailureCount)
}

// -----------------------------------------------------------------------------

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, current := newTestBreaker(1, 30*time.Second)

	cb.Call(func() error { return errUpstream })
	require.Equal(t, string(StateOpen), cb.Status().State)

	*current = current.Add(31 * time.Second)
	err := cb.Call(func() error { return errUpstream })
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, string(StateOpen), cb.Status().State)

	// failed trial resets the recovery timer: still fail-fast before timeout
	*current = current.Add(29 * time.Second)
	var openErr *helpers.CircuitOpenError
	require.ErrorAs(t, cb.Call(func() error { return nil }), &openErr)
}

// -----------------------------------------------------------------------------

func TestBreakerSuccessResetsConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)

	cb.Call(func() error { return errUpstream })
	cb.Call(func() error { return errUpstream })
	require.NoError(t, cb.Call(func() error { return nil }))

	// the counter tracks consecutive failures only
	cb.Call(func() error { return errUpstream })
	cb.Call(func() error { return errUpstream })
	assert.Equal(t, string(StateClosed), cb.Status().State)
}

// -----------------------------------------------------------------------------

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	cb, _ := newTestBreaker(1, 30*time.Second)

	assert.Panics(t, func() {
		cb.Call(func() error { panic("upstream blew up") })
	})
	assert.Equal(t, string(StateOpen), cb.Status().State)
}

// -----------------------------------------------------------------------------

func TestBreakerPanicDuringTrialReleasesSlot(t *testing.T) {
	cb, current := newTestBreaker(1, 30*time.Second)

	cb.Call(func() error { return errUpstream })
	require.Equal(t, string(StateOpen), cb.Status().State)

	// trial call panics: breaker must reopen, not wedge half-open
	*current = current.Add(31 * time.Second)
	assert.Panics(t, func() {
		cb.Call(func() error { panic("upstream blew up") })
	})
	require.Equal(t, string(StateOpen), cb.Status().State)

	// next trial after the timeout is admitted and can recover
	*current = current.Add(31 * time.Second)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, string(StateClosed), cb.Status().State)
}

// -----------------------------------------------------------------------------

func TestBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)

	cb.Call(func() error { return errUpstream })
	require.Equal(t, string(StateOpen), cb.Status().State)

	cb.Reset()
	status := cb.Status()
	assert.Equal(t, string(StateClosed), status.State)
	assert.Equal(t, 0, status.FailureCount)
	assert.NoError(t, cb.Call(func() error { return nil }))
}
