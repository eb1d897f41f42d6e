package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-search-service/src/helpers"
)

// -----------------------------------------------------------------------------

func TestRateLimiterWindow(t *testing.T) {
	current := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, 60*time.Second)
	rl.now = func() time.Time { return current }

	require.NoError(t, rl.Acquire())
	require.NoError(t, rl.Acquire())
	require.NoError(t, rl.Acquire())

	err := rl.Acquire()
	require.Error(t, err)

	var rlErr *helpers.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, 3, rlErr.Current)
	assert.Equal(t, 3, rlErr.Limit)

	// once the window slides past the first requests, admission resumes
	current = current.Add(61 * time.Second)
	assert.NoError(t, rl.Acquire())

	usage := rl.CurrentUsage()
	assert.Equal(t, 1, usage.Current)
	assert.Equal(t, 3, usage.Limit)
	assert.Equal(t, 60, usage.WindowSeconds)
}

// -----------------------------------------------------------------------------

func TestRateLimiterPartialSlide(t *testing.T) {
	current := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 60*time.Second)
	rl.now = func() time.Time { return current }

	require.NoError(t, rl.Acquire())
	current = current.Add(40 * time.Second)
	require.NoError(t, rl.Acquire())
	require.Error(t, rl.Acquire())

	// first timestamp ages out, second is still inside the window
	current = current.Add(30 * time.Second)
	require.NoError(t, rl.Acquire())
	require.Error(t, rl.Acquire())
}

// -----------------------------------------------------------------------------

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	require.NoError(t, rl.Acquire())
	require.Error(t, rl.Acquire())

	rl.Reset()
	assert.NoError(t, rl.Acquire())
}
