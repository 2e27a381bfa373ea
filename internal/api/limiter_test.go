package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterStore_SameKeySameLimiter(t *testing.T) {
	s := NewLimiterStore(10, 1)
	assert.Same(t, s.Get("k"), s.Get("k"))
	assert.NotSame(t, s.Get("k"), s.Get("other"))
}

func TestLimiterStore_AllowReportsWait(t *testing.T) {
	s := NewLimiterStore(1, 1)

	ok, wait := s.Allow("k")
	require.True(t, ok)
	assert.Zero(t, wait)

	ok, wait = s.Allow("k")
	require.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Second)
}

func TestLimiterStore_CleanupRemovesIdleEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewLimiterStore(10, 1, WithIdleTTL(time.Minute), WithCleanupEvery(0))
	s.now = func() time.Time { return now }

	before := s.Get("k")
	now = now.Add(2 * time.Minute)
	s.Cleanup()

	assert.NotSame(t, before, s.Get("k"))
}

func TestLimiterStore_JanitorDisabled(t *testing.T) {
	s := NewLimiterStore(10, 1, WithCleanupEvery(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx)
}
