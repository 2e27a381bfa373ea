package sweeper

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"raffle/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type countingStore struct {
	calls atomic.Int32
	err   error
}

func (s *countingStore) ReleaseExpiredSlots(context.Context, time.Time) (int64, error) {
	s.calls.Add(1)
	return 0, s.err
}

func TestSweep_ReleasesOnlyLapsedHolds(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSqliteStorage(filepath.Join(t.TempDir(), "sweep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	drawing := &storage.Drawing{
		OwnerID:           "owner",
		Title:             "sweep",
		WinnerSelection:   storage.WinnerSelectionSystem,
		PlayWithNumbers:   true,
		QuantityOfNumbers: 5,
		WinnersAmount:     1,
		EndAt:             baseTime.Add(time.Hour),
	}
	require.NoError(t, store.CreateDrawing(ctx, drawing))

	for n, ttl := range map[int]time.Duration{1: time.Minute, 2: time.Minute, 3: 10 * time.Minute} {
		ok, err := store.ClaimSlot(ctx, drawing.ID, n, "hold", baseTime, baseTime.Add(ttl))
		require.NoError(t, err)
		require.True(t, ok)
	}

	s := NewSweeper(ctx, store, WithClock(func() time.Time { return baseTime.Add(5 * time.Minute) }))
	released, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)

	slot, err := store.GetSlot(ctx, drawing.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, storage.SlotReserved, slot.Status)

	released, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestSweep_Error(t *testing.T) {
	s := NewSweeper(context.Background(), &countingStore{err: errors.New("disk full")})
	_, err := s.Sweep(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestStart_RunsOnSchedule(t *testing.T) {
	store := &countingStore{}
	s := NewSweeper(context.Background(), store)

	require.NoError(t, s.Start("@every 1s"))
	t.Cleanup(s.Stop)

	require.Eventually(t, func() bool { return store.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	assert.Error(t, s.Start("@every 1s"))
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := NewSweeper(context.Background(), &countingStore{})
	assert.Error(t, s.Start("every now and then"))
	s.Stop()
}
