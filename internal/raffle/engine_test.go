package raffle

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"raffle/internal/stats"
	"raffle/internal/storage"

	"github.com/stretchr/testify/require"
)

const owner = "host-1"

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seededRandomizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newSeededRandomizer(seed uint64) *seededRandomizer {
	return &seededRandomizer{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *seededRandomizer) Intn(n int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n), nil
}

type testEnv struct {
	engine *Engine
	store  *storage.SqliteStorage
	clock  *fakeClock
	stats  *stats.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewSqliteStorage(filepath.Join(t.TempDir(), "raffle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &fakeClock{now: baseTime}
	counters := stats.NewMemoryStore()
	engine := New(store,
		WithClock(clock.Now),
		WithRandomizer(newSeededRandomizer(42)),
		WithStats(counters),
	)
	return &testEnv{engine: engine, store: store, clock: clock, stats: counters}
}

type drawingOption func(*DrawingDraft)

func paid() drawingOption {
	return func(d *DrawingDraft) { d.IsPaid = true }
}

func winners(n int) drawingOption {
	return func(d *DrawingDraft) { d.WinnersAmount = n }
}

func manual() drawingOption {
	return func(d *DrawingDraft) { d.WinnerSelection = storage.WinnerSelectionManual }
}

func (env *testEnv) createDrawing(t *testing.T, quantity int, opts ...drawingOption) *storage.Drawing {
	t.Helper()
	draft := DrawingDraft{
		Title:             "spring giveaway",
		PlayWithNumbers:   quantity > 0,
		QuantityOfNumbers: quantity,
		WinnersAmount:     1,
		EndAt:             baseTime.Add(24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&draft)
	}
	drawing, err := env.engine.CreateDrawing(context.Background(), owner, draft)
	require.NoError(t, err)
	return drawing
}

// enter reserves numbers under a fresh hold and confirms them for user.
func (env *testEnv) enter(t *testing.T, drawingID uint, user string, numbers ...int) *storage.Participant {
	t.Helper()
	ctx := context.Background()

	var token string
	if len(numbers) > 0 {
		reservations, err := env.engine.ReserveMany(ctx, drawingID, numbers, 10*time.Minute, "")
		require.NoError(t, err)
		token = reservations[0].HoldToken
	}

	p, err := env.engine.Confirm(ctx, drawingID, numbers, ParticipantDraft{
		UserID:    user,
		Name:      "Participant " + user,
		Email:     user + "@example.com",
		HoldToken: token,
	})
	require.NoError(t, err)
	return p
}

// endDrawing moves the clock past the drawing's end.
func (env *testEnv) endDrawing(drawing *storage.Drawing) {
	env.clock.Advance(drawing.EndAt.Sub(env.clock.Now()) + time.Minute)
}

func TestCreateDrawing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	drawing := env.createDrawing(t, 100, winners(3))
	require.Equal(t, storage.WinnerSelectionSystem, drawing.WinnerSelection)

	slots, err := env.engine.Slots(ctx, drawing.ID)
	require.NoError(t, err)
	require.Len(t, slots, 100)

	tests := []struct {
		name  string
		actor string
		draft DrawingDraft
		want  error
	}{
		{
			name:  "missing owner",
			draft: DrawingDraft{Title: "x", WinnersAmount: 1, EndAt: baseTime.Add(time.Hour)},
			want:  ErrForbidden,
		},
		{
			name:  "no title",
			actor: owner,
			draft: DrawingDraft{WinnersAmount: 1, EndAt: baseTime.Add(time.Hour)},
			want:  ErrValidation,
		},
		{
			name:  "fewer numbers than winners",
			actor: owner,
			draft: DrawingDraft{Title: "x", PlayWithNumbers: true, QuantityOfNumbers: 2, WinnersAmount: 3, EndAt: baseTime.Add(time.Hour)},
			want:  ErrValidation,
		},
		{
			name:  "numberless with numbers",
			actor: owner,
			draft: DrawingDraft{Title: "x", QuantityOfNumbers: 5, WinnersAmount: 1, EndAt: baseTime.Add(time.Hour)},
			want:  ErrValidation,
		},
		{
			name:  "too many numbers",
			actor: owner,
			draft: DrawingDraft{Title: "x", PlayWithNumbers: true, QuantityOfNumbers: 10001, WinnersAmount: 1, EndAt: baseTime.Add(time.Hour)},
			want:  ErrValidation,
		},
		{
			name:  "ends in the past",
			actor: owner,
			draft: DrawingDraft{Title: "x", WinnersAmount: 1, EndAt: baseTime.Add(-time.Hour)},
			want:  ErrValidation,
		},
		{
			name:  "unknown selection",
			actor: owner,
			draft: DrawingDraft{Title: "x", WinnerSelection: "lottery", WinnersAmount: 1, EndAt: baseTime.Add(time.Hour)},
			want:  ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.CreateDrawing(ctx, tt.actor, tt.draft)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetDrawing_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.GetDrawing(context.Background(), 999)
	require.ErrorIs(t, err, ErrDrawingNotFound)
	require.True(t, IsExpected(err))
}
