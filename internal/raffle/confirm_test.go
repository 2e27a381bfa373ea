package raffle

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"raffle/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestConfirm_TakesHeldNumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	drawing := env.createDrawing(t, 10)

	p := env.enter(t, drawing.ID, "alice", 3, 8)
	assert.Equal(t, 3, p.SelectedNumber)
	assert.Equal(t, storage.EligibilityApproved, p.Eligibility)

	for _, n := range []int{3, 8} {
		slot, err := env.store.GetSlot(ctx, drawing.ID, n)
		require.NoError(t, err)
		assert.Equal(t, storage.SlotTaken, slot.Status)
		assert.Equal(t, p.ID, *slot.ParticipantID)
		assert.Nil(t, slot.ExpiresAt)
		assert.Empty(t, slot.HoldToken)
	}
}

func TestConfirm_PaidDrawingStartsPending(t *testing.T) {
	env := newTestEnv(t)
	drawing := env.createDrawing(t, 10, paid())

	p := env.enter(t, drawing.ID, "alice", 1)
	assert.Equal(t, storage.EligibilityPending, p.Eligibility)
}

func TestConfirm_IsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	drawing := env.createDrawing(t, 10)

	env.enter(t, drawing.ID, "bob", 4)

	hold, err := env.engine.Reserve(ctx, drawing.ID, 3, 10*time.Minute, "")
	require.NoError(t, err)
	_, err = env.engine.Reserve(ctx, drawing.ID, 5, 10*time.Minute, hold.HoldToken)
	require.NoError(t, err)

	_, err = env.engine.Confirm(ctx, drawing.ID, []int{3, 4, 5}, ParticipantDraft{
		UserID:    "alice",
		Name:      "Alice",
		HoldToken: hold.HoldToken,
	})
	require.ErrorIs(t, err, ErrReservationExpiredOrTaken)

	for _, n := range []int{3, 5} {
		slot, err := env.store.GetSlot(ctx, drawing.ID, n)
		require.NoError(t, err)
		assert.Equal(t, storage.SlotReserved, slot.Status, "number %d", n)
		assert.Equal(t, hold.HoldToken, slot.HoldToken)
		assert.Nil(t, slot.ParticipantID)
	}

	count, err := env.store.CountParticipants(ctx, drawing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConfirm_ExpiredHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	drawing := env.createDrawing(t, 10)

	hold, err := env.engine.Reserve(ctx, drawing.ID, 6, time.Minute, "")
	require.NoError(t, err)
	env.clock.Advance(2 * time.Minute)

	_, err = env.engine.Confirm(ctx, drawing.ID, []int{6}, ParticipantDraft{
		UserID:    "alice",
		Name:      "Alice",
		HoldToken: hold.HoldToken,
	})
	require.ErrorIs(t, err, ErrReservationExpiredOrTaken)
}

func TestConfirm_OtherHolderCannotTake(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	drawing := env.createDrawing(t, 10)

	alice, err := env.engine.Reserve(ctx, drawing.ID, 5, time.Minute, "")
	require.NoError(t, err)
	mallory, err := env.engine.Reserve(ctx, drawing.ID, 3, time.Minute, "")
	require.NoError(t, err)

	_, err = env.engine.Confirm(ctx, drawing.ID, []int{5}, ParticipantDraft{
		UserID: "mallory",
		Name:   "Mallory",
	})
	require.ErrorIs(t, err, ErrValidation, "confirming numbers needs a hold token")

	_, err = env.engine.Confirm(ctx, drawing.ID, []int{5}, ParticipantDraft{
		UserID:    "mallory",
		Name:      "Mallory",
		HoldToken: mallory.HoldToken,
	})
	require.ErrorIs(t, err, ErrReservationExpiredOrTaken)

	count, err := env.store.CountParticipants(ctx, drawing.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	slot, err := env.store.GetSlot(ctx, drawing.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, storage.SlotReserved, slot.Status)
	assert.Equal(t, alice.HoldToken, slot.HoldToken)
	assert.Nil(t, slot.ParticipantID)

	p, err := env.engine.Confirm(ctx, drawing.ID, []int{5}, ParticipantDraft{
		UserID:    "alice",
		Name:      "Alice",
		HoldToken: alice.HoldToken,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, p.SelectedNumber)
}

func TestConfirm_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	numbered := env.createDrawing(t, 10)
	numberless := env.createDrawing(t, 0)

	valid := ParticipantDraft{UserID: "alice", Name: "Alice"}

	tests := []struct {
		name      string
		drawingID uint
		numbers   []int
		draft     ParticipantDraft
		want      error
	}{
		{"unknown drawing", 999, []int{1}, valid, ErrDrawingNotFound},
		{"no name", numbered.ID, []int{1}, ParticipantDraft{UserID: "alice"}, ErrValidation},
		{"bad email", numbered.ID, []int{1}, ParticipantDraft{UserID: "alice", Name: "Alice", Email: "alice"}, ErrValidation},
		{"no numbers", numbered.ID, nil, valid, ErrValidation},
		{"duplicate numbers", numbered.ID, []int{1, 1}, valid, ErrValidation},
		{"out of range", numbered.ID, []int{11}, valid, ErrValidation},
		{"no hold token", numbered.ID, []int{1}, valid, ErrValidation},
		{"numbers on numberless", numberless.ID, []int{1}, valid, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Confirm(ctx, tt.drawingID, tt.numbers, tt.draft)
			require.ErrorIs(t, err, tt.want)
		})
	}

	count, err := env.store.CountParticipants(ctx, numbered.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConfirm_NumberlessCounterIsSerialized(t *testing.T) {
	env := newTestEnv(t)
	drawing := env.createDrawing(t, 0)

	const entrants = 20
	var (
		mu   sync.Mutex
		seen []int
	)
	var g errgroup.Group
	for i := 0; i < entrants; i++ {
		g.Go(func() error {
			p, err := env.engine.Confirm(context.Background(), drawing.ID, nil, ParticipantDraft{
				UserID: fmt.Sprintf("user-%d", i),
				Name:   fmt.Sprintf("User %d", i),
			})
			if err != nil {
				return err
			}
			mu.Lock()
			seen = append(seen, p.SelectedNumber)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	slices.Sort(seen)
	want := make([]int, entrants)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, seen)
}
