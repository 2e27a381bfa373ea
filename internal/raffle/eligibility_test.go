package raffle

import (
	"context"
	"testing"
	"time"

	"raffle/internal/stats"
	"raffle/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetEligibility_RejectReleasesNumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	drawing := env.createDrawing(t, 50, paid())

	p := env.enter(t, drawing.ID, "alice", 45, 12)

	rejected, err := env.engine.SetEligibility(ctx, owner, p.ID, storage.EligibilityRejected)
	require.NoError(t, err)
	assert.Equal(t, storage.EligibilityRejected, rejected.Eligibility)
	assert.Equal(t, []int{12, 45}, []int(rejected.LogNumbers))

	for _, n := range []int{12, 45} {
		slot, err := env.store.GetSlot(ctx, drawing.ID, n)
		require.NoError(t, err)
		assert.Equal(t, storage.SlotAvailable, slot.Status)
		assert.Nil(t, slot.ParticipantID)
	}

	stored, err := env.store.GetParticipant(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{12, 45}, []int(stored.LogNumbers))

	_, err = env.engine.Reserve(ctx, drawing.ID, 12, time.Minute, "")
	require.NoError(t, err)

	assert.Equal(t, stats.Counts{Allowed: 1}, env.stats.Totals()[stats.OpReject])
}

func TestSetEligibility_RejectTwiceKeepsLog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	drawing := env.createDrawing(t, 10, paid())

	p := env.enter(t, drawing.ID, "alice", 3)

	_, err := env.engine.SetEligibility(ctx, owner, p.ID, storage.EligibilityRejected)
	require.NoError(t, err)
	again, err := env.engine.SetEligibility(ctx, owner, p.ID, storage.EligibilityRejected)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, []int(again.LogNumbers))
}

func TestSetEligibility_ApproveAfterRejectDoesNotReclaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	drawing := env.createDrawing(t, 10, paid())

	p := env.enter(t, drawing.ID, "alice", 3)
	_, err := env.engine.SetEligibility(ctx, owner, p.ID, storage.EligibilityRejected)
	require.NoError(t, err)

	approved, err := env.engine.SetEligibility(ctx, owner, p.ID, storage.EligibilityApproved)
	require.NoError(t, err)
	assert.Equal(t, storage.EligibilityApproved, approved.Eligibility)
	assert.Equal(t, []int{3}, []int(approved.LogNumbers))

	slot, err := env.store.GetSlot(ctx, drawing.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, storage.SlotAvailable, slot.Status)
}

func TestSetEligibility_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	drawing := env.createDrawing(t, 10, paid())
	p := env.enter(t, drawing.ID, "alice", 1)

	_, err := env.engine.SetEligibility(ctx, "alice", p.ID, storage.EligibilityApproved)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = env.engine.SetEligibility(ctx, owner, 999, storage.EligibilityApproved)
	require.ErrorIs(t, err, ErrParticipantNotFound)

	_, err = env.engine.SetEligibility(ctx, owner, p.ID, storage.Eligibility("maybe"))
	require.ErrorIs(t, err, ErrValidation)

	stored, err := env.store.GetParticipant(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.EligibilityPending, stored.Eligibility)
}
