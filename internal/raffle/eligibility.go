package raffle

import (
	"context"
	"errors"
	"fmt"
	"raffle/internal/logger"
	"raffle/internal/stats"
	"raffle/internal/storage"

	"go.uber.org/zap"
)

// SetEligibility records the host's decision on a participant. Rejecting a
// participant returns their taken numbers to the pool and appends them to
// LogNumbers. Approving a rejected participant does not win the numbers
// back; they may already belong to someone else.
func (e *Engine) SetEligibility(ctx context.Context, actorID string, participantID uint, status storage.Eligibility) (*storage.Participant, error) {
	if _, err := storage.ParseEligibility(string(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var (
		participant *storage.Participant
		freed       []int
	)
	err := e.store.Transaction(ctx, func(tx storage.Storage) error {
		p, err := tx.GetParticipant(ctx, participantID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrParticipantNotFound, participantID)
		}
		if err != nil {
			return err
		}

		drawing, err := e.loadDrawing(ctx, tx, p.DrawingID)
		if err != nil {
			return err
		}
		if !e.ownerCheck(actorID, drawing) {
			return fmt.Errorf("%w: %q does not own drawing %d", ErrForbidden, actorID, drawing.ID)
		}

		if status == storage.EligibilityRejected && p.Eligibility != storage.EligibilityRejected {
			freed, err = tx.FreeParticipantSlots(ctx, p.ID)
			if err != nil {
				return err
			}
			p.LogNumbers = append(p.LogNumbers, freed...)
		}

		p.Eligibility = status
		if err := tx.UpdateParticipantEligibility(ctx, p); err != nil {
			return err
		}
		participant = p
		return nil
	})

	var drawingID uint
	if participant != nil {
		drawingID = participant.DrawingID
	}

	op := stats.OpEligibility
	if status == storage.EligibilityRejected {
		op = stats.OpReject
	}
	if err := e.finish(ctx, op, drawingID, err); err != nil {
		return nil, err
	}

	logger.Info("participant eligibility updated",
		zap.Uint("participant", participantID),
		zap.String("eligibility", string(status)),
		zap.Ints("freed", freed),
	)
	return participant, nil
}
