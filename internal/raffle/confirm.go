package raffle

import (
	"context"
	"fmt"
	"raffle/internal/logger"
	"raffle/internal/stats"
	"raffle/internal/storage"
	"strings"

	"go.uber.org/zap"
)

type ParticipantDraft struct {
	UserID    string `validate:"required,max=128"`
	Name      string `validate:"required,max=120"`
	Email     string `validate:"omitempty,email,max=254"`
	Phone     string `validate:"omitempty,max=32"`
	HoldToken string `validate:"omitempty,uuid"`
}

// Confirm registers a participant and turns their held numbers into taken
// slots. The participant insert and every slot update share a transaction:
// if any number is no longer held the whole registration is rolled back.
// Only the holder can confirm: numbered drawings require the hold token the
// numbers were reserved under. Numberless drawings take the next value of
// the drawing's counter instead.
func (e *Engine) Confirm(ctx context.Context, drawingID uint, numbers []int, draft ParticipantDraft) (*storage.Participant, error) {
	participant, err := e.confirm(ctx, drawingID, numbers, draft)
	if err == nil {
		logger.Info("participation confirmed",
			zap.Uint("drawing", drawingID),
			zap.Uint("participant", participant.ID),
			zap.Int("selectedNumber", participant.SelectedNumber),
			zap.Ints("numbers", numbers),
		)
	}
	return participant, e.finish(ctx, stats.OpConfirm, drawingID, err)
}

func (e *Engine) confirm(ctx context.Context, drawingID uint, numbers []int, draft ParticipantDraft) (*storage.Participant, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Email = strings.TrimSpace(draft.Email)
	draft.Phone = strings.TrimSpace(draft.Phone)
	if err := e.validate.Struct(draft); err != nil {
		return nil, e.validationError(err)
	}
	if err := distinct(numbers); err != nil {
		return nil, err
	}

	var participant *storage.Participant
	err := e.store.Transaction(ctx, func(tx storage.Storage) error {
		drawing, err := e.loadDrawing(ctx, tx, drawingID)
		if err != nil {
			return err
		}

		now := e.clock()
		if !now.Before(drawing.EndAt) {
			return fmt.Errorf("%w: drawing %d has ended", ErrValidation, drawingID)
		}

		p := &storage.Participant{
			DrawingID:   drawingID,
			UserID:      draft.UserID,
			Name:        draft.Name,
			Email:       draft.Email,
			Phone:       draft.Phone,
			Eligibility: initialEligibility(drawing),
		}

		if !drawing.PlayWithNumbers {
			if len(numbers) > 0 {
				return fmt.Errorf("%w: drawing %d does not use numbers", ErrValidation, drawingID)
			}
			seq, err := tx.NextParticipantNumber(ctx, drawingID)
			if err != nil {
				return err
			}
			p.SelectedNumber = seq
			if err := tx.CreateParticipant(ctx, p); err != nil {
				return err
			}
			participant = p
			return nil
		}

		if len(numbers) == 0 {
			return fmt.Errorf("%w: no numbers to confirm", ErrValidation)
		}
		if draft.HoldToken == "" {
			return fmt.Errorf("%w: hold token required to confirm numbers", ErrValidation)
		}
		for _, n := range numbers {
			if n < 1 || n > drawing.QuantityOfNumbers {
				return fmt.Errorf("%w: number %d outside 1..%d", ErrValidation, n, drawing.QuantityOfNumbers)
			}
		}

		p.SelectedNumber = numbers[0]
		if err := tx.CreateParticipant(ctx, p); err != nil {
			return err
		}

		for _, n := range numbers {
			ok, err := tx.TakeSlot(ctx, drawingID, n, p.ID, draft.HoldToken, now)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: number %d", ErrReservationExpiredOrTaken, n)
			}
		}

		participant = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// initialEligibility leaves paid entries pending until the host has
// checked the payment.
func initialEligibility(drawing *storage.Drawing) storage.Eligibility {
	if drawing.IsPaid {
		return storage.EligibilityPending
	}
	return storage.EligibilityApproved
}
