package raffle

import (
	"context"
	"fmt"
	"raffle/internal/logger"
	"raffle/internal/storage"
	"strings"
	"time"

	"go.uber.org/zap"
)

type DrawingDraft struct {
	Title             string    `validate:"required,max=200"`
	WinnerSelection   string    `validate:"omitempty,oneof=manual system"`
	PlayWithNumbers   bool
	QuantityOfNumbers int       `validate:"gte=0"`
	WinnersAmount     int       `validate:"gte=1"`
	IsPaid            bool
	EndAt             time.Time `validate:"required"`
}

// CreateDrawing stores a drawing owned by actorID together with one
// available slot per number.
func (e *Engine) CreateDrawing(ctx context.Context, actorID string, draft DrawingDraft) (*storage.Drawing, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if actorID == "" {
		return nil, fmt.Errorf("%w: missing owner", ErrForbidden)
	}
	if err := e.validate.Struct(draft); err != nil {
		return nil, e.validationError(err)
	}

	selection := draft.WinnerSelection
	if selection == "" {
		selection = storage.WinnerSelectionSystem
	}

	if draft.PlayWithNumbers {
		if draft.QuantityOfNumbers < draft.WinnersAmount {
			return nil, fmt.Errorf("%w: %d numbers cannot produce %d winners", ErrValidation, draft.QuantityOfNumbers, draft.WinnersAmount)
		}
		if draft.QuantityOfNumbers > e.maxNumbers {
			return nil, fmt.Errorf("%w: at most %d numbers per drawing", ErrValidation, e.maxNumbers)
		}
	} else if draft.QuantityOfNumbers != 0 {
		return nil, fmt.Errorf("%w: numberless drawing with %d numbers", ErrValidation, draft.QuantityOfNumbers)
	}

	if !draft.EndAt.After(e.clock()) {
		return nil, fmt.Errorf("%w: end time is in the past", ErrValidation)
	}

	drawing := &storage.Drawing{
		OwnerID:           actorID,
		Title:             draft.Title,
		WinnerSelection:   selection,
		PlayWithNumbers:   draft.PlayWithNumbers,
		QuantityOfNumbers: draft.QuantityOfNumbers,
		WinnersAmount:     draft.WinnersAmount,
		IsPaid:            draft.IsPaid,
		EndAt:             draft.EndAt.UTC(),
	}
	if err := e.store.CreateDrawing(ctx, drawing); err != nil {
		logger.Error("create drawing failed", zap.String("owner", actorID), zap.Error(err))
		return nil, fmt.Errorf("create drawing: %w", err)
	}

	logger.Info("drawing created", zap.Uint("drawing", drawing.ID), zap.Int("numbers", drawing.QuantityOfNumbers))
	return drawing, nil
}

func (e *Engine) GetDrawing(ctx context.Context, drawingID uint) (*storage.Drawing, error) {
	return e.loadDrawing(ctx, e.store, drawingID)
}

// CountParticipants reports how many participants a drawing has, whatever
// their eligibility.
func (e *Engine) CountParticipants(ctx context.Context, drawingID uint) (int64, error) {
	if _, err := e.loadDrawing(ctx, e.store, drawingID); err != nil {
		return 0, err
	}
	count, err := e.store.CountParticipants(ctx, drawingID)
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}
