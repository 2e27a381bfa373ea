package raffle

import (
	"context"
	"errors"
	"fmt"
	"raffle/internal/logger"
	"raffle/internal/stats"
	"raffle/internal/storage"
	"time"

	"go.uber.org/zap"
)

type Winner struct {
	Position      int       `json:"position"`
	Number        int       `json:"number"`
	ParticipantID uint      `json:"participantId"`
	SelectedAt    time.Time `json:"selectedAt"`
}

type WinnerList struct {
	DrawingID     uint     `json:"drawingId"`
	Winners       []Winner `json:"winners"`
	WinnerNumbers []int    `json:"winnerNumbers"`
}

// SelectWinners draws the winners of an ended drawing. In manual mode
// numbers are the host's picks; in system mode they must be empty and the
// winners are sampled uniformly from approved entries. An empty mode uses
// the drawing's configured selection.
//
// Selection runs in one transaction holding the drawing row, so concurrent
// runs on the same drawing serialize and the last one to commit wins as a
// whole. Running it again replaces the previous result.
func (e *Engine) SelectWinners(ctx context.Context, actorID string, drawingID uint, mode string, numbers []int) (*WinnerList, error) {
	list, err := e.selectWinners(ctx, actorID, drawingID, mode, numbers)
	if err == nil {
		logger.Info("winners selected",
			zap.Uint("drawing", drawingID),
			zap.Int("winners", len(list.Winners)),
			zap.Ints("numbers", list.WinnerNumbers),
		)
	}
	return list, e.finish(ctx, stats.OpSelect, drawingID, err)
}

func (e *Engine) selectWinners(ctx context.Context, actorID string, drawingID uint, mode string, numbers []int) (*WinnerList, error) {
	var list *WinnerList
	err := e.store.Transaction(ctx, func(tx storage.Storage) error {
		drawing, err := tx.LockDrawing(ctx, drawingID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrDrawingNotFound, drawingID)
		}
		if err != nil {
			return err
		}

		if !e.ownerCheck(actorID, drawing) {
			return fmt.Errorf("%w: %q does not own drawing %d", ErrForbidden, actorID, drawingID)
		}

		now := e.clock()
		if !drawing.EndAt.Before(now) {
			return fmt.Errorf("%w: drawing %d ends at %s", ErrDrawingNotEnded, drawingID, drawing.EndAt.Format(time.RFC3339))
		}

		if mode == "" {
			mode = drawing.WinnerSelection
		}
		mode, err = storage.ParseWinnerSelection(mode)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}

		pool, err := e.eligiblePool(ctx, tx, drawing)
		if err != nil {
			return err
		}

		var picked []storage.EligibleEntry
		switch mode {
		case storage.WinnerSelectionManual:
			picked, err = pickManual(drawing, pool, numbers)
		default:
			if len(numbers) > 0 {
				return fmt.Errorf("%w: system selection takes no numbers", ErrValidation)
			}
			picked, err = e.pickSystem(drawing, pool)
		}
		if err != nil {
			return err
		}

		rows := make([]*storage.DrawingWinner, len(picked))
		for i, entry := range picked {
			rows[i] = &storage.DrawingWinner{
				DrawingID:     drawingID,
				ParticipantID: entry.ParticipantID,
				Number:        entry.Number,
				Position:      i + 1,
				SelectedAt:    now,
			}
		}
		if err := tx.ReplaceWinners(ctx, drawingID, rows); err != nil {
			return err
		}

		var winnerNumbers []int
		if drawing.PlayWithNumbers {
			winnerNumbers = make([]int, len(picked))
			for i, entry := range picked {
				winnerNumbers[i] = entry.Number
			}
		}
		if err := tx.SetWinnerNumbers(ctx, drawingID, winnerNumbers); err != nil {
			return err
		}

		list = newWinnerList(drawingID, rows, winnerNumbers)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// eligiblePool lists what a winner can be drawn from: taken slots held by
// approved participants, or for numberless drawings the approved
// participants themselves keyed by their counter number.
func (e *Engine) eligiblePool(ctx context.Context, tx storage.Storage, drawing *storage.Drawing) ([]storage.EligibleEntry, error) {
	if drawing.PlayWithNumbers {
		return tx.ListEligibleEntries(ctx, drawing.ID)
	}

	participants, err := tx.ListApprovedParticipants(ctx, drawing.ID)
	if err != nil {
		return nil, err
	}
	pool := make([]storage.EligibleEntry, len(participants))
	for i, p := range participants {
		pool[i] = storage.EligibleEntry{Number: p.SelectedNumber, ParticipantID: p.ID}
	}
	return pool, nil
}

func pickManual(drawing *storage.Drawing, pool []storage.EligibleEntry, numbers []int) ([]storage.EligibleEntry, error) {
	if len(numbers) != drawing.WinnersAmount {
		return nil, fmt.Errorf("%w: got %d numbers, drawing has %d winners", ErrInvalidWinnerNumber, len(numbers), drawing.WinnersAmount)
	}

	byNumber := make(map[int]storage.EligibleEntry, len(pool))
	for _, entry := range pool {
		byNumber[entry.Number] = entry
	}

	picked := make([]storage.EligibleEntry, 0, len(numbers))
	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("%w: %d chosen twice", ErrInvalidWinnerNumber, n)
		}
		seen[n] = struct{}{}

		entry, ok := byNumber[n]
		if !ok {
			return nil, fmt.Errorf("%w: %d is not held by an approved participant", ErrInvalidWinnerNumber, n)
		}
		picked = append(picked, entry)
	}
	return picked, nil
}

func (e *Engine) pickSystem(drawing *storage.Drawing, pool []storage.EligibleEntry) ([]storage.EligibleEntry, error) {
	if len(pool) < drawing.WinnersAmount {
		return nil, fmt.Errorf("%w: %d eligible, %d winners", ErrInsufficientEligibleParticipants, len(pool), drawing.WinnersAmount)
	}
	picked, err := sample(pool, drawing.WinnersAmount, e.random)
	if err != nil {
		return nil, fmt.Errorf("draw winners: %w", err)
	}
	return picked, nil
}

// GetWinners returns the current result. A drawing without a selection
// yields an empty list. Both reads share a transaction so a concurrent
// re-run is seen entirely or not at all.
func (e *Engine) GetWinners(ctx context.Context, drawingID uint) (*WinnerList, error) {
	var list *WinnerList
	err := e.store.Transaction(ctx, func(tx storage.Storage) error {
		drawing, err := e.loadDrawing(ctx, tx, drawingID)
		if err != nil {
			return err
		}

		rows, err := tx.GetWinners(ctx, drawingID)
		if err != nil {
			return fmt.Errorf("get winners: %w", err)
		}
		list = newWinnerList(drawingID, rows, drawing.WinnerNumbers)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func newWinnerList(drawingID uint, rows []*storage.DrawingWinner, numbers []int) *WinnerList {
	list := &WinnerList{
		DrawingID:     drawingID,
		Winners:       make([]Winner, len(rows)),
		WinnerNumbers: numbers,
	}
	if list.WinnerNumbers == nil {
		list.WinnerNumbers = []int{}
	}
	for i, row := range rows {
		list.Winners[i] = Winner{
			Position:      row.Position,
			Number:        row.Number,
			ParticipantID: row.ParticipantID,
			SelectedAt:    row.SelectedAt,
		}
	}
	return list
}
