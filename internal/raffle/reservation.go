package raffle

import (
	"context"
	"errors"
	"fmt"
	"raffle/internal/logger"
	"raffle/internal/stats"
	"raffle/internal/storage"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reservation is a time-bounded hold on one slot. HoldToken identifies the
// holder: reserving again with the same token refreshes the hold, and
// Confirm and ReleaseHold accept it to act only on that holder's slots.
type Reservation struct {
	DrawingID uint      `json:"drawingId"`
	Number    int       `json:"number"`
	HoldToken string    `json:"holdToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SlotView struct {
	Number        int                `json:"number"`
	Status        storage.SlotStatus `json:"status"`
	ParticipantID *uint              `json:"participantId,omitempty"`
	ExpiresAt     *time.Time         `json:"expiresAt,omitempty"`
}

// Reserve places a hold on number for ttl. It succeeds when the slot is
// available, its previous hold has lapsed, or the live hold already belongs
// to holdToken. An empty holdToken starts a new hold.
func (e *Engine) Reserve(ctx context.Context, drawingID uint, number int, ttl time.Duration, holdToken string) (*Reservation, error) {
	reservation, err := e.reserve(ctx, drawingID, number, ttl, holdToken)
	return reservation, e.finish(ctx, stats.OpReserve, drawingID, err)
}

// ReserveMany holds every number under one token. If any claim fails the
// numbers newly claimed by this call are released again before returning.
// Numbers the token already held stay held with their refreshed expiry.
func (e *Engine) ReserveMany(ctx context.Context, drawingID uint, numbers []int, ttl time.Duration, holdToken string) ([]*Reservation, error) {
	if len(numbers) == 0 {
		return nil, e.finish(ctx, stats.OpReserve, drawingID, fmt.Errorf("%w: no numbers requested", ErrValidation))
	}
	if err := distinct(numbers); err != nil {
		return nil, e.finish(ctx, stats.OpReserve, drawingID, err)
	}
	fresh := holdToken == ""
	if fresh {
		holdToken = uuid.NewString()
	}

	var (
		reservations = make([]*Reservation, 0, len(numbers))
		claimed      = make([]int, 0, len(numbers))
	)
	for _, number := range numbers {
		owned := false
		if !fresh {
			var err error
			if owned, err = e.heldBy(ctx, drawingID, number, holdToken); err != nil {
				e.rollbackClaims(ctx, drawingID, claimed, holdToken)
				return nil, e.finish(ctx, stats.OpReserve, drawingID, err)
			}
		}

		reservation, err := e.reserve(ctx, drawingID, number, ttl, holdToken)
		if err != nil {
			e.rollbackClaims(ctx, drawingID, claimed, holdToken)
			return nil, e.finish(ctx, stats.OpReserve, drawingID, err)
		}
		if !owned {
			claimed = append(claimed, number)
		}
		reservations = append(reservations, reservation)
	}

	return reservations, e.finish(ctx, stats.OpReserve, drawingID, nil)
}

// heldBy reports whether holdToken already has a live hold on number.
func (e *Engine) heldBy(ctx context.Context, drawingID uint, number int, holdToken string) (bool, error) {
	slot, err := e.store.GetSlot(ctx, drawingID, number)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get slot: %w", err)
	}
	return slot.HoldToken == holdToken && slot.EffectiveStatus(e.clock()) == storage.SlotReserved, nil
}

func (e *Engine) rollbackClaims(ctx context.Context, drawingID uint, numbers []int, holdToken string) {
	if len(numbers) == 0 {
		return
	}
	if _, err := e.store.ReleaseSlots(ctx, drawingID, numbers, holdToken); err != nil {
		logger.Warn("rollback of partial reservation failed", zap.Uint("drawing", drawingID), zap.Ints("numbers", numbers), zap.Error(err))
	}
}

func (e *Engine) reserve(ctx context.Context, drawingID uint, number int, ttl time.Duration, holdToken string) (*Reservation, error) {
	if ttl <= 0 || ttl > e.maxReservationTTL {
		return nil, fmt.Errorf("%w: ttl %s outside (0, %s]", ErrValidation, ttl, e.maxReservationTTL)
	}
	if holdToken == "" {
		holdToken = uuid.NewString()
	} else if _, err := uuid.Parse(holdToken); err != nil {
		return nil, fmt.Errorf("%w: malformed hold token", ErrValidation)
	}

	drawing, err := e.loadDrawing(ctx, e.store, drawingID)
	if err != nil {
		return nil, err
	}
	if !drawing.PlayWithNumbers {
		return nil, fmt.Errorf("%w: drawing %d does not use numbers", ErrValidation, drawingID)
	}
	if number < 1 || number > drawing.QuantityOfNumbers {
		return nil, fmt.Errorf("%w: number %d outside 1..%d", ErrValidation, number, drawing.QuantityOfNumbers)
	}

	now := e.clock()
	if !now.Before(drawing.EndAt) {
		return nil, fmt.Errorf("%w: drawing %d has ended", ErrValidation, drawingID)
	}

	expiresAt := now.Add(ttl)
	ok, err := e.store.ClaimSlot(ctx, drawingID, number, holdToken, now, expiresAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: number %d", ErrSlotUnavailable, number)
	}

	logger.Debug("slot reserved", zap.Uint("drawing", drawingID), zap.Int("number", number), zap.Time("expiresAt", expiresAt))
	return &Reservation{
		DrawingID: drawingID,
		Number:    number,
		HoldToken: holdToken,
		ExpiresAt: expiresAt,
	}, nil
}

// Release returns reserved numbers to the pool. It never touches taken
// slots and is safe to repeat.
func (e *Engine) Release(ctx context.Context, drawingID uint, numbers []int) error {
	return e.ReleaseHold(ctx, drawingID, numbers, "")
}

// ReleaseHold is Release restricted to slots held by holdToken; an empty
// token releases regardless of holder.
func (e *Engine) ReleaseHold(ctx context.Context, drawingID uint, numbers []int, holdToken string) error {
	released, err := e.store.ReleaseSlots(ctx, drawingID, numbers, holdToken)
	if err == nil {
		logger.Debug("slots released", zap.Uint("drawing", drawingID), zap.Ints("numbers", numbers), zap.Int64("released", released))
	}
	return e.finish(ctx, stats.OpRelease, drawingID, err)
}

// Slots lists a drawing's numbers with their effective status: a reserved
// slot whose hold has lapsed is reported as available.
func (e *Engine) Slots(ctx context.Context, drawingID uint) ([]SlotView, error) {
	if _, err := e.loadDrawing(ctx, e.store, drawingID); err != nil {
		return nil, err
	}

	slots, err := e.store.ListSlots(ctx, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	now := e.clock()
	views := make([]SlotView, len(slots))
	for i, slot := range slots {
		view := SlotView{Number: slot.Number, Status: slot.EffectiveStatus(now)}
		switch view.Status {
		case storage.SlotReserved:
			view.ExpiresAt = slot.ExpiresAt
		case storage.SlotTaken:
			view.ParticipantID = slot.ParticipantID
		}
		views[i] = view
	}
	return views, nil
}

func distinct(numbers []int) error {
	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: number %d requested twice", ErrValidation, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}
