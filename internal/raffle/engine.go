// Package raffle implements number slot reservation, participation
// confirmation and winner selection for drawings.
//
// The engine keeps no state between calls. Every slot transition is a
// guarded update in storage, reservation expiry is computed from
// expires_at at the moment a claim is attempted, and multi-row changes run
// inside one storage transaction.
package raffle

import (
	"context"
	"errors"
	"fmt"
	"raffle/internal/logger"
	"raffle/internal/stats"
	"raffle/internal/storage"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// OwnerCheck decides whether actorID may administer drawing.
type OwnerCheck func(actorID string, drawing *storage.Drawing) bool

func IsOwner(actorID string, drawing *storage.Drawing) bool {
	return actorID != "" && actorID == drawing.OwnerID
}

type Engine struct {
	store      storage.Storage
	now        func() time.Time
	random     Randomizer
	stats      stats.Store
	ownerCheck OwnerCheck
	validate   *validator.Validate

	maxReservationTTL time.Duration
	maxNumbers        int
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithRandomizer(r Randomizer) Option {
	return func(e *Engine) { e.random = r }
}

func WithStats(s stats.Store) Option {
	return func(e *Engine) { e.stats = s }
}

func WithOwnerCheck(check OwnerCheck) Option {
	return func(e *Engine) { e.ownerCheck = check }
}

func WithMaxReservationTTL(d time.Duration) Option {
	return func(e *Engine) { e.maxReservationTTL = d }
}

func WithMaxNumbers(n int) Option {
	return func(e *Engine) { e.maxNumbers = n }
}

func New(store storage.Storage, opts ...Option) *Engine {
	e := &Engine{
		store:             store,
		now:               time.Now,
		random:            cryptoRandomizer{},
		stats:             stats.Nop{},
		ownerCheck:        IsOwner,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		maxReservationTTL: time.Hour,
		maxNumbers:        10000,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

func (e *Engine) record(ctx context.Context, op stats.Operation, drawingID uint, allowed bool) {
	err := e.stats.Record(ctx, stats.Event{Op: op, DrawingID: drawingID, Allowed: allowed, At: e.clock()})
	if err != nil {
		logger.Debug("stats record failed", zap.String("op", string(op)), zap.Error(err))
	}
}

// finish records the outcome of op and logs infrastructure failures.
// Expected outcomes pass through untouched.
func (e *Engine) finish(ctx context.Context, op stats.Operation, drawingID uint, err error) error {
	if err == nil {
		e.record(ctx, op, drawingID, true)
		return nil
	}
	if IsExpected(err) {
		e.record(ctx, op, drawingID, false)
		return err
	}

	logger.Error("raffle operation failed", zap.String("op", string(op)), zap.Uint("drawing", drawingID), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (e *Engine) loadDrawing(ctx context.Context, store storage.Storage, drawingID uint) (*storage.Drawing, error) {
	drawing, err := store.GetDrawing(ctx, drawingID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrDrawingNotFound, drawingID)
	}
	return drawing, err
}

func (e *Engine) validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q", ErrValidation, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
