// Package sweeper periodically resets reserved slots whose hold has lapsed.
// It only keeps listings cheap: every claim already treats a lapsed hold as
// available, so a stopped or slow sweeper never changes an outcome.
package sweeper

import (
	"context"
	"fmt"
	"raffle/internal/logger"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Store is the part of storage.Storage the sweeper needs.
type Store interface {
	ReleaseExpiredSlots(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	ctx     context.Context
	store   Store
	now     func() time.Time
	timeout time.Duration
	cron    *cron.Cron
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithTimeout bounds a single scheduled sweep.
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) { s.timeout = d }
}

func NewSweeper(ctx context.Context, store Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		ctx:     ctx,
		store:   store,
		now:     time.Now,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep releases every lapsed hold once and reports how many slots it reset.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	released, err := s.store.ReleaseExpiredSlots(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired holds: %w", err)
	}
	if released > 0 {
		logger.Info("expired holds released", zap.Int64("slots", released))
	} else {
		logger.Debug("no expired holds")
	}
	return released, nil
}

// Run implements cron.Job.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		logger.Warn("scheduled sweep failed", zap.Error(err))
	}
}

// Start schedules Run. schedule is standard cron syntax or a descriptor
// such as "@every 1m".
func (s *Sweeper) Start(schedule string) error {
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddJob(schedule, s); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c

	logger.Info("sweeper started", zap.String("schedule", schedule))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	logger.Info("sweeper stopped")
}
