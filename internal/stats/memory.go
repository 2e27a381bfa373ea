package stats

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu        sync.Mutex
	totals    map[Operation]Counts
	byDrawing map[uint]map[Operation]Counts
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		totals:    make(map[Operation]Counts),
		byDrawing: make(map[uint]map[Operation]Counts),
	}
}

func (s *MemoryStore) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals[ev.Op] = bump(s.totals[ev.Op], ev.Allowed)

	if ev.DrawingID != 0 {
		ops, ok := s.byDrawing[ev.DrawingID]
		if !ok {
			ops = make(map[Operation]Counts)
			s.byDrawing[ev.DrawingID] = ops
		}
		ops[ev.Op] = bump(ops[ev.Op], ev.Allowed)
	}
	return nil
}

// Totals returns a copy of the per-operation counters.
func (s *MemoryStore) Totals() map[Operation]Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Operation]Counts, len(s.totals))
	for op, c := range s.totals {
		out[op] = c
	}
	return out
}

func (s *MemoryStore) Drawing(drawingID uint) map[Operation]Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Operation]Counts, len(s.byDrawing[drawingID]))
	for op, c := range s.byDrawing[drawingID] {
		out[op] = c
	}
	return out
}

func bump(c Counts, allowed bool) Counts {
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
	return c
}
