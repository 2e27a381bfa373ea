// Package stats counts engine outcomes (reservations granted or refused,
// confirmations, selections). Recording is best effort: the engine logs a
// failed Record and carries on.
package stats

import (
	"context"
	"time"
)

type Operation string

const (
	OpReserve Operation = "reserve"
	OpRelease Operation = "release"
	OpConfirm Operation = "confirm"
	OpSelect  Operation = "select"
	OpReject  Operation = "reject"

	// OpEligibility covers approvals and resets to pending.
	OpEligibility Operation = "eligibility"
)

type Event struct {
	Op        Operation
	DrawingID uint
	Allowed   bool
	At        time.Time
}

type Store interface {
	Record(ctx context.Context, ev Event) error
}

type Counts struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

func field(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
