package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Storage is the persisted state of drawings, slots, participants and
// winners. Every slot transition is a single conditional update; callers
// that need several of them to be all-or-nothing wrap them in Transaction.
type Storage interface {
	// Transaction runs fn against a Storage bound to one database
	// transaction. A non-nil error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Storage) error) error

	// drawing
	CreateDrawing(ctx context.Context, drawing *Drawing) error
	GetDrawing(ctx context.Context, id uint) (*Drawing, error)
	LockDrawing(ctx context.Context, id uint) (*Drawing, error)
	NextParticipantNumber(ctx context.Context, drawingID uint) (int, error)
	SetWinnerNumbers(ctx context.Context, drawingID uint, numbers []int) error

	// number slot
	ClaimSlot(ctx context.Context, drawingID uint, number int, holdToken string, now, expiresAt time.Time) (bool, error)
	TakeSlot(ctx context.Context, drawingID uint, number int, participantID uint, holdToken string, now time.Time) (bool, error)
	ReleaseSlots(ctx context.Context, drawingID uint, numbers []int, holdToken string) (int64, error)
	ReleaseExpiredSlots(ctx context.Context, now time.Time) (int64, error)
	FreeParticipantSlots(ctx context.Context, participantID uint) ([]int, error)
	GetSlot(ctx context.Context, drawingID uint, number int) (*NumberSlot, error)
	ListSlots(ctx context.Context, drawingID uint) ([]*NumberSlot, error)

	// participant
	CreateParticipant(ctx context.Context, participant *Participant) error
	GetParticipant(ctx context.Context, id uint) (*Participant, error)
	UpdateParticipantEligibility(ctx context.Context, participant *Participant) error
	CountParticipants(ctx context.Context, drawingID uint) (int64, error)
	ListApprovedParticipants(ctx context.Context, drawingID uint) ([]*Participant, error)
	ListEligibleEntries(ctx context.Context, drawingID uint) ([]EligibleEntry, error)

	// drawing winner
	ReplaceWinners(ctx context.Context, drawingID uint, winners []*DrawingWinner) error
	GetWinners(ctx context.Context, drawingID uint) ([]*DrawingWinner, error)
}

type SlotStatus = string

const (
	SlotAvailable SlotStatus = "available"
	SlotReserved  SlotStatus = "reserved"
	SlotTaken     SlotStatus = "taken"
)

type WinnerSelection = string

const (
	WinnerSelectionManual WinnerSelection = "manual"
	WinnerSelectionSystem WinnerSelection = "system"
)

// Eligibility is a participant's approval state. Pending is a real state,
// not an absent boolean.
type Eligibility string

const (
	EligibilityPending  Eligibility = "pending"
	EligibilityApproved Eligibility = "approved"
	EligibilityRejected Eligibility = "rejected"
)

func ParseEligibility(s string) (Eligibility, error) {
	switch e := Eligibility(s); e {
	case EligibilityPending, EligibilityApproved, EligibilityRejected:
		return e, nil
	default:
		return "", fmt.Errorf("unknown eligibility %q", s)
	}
}

func ParseWinnerSelection(s string) (WinnerSelection, error) {
	switch s {
	case WinnerSelectionManual, WinnerSelectionSystem:
		return s, nil
	default:
		return "", fmt.Errorf("unknown winner selection %q", s)
	}
}
