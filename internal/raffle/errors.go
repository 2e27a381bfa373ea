package raffle

import "errors"

// Expected, user-facing outcomes. Callers match them with errors.Is; the
// wrapped message carries the detail (which number, which field).
var (
	ErrSlotUnavailable                  = errors.New("slot unavailable")
	ErrReservationExpiredOrTaken        = errors.New("reservation expired or taken")
	ErrDrawingNotFound                  = errors.New("drawing not found")
	ErrDrawingNotEnded                  = errors.New("drawing has not ended")
	ErrForbidden                        = errors.New("forbidden")
	ErrInvalidWinnerNumber              = errors.New("invalid winner number")
	ErrInsufficientEligibleParticipants = errors.New("insufficient eligible participants")
	ErrValidation                       = errors.New("validation error")
	ErrParticipantNotFound              = errors.New("participant not found")
)

var expected = []error{
	ErrSlotUnavailable,
	ErrReservationExpiredOrTaken,
	ErrDrawingNotFound,
	ErrDrawingNotEnded,
	ErrForbidden,
	ErrInvalidWinnerNumber,
	ErrInsufficientEligibleParticipants,
	ErrValidation,
	ErrParticipantNotFound,
}

// IsExpected reports whether err is one of the engine's domain outcomes
// rather than an infrastructure failure.
func IsExpected(err error) bool {
	for _, e := range expected {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
