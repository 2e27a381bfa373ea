package api

import (
	"errors"
	"net/http"
	"raffle/internal/logger"
	"raffle/internal/raffle"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{raffle.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{raffle.ErrReservationExpiredOrTaken, http.StatusGone, "reservation_expired_or_taken"},
	{raffle.ErrDrawingNotFound, http.StatusNotFound, "drawing_not_found"},
	{raffle.ErrParticipantNotFound, http.StatusNotFound, "participant_not_found"},
	{raffle.ErrDrawingNotEnded, http.StatusConflict, "drawing_not_ended"},
	{raffle.ErrForbidden, http.StatusForbidden, "forbidden"},
	{raffle.ErrInvalidWinnerNumber, http.StatusUnprocessableEntity, "invalid_winner_number"},
	{raffle.ErrInsufficientEligibleParticipants, http.StatusUnprocessableEntity, "insufficient_eligible_participants"},
	{raffle.ErrValidation, http.StatusBadRequest, "validation_error"},
}

func statusFor(err error) (int, string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes err as JSON. Infrastructure failures are logged by
// the engine; the client only learns that something went wrong.
func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Debug("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(status, errorResponse{Error: code})
		return
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Message: err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Message: message})
}
