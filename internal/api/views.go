package api

import (
	"raffle/internal/storage"
	"time"
)

type drawingView struct {
	ID                uint      `json:"id"`
	OwnerID           string    `json:"ownerId"`
	Title             string    `json:"title"`
	WinnerSelection   string    `json:"winnerSelection"`
	PlayWithNumbers   bool      `json:"playWithNumbers"`
	QuantityOfNumbers int       `json:"quantityOfNumbers"`
	WinnersAmount     int       `json:"winnersAmount"`
	WinnerNumbers     []int     `json:"winnerNumbers"`
	IsPaid            bool      `json:"isPaid"`
	EndAt             time.Time `json:"endAt"`
	CreatedAt         time.Time `json:"createdAt"`
	Participants      int64     `json:"participants"`
}

func newDrawingView(d *storage.Drawing) drawingView {
	numbers := []int(d.WinnerNumbers)
	if numbers == nil {
		numbers = []int{}
	}
	return drawingView{
		ID:                d.ID,
		OwnerID:           d.OwnerID,
		Title:             d.Title,
		WinnerSelection:   d.WinnerSelection,
		PlayWithNumbers:   d.PlayWithNumbers,
		QuantityOfNumbers: d.QuantityOfNumbers,
		WinnersAmount:     d.WinnersAmount,
		WinnerNumbers:     numbers,
		IsPaid:            d.IsPaid,
		EndAt:             d.EndAt,
		CreatedAt:         d.CreatedAt,
	}
}

type participantView struct {
	ID             uint                `json:"id"`
	DrawingID      uint                `json:"drawingId"`
	UserID         string              `json:"userId"`
	Name           string              `json:"name"`
	Email          string              `json:"email,omitempty"`
	Phone          string              `json:"phone,omitempty"`
	SelectedNumber int                 `json:"selectedNumber"`
	LogNumbers     []int               `json:"logNumbers,omitempty"`
	Eligibility    storage.Eligibility `json:"eligibility"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func newParticipantView(p *storage.Participant) participantView {
	return participantView{
		ID:             p.ID,
		DrawingID:      p.DrawingID,
		UserID:         p.UserID,
		Name:           p.Name,
		Email:          p.Email,
		Phone:          p.Phone,
		SelectedNumber: p.SelectedNumber,
		LogNumbers:     p.LogNumbers,
		Eligibility:    p.Eligibility,
		CreatedAt:      p.CreatedAt,
	}
}
