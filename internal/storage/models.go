package storage

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

type Drawing struct {
	ID                uint            `gorm:"primaryKey"`
	OwnerID           string          `gorm:"not null;index"`
	Title             string          `gorm:"not null"`
	WinnerSelection   WinnerSelection `gorm:"not null"`
	PlayWithNumbers   bool            `gorm:"not null"`
	QuantityOfNumbers int             `gorm:"not null;default:0"`
	WinnersAmount     int             `gorm:"not null"`
	WinnerNumbers     Numbers         `gorm:"type:text"`
	IsPaid            bool            `gorm:"not null"`
	EndAt             time.Time       `gorm:"not null"`
	ParticipantSeq    int             `gorm:"not null;default:0"`
	SelectionSeq      int             `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type NumberSlot struct {
	ID            uint       `gorm:"primaryKey"`
	DrawingID     uint       `gorm:"not null;uniqueIndex:idx_slot_drawing_number"`
	Number        int        `gorm:"not null;uniqueIndex:idx_slot_drawing_number"`
	Status        SlotStatus `gorm:"not null;index"`
	ParticipantID *uint      `gorm:"index"`
	HoldToken     string     `gorm:"not null"`
	ReservedAt    *time.Time
	ExpiresAt     *time.Time
	UpdatedAt     time.Time
}

// EffectiveStatus folds lapsed holds back into available.
func (s *NumberSlot) EffectiveStatus(now time.Time) SlotStatus {
	if s.Status == SlotReserved && (s.ExpiresAt == nil || !s.ExpiresAt.After(now)) {
		return SlotAvailable
	}
	return s.Status
}

type Participant struct {
	ID             uint        `gorm:"primaryKey"`
	DrawingID      uint        `gorm:"not null;index"`
	UserID         string      `gorm:"not null;index"`
	Name           string      `gorm:"not null"`
	Email          string      `gorm:"not null"`
	Phone          string      `gorm:"not null"`
	SelectedNumber int         `gorm:"not null"`
	LogNumbers     Numbers     `gorm:"type:text"`
	Eligibility    Eligibility `gorm:"not null;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DrawingWinner struct {
	ID            uint      `gorm:"primaryKey"`
	DrawingID     uint      `gorm:"not null;index"`
	ParticipantID uint      `gorm:"not null"`
	Number        int       `gorm:"not null;default:0"`
	Position      int       `gorm:"not null"`
	SelectedAt    time.Time `gorm:"not null"`
}

// EligibleEntry is a taken slot whose participant is approved.
type EligibleEntry struct {
	Number        int
	ParticipantID uint
}

// Numbers is an ordered list of slot numbers stored as a JSON array.
type Numbers []int

func (n Numbers) Value() (driver.Value, error) {
	if n == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(n))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (n *Numbers) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*n = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("numbers: unsupported column type %T", value)
	}

	if len(raw) == 0 {
		*n = nil
		return nil
	}

	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("numbers: %w", err)
	}
	if len(out) == 0 {
		*n = nil
		return nil
	}
	*n = out
	return nil
}
