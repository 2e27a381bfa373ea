package storage

import (
	"context"
	"errors"
	"fmt"
	"raffle/internal/logger"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const slotBatchSize = 500

type SqliteStorage struct {
	db *gorm.DB
}

// NewSqliteStorage opens (creating if needed) the database at path and
// migrates the schema. SQLite has a single writer, so the pool is capped
// at one connection and every transaction begins IMMEDIATE.
func NewSqliteStorage(path string) (*SqliteStorage, error) {
	logger.Debug("initializing database...", zap.String("path", path))

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  newGormLogger(200 * time.Millisecond),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	err = db.AutoMigrate(
		&Drawing{},
		&NumberSlot{},
		&Participant{},
		&DrawingWinner{},
	)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Debug("initializing database... done")
	return &SqliteStorage{db: db}, nil
}

func (s *SqliteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SqliteStorage) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SqliteStorage{db: tx})
	})
}

func (s *SqliteStorage) CreateDrawing(ctx context.Context, drawing *Drawing) error {
	logger.Debug("creating drawing...", zap.String("owner", drawing.OwnerID), zap.Int("numbers", drawing.QuantityOfNumbers))

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(drawing).Error; err != nil {
			return err
		}

		if !drawing.PlayWithNumbers || drawing.QuantityOfNumbers == 0 {
			return nil
		}

		slots := make([]*NumberSlot, drawing.QuantityOfNumbers)
		for i := range slots {
			slots[i] = &NumberSlot{
				DrawingID: drawing.ID,
				Number:    i + 1,
				Status:    SlotAvailable,
			}
		}
		if err := tx.CreateInBatches(slots, slotBatchSize).Error; err != nil {
			return err
		}

		logger.Debug("creating drawing... done", zap.Uint("drawing", drawing.ID))
		return nil
	})
}

func (s *SqliteStorage) GetDrawing(ctx context.Context, id uint) (*Drawing, error) {
	var drawing Drawing
	err := s.db.WithContext(ctx).First(&drawing, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &drawing, nil
}

// LockDrawing bumps selection_seq and re-reads the row. The write takes
// the row lock (or the database write lock on SQLite) until the enclosing
// transaction ends, so concurrent selections on one drawing serialize.
func (s *SqliteStorage) LockDrawing(ctx context.Context, id uint) (*Drawing, error) {
	db := s.db.WithContext(ctx)

	res := db.Model(&Drawing{}).Where("id = ?", id).
		UpdateColumn("selection_seq", gorm.Expr("selection_seq + ?", 1))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var drawing Drawing
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&drawing, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &drawing, nil
}

func (s *SqliteStorage) NextParticipantNumber(ctx context.Context, drawingID uint) (int, error) {
	db := s.db.WithContext(ctx)

	res := db.Model(&Drawing{}).Where("id = ?", drawingID).
		UpdateColumn("participant_seq", gorm.Expr("participant_seq + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	var seq int
	err := db.Raw(`select participant_seq from drawings where id = ?`, drawingID).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *SqliteStorage) SetWinnerNumbers(ctx context.Context, drawingID uint, numbers []int) error {
	return s.db.WithContext(ctx).Model(&Drawing{}).Where("id = ?", drawingID).
		UpdateColumn("winner_numbers", Numbers(numbers)).Error
}

// ClaimSlot moves a slot to reserved when it is available, its hold has
// lapsed, or the live hold already belongs to holdToken (a refresh). The
// precondition lives in the WHERE clause, so of any number of concurrent
// claims on one slot exactly one affects a row.
func (s *SqliteStorage) ClaimSlot(ctx context.Context, drawingID uint, number int, holdToken string, now, expiresAt time.Time) (bool, error) {
	if holdToken == "" {
		return false, errors.New("claim slot: empty hold token")
	}

	now, expiresAt = now.UTC(), expiresAt.UTC()
	res := s.db.WithContext(ctx).Model(&NumberSlot{}).
		Where("drawing_id = ? and number = ?", drawingID, number).
		Where("(status = ? or (status = ? and (expires_at <= ? or hold_token = ?)))", SlotAvailable, SlotReserved, now, holdToken).
		Updates(map[string]any{
			"status":         SlotReserved,
			"hold_token":     holdToken,
			"participant_id": nil,
			"reserved_at":    now,
			"expires_at":     expiresAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TakeSlot binds a live hold owned by holdToken to a participant. A slot
// held under any other token, or whose hold has lapsed, is left untouched.
func (s *SqliteStorage) TakeSlot(ctx context.Context, drawingID uint, number int, participantID uint, holdToken string, now time.Time) (bool, error) {
	if holdToken == "" {
		return false, errors.New("take slot: empty hold token")
	}

	res := s.db.WithContext(ctx).Model(&NumberSlot{}).
		Where("drawing_id = ? and number = ?", drawingID, number).
		Where("status = ? and expires_at > ? and hold_token = ?", SlotReserved, now.UTC(), holdToken).
		Updates(map[string]any{
			"status":         SlotTaken,
			"participant_id": participantID,
			"hold_token":     "",
			"reserved_at":    nil,
			"expires_at":     nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseSlots resets reserved slots to available. Taken slots are never
// touched. An empty holdToken releases regardless of holder.
func (s *SqliteStorage) ReleaseSlots(ctx context.Context, drawingID uint, numbers []int, holdToken string) (int64, error) {
	if len(numbers) == 0 {
		return 0, nil
	}

	query := s.db.WithContext(ctx).Model(&NumberSlot{}).
		Where("drawing_id = ? and number in ? and status = ?", drawingID, numbers, SlotReserved)
	if holdToken != "" {
		query = query.Where("hold_token = ?", holdToken)
	}

	res := query.Updates(availableColumns())
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (s *SqliteStorage) ReleaseExpiredSlots(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&NumberSlot{}).
		Where("status = ? and expires_at <= ?", SlotReserved, now.UTC()).
		Updates(availableColumns())
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// FreeParticipantSlots returns the participant's taken slots to the pool
// and reports which numbers were freed, in ascending order.
func (s *SqliteStorage) FreeParticipantSlots(ctx context.Context, participantID uint) ([]int, error) {
	db := s.db.WithContext(ctx)

	var numbers []int
	err := db.Model(&NumberSlot{}).
		Where("participant_id = ? and status = ?", participantID, SlotTaken).
		Order("number asc").
		Pluck("number", &numbers).Error
	if err != nil {
		return nil, err
	}
	if len(numbers) == 0 {
		return nil, nil
	}

	err = db.Model(&NumberSlot{}).
		Where("participant_id = ? and status = ?", participantID, SlotTaken).
		Updates(availableColumns()).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (s *SqliteStorage) GetSlot(ctx context.Context, drawingID uint, number int) (*NumberSlot, error) {
	var slot NumberSlot
	err := s.db.WithContext(ctx).
		Where("drawing_id = ? and number = ?", drawingID, number).
		First(&slot).Error
	if err != nil {
		return nil, translate(err)
	}
	return &slot, nil
}

func (s *SqliteStorage) ListSlots(ctx context.Context, drawingID uint) ([]*NumberSlot, error) {
	var slots []*NumberSlot
	err := s.db.WithContext(ctx).
		Where("drawing_id = ?", drawingID).
		Order("number asc").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *SqliteStorage) CreateParticipant(ctx context.Context, participant *Participant) error {
	return s.db.WithContext(ctx).Create(participant).Error
}

func (s *SqliteStorage) GetParticipant(ctx context.Context, id uint) (*Participant, error) {
	var participant Participant
	err := s.db.WithContext(ctx).First(&participant, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &participant, nil
}

func (s *SqliteStorage) UpdateParticipantEligibility(ctx context.Context, participant *Participant) error {
	res := s.db.WithContext(ctx).Model(&Participant{}).
		Where("id = ?", participant.ID).
		Updates(map[string]any{
			"eligibility": participant.Eligibility,
			"log_numbers": participant.LogNumbers,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SqliteStorage) CountParticipants(ctx context.Context, drawingID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Participant{}).Where("drawing_id = ?", drawingID).Count(&count).Error
	return count, err
}

func (s *SqliteStorage) ListApprovedParticipants(ctx context.Context, drawingID uint) ([]*Participant, error) {
	var participants []*Participant
	err := s.db.WithContext(ctx).
		Where("drawing_id = ? and eligibility = ?", drawingID, EligibilityApproved).
		Order("selected_number asc, id asc").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *SqliteStorage) ListEligibleEntries(ctx context.Context, drawingID uint) ([]EligibleEntry, error) {
	var entries []EligibleEntry
	err := s.db.WithContext(ctx).Raw(`
		select s.number as number, s.participant_id as participant_id
		from number_slots s
			join participants p on p.id = s.participant_id
		where s.drawing_id = ? and s.status = ? and p.eligibility = ?
		order by s.number
	`, drawingID, SlotTaken, EligibilityApproved).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplaceWinners swaps the full winner set of a drawing. Run it inside a
// transaction so readers never observe the cleared state.
func (s *SqliteStorage) ReplaceWinners(ctx context.Context, drawingID uint, winners []*DrawingWinner) error {
	logger.Debug("replacing drawing winners...", zap.Uint("drawing", drawingID), zap.Int("winners", len(winners)))

	db := s.db.WithContext(ctx)
	if err := db.Where("drawing_id = ?", drawingID).Delete(&DrawingWinner{}).Error; err != nil {
		return err
	}
	if len(winners) == 0 {
		return nil
	}
	if err := db.CreateInBatches(winners, 100).Error; err != nil {
		return err
	}

	logger.Debug("replacing drawing winners... done")
	return nil
}

func (s *SqliteStorage) GetWinners(ctx context.Context, drawingID uint) ([]*DrawingWinner, error) {
	var winners []*DrawingWinner
	err := s.db.WithContext(ctx).
		Where("drawing_id = ?", drawingID).
		Order("position asc").
		Find(&winners).Error
	if err != nil {
		return nil, err
	}
	return winners, nil
}

func availableColumns() map[string]any {
	return map[string]any{
		"status":         SlotAvailable,
		"participant_id": nil,
		"hold_token":     "",
		"reserved_at":    nil,
		"expires_at":     nil,
	}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
