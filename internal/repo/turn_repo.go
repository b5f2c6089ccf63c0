package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-advisor-backend/internal/domain"
)

// turnOrder is the canonical transcript order. Turn ids are UUIDv7, so the id
// tie-break follows insertion order.
const turnOrder = "created_at ASC, id ASC"

// CreateTurn inserts a question/answer pair into a room.
func CreateTurn(ctx context.Context, db *gorm.DB, roomID, userID, question string, answer *string) (*domain.Turn, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	t := &domain.Turn{
		ID:        id.String(),
		RoomID:    roomID,
		UserID:    userID,
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// ListTurns returns every turn of a room, oldest first.
func ListTurns(ctx context.Context, db *gorm.DB, roomID string) ([]domain.Turn, error) {
	var out []domain.Turn
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order(turnOrder).
		Find(&out).Error
	return out, err
}

// CountTurns returns the number of turns in a room.
func CountTurns(ctx context.Context, db *gorm.DB, roomID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Turn{}).Where("room_id = ?", roomID).Count(&total).Error
	return total, err
}

// ListTurnsPage returns one page of a room's transcript, oldest first.
func ListTurnsPage(ctx context.Context, db *gorm.DB, roomID string, offset, limit int) ([]domain.Turn, error) {
	var out []domain.Turn
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order(turnOrder).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetTurn fetches a turn owned by userID, or ErrNotFound.
func GetTurn(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Turn, error) {
	var t domain.Turn
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}
