package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/query"
)

// CreateRoom inserts a room owned by userID named after the opening question.
func CreateRoom(ctx context.Context, db *gorm.DB, userID, name string) (*domain.Room, error) {
	r := &domain.Room{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetRoom fetches a room by id and owner, or ErrNotFound.
func GetRoom(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Room, error) {
	var r domain.Room
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRooms runs the list query over the caller's rooms. Searchable: name.
func ListRooms(ctx context.Context, db *gorm.DB, userID string, params map[string]string, defLimit int) ([]domain.Room, query.Meta, error) {
	var out []domain.Room
	meta, err := query.New(db, &domain.Room{}, params,
		query.WithDefaultLimit(defLimit),
		query.WithScope(func(tx *gorm.DB) *gorm.DB { return tx.Where("user_id = ?", userID) }),
	).Run(ctx, &out, "name")
	return out, meta, err
}
