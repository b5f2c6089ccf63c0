package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-advisor-backend/internal/domain"
)

// TurnsStats returns the number of turns in a room and the newest turn time.
// The HTTP layer derives a weak ETag from it.
func TurnsStats(ctx context.Context, db *gorm.DB, roomID string) (int64, *time.Time, error) {
	return latest(db.WithContext(ctx).Model(&domain.Turn{}).Where("room_id = ?", roomID))
}

func latest(q *gorm.DB) (count int64, newest *time.Time, err error) {
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	// Ordered select instead of MAX(): sqlite returns MAX over DATETIME as TEXT.
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Session(&gorm.Session{}).Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
