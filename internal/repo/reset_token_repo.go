package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-advisor-backend/internal/domain"
)

// CreateResetToken stores the hash of a reset token for userID.
func CreateResetToken(ctx context.Context, db *gorm.DB, userID, tokenHash string, expiresAt time.Time) (*domain.ResetToken, error) {
	rt := &domain.ResetToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rt).Error; err != nil {
		return nil, err
	}
	return rt, nil
}

// GetUnusedResetToken returns a token that has not been consumed, or ErrNotFound.
// Expiry is left to the caller so it can report it distinctly.
func GetUnusedResetToken(ctx context.Context, db *gorm.DB, tokenHash string) (*domain.ResetToken, error) {
	var rt domain.ResetToken
	err := db.WithContext(ctx).
		Where("token_hash = ? AND used_at IS NULL", tokenHash).
		First(&rt).Error
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// ConsumeResetToken marks the token used. Only the first caller succeeds;
// later ones get ErrNotFound.
func ConsumeResetToken(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).Model(&domain.ResetToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
