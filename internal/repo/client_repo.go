package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/query"
)

// ClientSearchFields are matched by searchTerm on client listings.
var ClientSearchFields = []string{"name", "code", "description"}

// CreateClient inserts c with a fresh id.
func CreateClient(ctx context.Context, db *gorm.DB, c *domain.Client) error {
	c.ID = uuid.NewString()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	return db.WithContext(ctx).Create(c).Error
}

// GetClient fetches a client regardless of its deleted flag, or ErrNotFound.
func GetClient(ctx context.Context, db *gorm.DB, id string) (*domain.Client, error) {
	var c domain.Client
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateLiveClient applies fields to a client that is not soft-deleted. The
// deleted check is part of the UPDATE so a concurrent delete cannot slip in
// between read and write; zero rows affected returns ErrNotFound.
func UpdateLiveClient(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.Client{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteClient sets is_deleted. It returns ErrNotFound when no such client exists.
func SoftDeleteClient(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Model(&domain.Client{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListClients runs the list query over all clients.
func ListClients(ctx context.Context, db *gorm.DB, params map[string]string, defLimit int) ([]domain.Client, query.Meta, error) {
	var out []domain.Client
	meta, err := query.New(db, &domain.Client{}, params, query.WithDefaultLimit(defLimit)).
		Run(ctx, &out, ClientSearchFields...)
	return out, meta, err
}
