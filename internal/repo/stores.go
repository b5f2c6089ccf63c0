package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/query"
)

// The store types bind the package functions to one *gorm.DB so services can
// depend on small interfaces instead of the database handle.

// Rooms is the room store.
type Rooms struct{ DB *gorm.DB }

// FindByID returns the caller's room, or ErrNotFound.
func (s Rooms) FindByID(ctx context.Context, id, userID string) (*domain.Room, error) {
	return GetRoom(ctx, s.DB, id, userID)
}

// Create opens a room named name.
func (s Rooms) Create(ctx context.Context, userID, name string) (*domain.Room, error) {
	return CreateRoom(ctx, s.DB, userID, name)
}

// ListByUser lists the caller's rooms through the list query builder.
func (s Rooms) ListByUser(ctx context.Context, userID string, params map[string]string, defLimit int) ([]domain.Room, query.Meta, error) {
	return ListRooms(ctx, s.DB, userID, params, defLimit)
}

// Turns is the turn store.
type Turns struct{ DB *gorm.DB }

// ListByRoom returns the whole transcript, oldest first.
func (s Turns) ListByRoom(ctx context.Context, roomID string) ([]domain.Turn, error) {
	return ListTurns(ctx, s.DB, roomID)
}

// Create appends a turn.
func (s Turns) Create(ctx context.Context, roomID, userID, question string, answer *string) (*domain.Turn, error) {
	return CreateTurn(ctx, s.DB, roomID, userID, question, answer)
}

// Page returns one page of the transcript and the total turn count.
func (s Turns) Page(ctx context.Context, roomID string, offset, limit int) ([]domain.Turn, int64, error) {
	total, err := CountTurns(ctx, s.DB, roomID)
	if err != nil || total == 0 {
		return []domain.Turn{}, total, err
	}
	items, err := ListTurnsPage(ctx, s.DB, roomID, offset, limit)
	return items, total, err
}

// Stats returns the turn count and the newest turn time of a room.
func (s Turns) Stats(ctx context.Context, roomID string) (int64, *time.Time, error) {
	return TurnsStats(ctx, s.DB, roomID)
}

// Get returns a turn owned by userID.
func (s Turns) Get(ctx context.Context, id, userID string) (*domain.Turn, error) {
	return GetTurn(ctx, s.DB, id, userID)
}

// Users is the user store, including reset tokens.
type Users struct{ DB *gorm.DB }

func (s Users) Create(ctx context.Context, u *domain.User) error { return CreateUser(ctx, s.DB, u) }

func (s Users) ByID(ctx context.Context, id string) (*domain.User, error) {
	return GetUserByID(ctx, s.DB, id)
}

func (s Users) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	return GetUserByEmail(ctx, s.DB, email)
}

func (s Users) Update(ctx context.Context, id string, fields map[string]any) error {
	return UpdateUser(ctx, s.DB, id, fields)
}

func (s Users) Delete(ctx context.Context, id string) error { return DeleteUser(ctx, s.DB, id) }

func (s Users) List(ctx context.Context, role string, params map[string]string, defLimit int) ([]domain.User, query.Meta, error) {
	return ListUsers(ctx, s.DB, role, params, defLimit)
}

// IssueResetToken stores a reset token hash and raises the user's reset flag
// in one transaction.
func (s Users) IssueResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := UpdateUser(ctx, tx, userID, map[string]any{
			"is_reset_password": true,
			"one_time_code":     "",
			"otp_expires_at":    nil,
		}); err != nil {
			return err
		}
		_, err := CreateResetToken(ctx, tx, userID, tokenHash, expiresAt)
		return err
	})
}

// ResetToken returns an unused token by hash, or ErrNotFound.
func (s Users) ResetToken(ctx context.Context, tokenHash string) (*domain.ResetToken, error) {
	return GetUnusedResetToken(ctx, s.DB, tokenHash)
}

// ResetPassword consumes the token and stores the new hash atomically. A
// token already consumed by a concurrent request yields ErrNotFound and
// leaves the password untouched.
func (s Users) ResetPassword(ctx context.Context, tokenID, userID, passwordHash string, at time.Time) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ConsumeResetToken(ctx, tx, tokenID, at); err != nil {
			return err
		}
		return UpdateUser(ctx, tx, userID, map[string]any{
			"password":          passwordHash,
			"is_reset_password": false,
		})
	})
}

// Clients is the client catalog store.
type Clients struct{ DB *gorm.DB }

func (s Clients) Create(ctx context.Context, c *domain.Client) error {
	return CreateClient(ctx, s.DB, c)
}

func (s Clients) Get(ctx context.Context, id string) (*domain.Client, error) {
	return GetClient(ctx, s.DB, id)
}

func (s Clients) List(ctx context.Context, params map[string]string, defLimit int) ([]domain.Client, query.Meta, error) {
	return ListClients(ctx, s.DB, params, defLimit)
}

func (s Clients) UpdateLive(ctx context.Context, id string, fields map[string]any) error {
	return UpdateLiveClient(ctx, s.DB, id, fields)
}

func (s Clients) SoftDelete(ctx context.Context, id string) error {
	return SoftDeleteClient(ctx, s.DB, id)
}

// Idempotency is the replay store used by the ask endpoint.
type Idempotency struct{ DB *gorm.DB }

// Lookup returns the turn id stored for (user, scope, key) if still valid.
func (s Idempotency) Lookup(ctx context.Context, userID, scope, key string, now time.Time) (string, bool, error) {
	rec, err := GetIdempotency(ctx, s.DB, userID, scope, key, now)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.TurnID, true, nil
}

// Save remembers turnID for (user, scope, key). A concurrent save of the same
// key is not an error.
func (s Idempotency) Save(ctx context.Context, userID, scope, key, turnID string, status int, ttl time.Duration) error {
	_, err := CreateIdempotency(ctx, s.DB, userID, scope, key, turnID, status, ttl)
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

// Purge drops expired records.
func (s Idempotency) Purge(ctx context.Context, now time.Time) (int64, error) {
	return PurgeIdempotency(ctx, s.DB, now)
}
