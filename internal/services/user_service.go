package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/query"
	"github.com/tbourn/go-advisor-backend/internal/storage"
)

// UpdateProfileRequest carries the profile fields to change; nil leaves a
// field as it is.
type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	PostCode *string `json:"post_code"`
	Country  *string `json:"country"`
}

// UserService serves profiles and the admin user listing.
type UserService struct {
	Users        UserRepository
	Files        storage.Store
	DefaultLimit int
}

// NewUserService wires a UserService. files may be nil to disable uploads.
func NewUserService(users UserRepository, files storage.Store, defLimit int) *UserService {
	return &UserService{Users: users, Files: files, DefaultLimit: defLimit}
}

// Profile returns the caller's account.
func (s *UserService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return s.GetUser(ctx, userID)
}

// GetUser returns any account by id.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.Users.ByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// ListUsers lists accounts with the user role. Searchable: name, email.
func (s *UserService) ListUsers(ctx context.Context, params map[string]string) ([]domain.User, query.Meta, error) {
	return s.Users.List(ctx, domain.RoleUser, params, s.DefaultLimit)
}

// UpdateProfile applies req and, when given, replaces the profile image. The
// previous image is removed only after the new one is saved.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest, up *Upload) (*domain.User, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	setTrimmed(fields, "name", req.Name)
	setTrimmed(fields, "phone", req.Phone)
	setTrimmed(fields, "address", req.Address)
	setTrimmed(fields, "post_code", req.PostCode)
	setTrimmed(fields, "country", req.Country)
	if v, ok := fields["name"]; ok && v == "" {
		return nil, ErrInvalidInput
	}

	var newImage string
	if up != nil {
		if newImage, err = putImage(ctx, s.Files, "avatars", up); err != nil {
			return nil, err
		}
		fields["image"] = newImage
	}
	if len(fields) == 0 {
		return u, nil
	}

	if err := s.Users.Update(ctx, userID, fields); err != nil {
		dropImage(ctx, s.Files, newImage)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if newImage != "" {
		dropImage(ctx, s.Files, u.Image)
	}
	return s.GetUser(ctx, userID)
}

func setTrimmed(fields map[string]any, col string, v *string) {
	if v != nil {
		fields[col] = strings.TrimSpace(*v)
	}
}
