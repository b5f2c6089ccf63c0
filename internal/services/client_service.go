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

// ClientRepository is the persistence contract of the client catalog.
type ClientRepository interface {
	Create(ctx context.Context, c *domain.Client) error
	Get(ctx context.Context, id string) (*domain.Client, error)
	List(ctx context.Context, params map[string]string, defLimit int) ([]domain.Client, query.Meta, error)
	// UpdateLive updates a client that is not soft-deleted, else ErrNotFound.
	UpdateLive(ctx context.Context, id string, fields map[string]any) error
	SoftDelete(ctx context.Context, id string) error
}

// CreateClientRequest is the payload of a new catalog entry.
type CreateClientRequest struct {
	Name        string `json:"name"        binding:"required"`
	Description string `json:"description"`
	Code        string `json:"code"        binding:"required"`
	Image       string `json:"image"`
}

// UpdateClientRequest changes the non-nil fields.
type UpdateClientRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Code        *string `json:"code"`
	Image       *string `json:"image"`
	IsDeleted   *bool   `json:"is_deleted"`
}

// ClientService manages the client catalog. Deletion is soft and final: a
// deleted client can be read and listed but never updated again.
type ClientService struct {
	Repo         ClientRepository
	Files        storage.Store
	DefaultLimit int
}

// NewClientService wires a ClientService. files may be nil to disable uploads.
func NewClientService(r ClientRepository, files storage.Store, defLimit int) *ClientService {
	return &ClientService{Repo: r, Files: files, DefaultLimit: defLimit}
}

// Create adds a client. An upload, when given, wins over req.Image.
func (s *ClientService) Create(ctx context.Context, req CreateClientRequest, up *Upload) (*domain.Client, error) {
	c := &domain.Client{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Code:        strings.TrimSpace(req.Code),
		Image:       strings.TrimSpace(req.Image),
	}
	if c.Name == "" || c.Code == "" {
		return nil, ErrInvalidInput
	}
	if up != nil {
		ref, err := putImage(ctx, s.Files, "clients", up)
		if err != nil {
			return nil, err
		}
		c.Image = ref
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		if up != nil {
			dropImage(ctx, s.Files, c.Image)
		}
		return nil, err
	}
	return c, nil
}

// Get returns a client, deleted or not.
func (s *ClientService) Get(ctx context.Context, id string) (*domain.Client, error) {
	c, err := s.Repo.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	return c, err
}

// List runs the list query. Searchable: name, code, description.
func (s *ClientService) List(ctx context.Context, params map[string]string) ([]domain.Client, query.Meta, error) {
	return s.Repo.List(ctx, params, s.DefaultLimit)
}

// Update changes a live client. A soft-deleted client yields ErrClientDeleted,
// including one deleted concurrently with this call.
func (s *ClientService) Update(ctx context.Context, id string, req UpdateClientRequest, up *Upload) (*domain.Client, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.IsDeleted {
		return nil, ErrClientDeleted
	}

	fields := map[string]any{}
	setTrimmed(fields, "name", req.Name)
	setTrimmed(fields, "description", req.Description)
	setTrimmed(fields, "code", req.Code)
	setTrimmed(fields, "image", req.Image)
	if req.IsDeleted != nil {
		fields["is_deleted"] = *req.IsDeleted
	}
	if fields["name"] == "" || fields["code"] == "" {
		return nil, ErrInvalidInput
	}

	var newImage string
	if up != nil {
		if newImage, err = putImage(ctx, s.Files, "clients", up); err != nil {
			return nil, err
		}
		fields["image"] = newImage
	}
	if len(fields) == 0 {
		return cur, nil
	}

	if err := s.Repo.UpdateLive(ctx, id, fields); err != nil {
		dropImage(ctx, s.Files, newImage)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientDeleted
		}
		return nil, err
	}
	if img, ok := fields["image"].(string); ok && img != cur.Image {
		dropImage(ctx, s.Files, cur.Image)
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes a client. Deleting twice is not an error.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	err := s.Repo.SoftDelete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrClientNotFound
	}
	return err
}
