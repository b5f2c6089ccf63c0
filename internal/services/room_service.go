package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/query"
)

// RoomRepository is the persistence contract of RoomService.
type RoomRepository interface {
	// FindByID returns the room only if userID owns it.
	FindByID(ctx context.Context, id, userID string) (*domain.Room, error)
	Create(ctx context.Context, userID, name string) (*domain.Room, error)
	ListByUser(ctx context.Context, userID string, params map[string]string, defLimit int) ([]domain.Room, query.Meta, error)
}

// ResolveRoomRequest selects the room a question goes to.
type ResolveRoomRequest struct {
	UserID     string
	Question   string
	RoomID     string
	CreateRoom bool
}

// RoomService decides which room a turn is written to.
type RoomService struct {
	Repo         RoomRepository
	DefaultLimit int
}

// NewRoomService returns a RoomService listing defLimit rooms per page by default.
func NewRoomService(r RoomRepository, defLimit int) *RoomService {
	return &RoomService{Repo: r, DefaultLimit: defLimit}
}

// Resolve applies the room policy:
//  1. a non-empty RoomID must name one of the caller's rooms, else ErrRoomNotFound;
//  2. with no room found, or CreateRoom set, a new room named after the
//     question is created and returned in its place.
//
// A valid RoomID together with CreateRoom still opens a new room.
func (s *RoomService) Resolve(ctx context.Context, req ResolveRoomRequest) (*domain.Room, error) {
	ctx, span := otel.Tracer("services/RoomService").Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("room.id", req.RoomID),
			attribute.Bool("room.create", req.CreateRoom),
		),
	)
	defer span.End()

	var room *domain.Room
	if req.RoomID != "" {
		r, err := s.Repo.FindByID(ctx, req.RoomID, req.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrRoomNotFound
			}
			return nil, fmt.Errorf("find room: %w", err)
		}
		room = r
	}
	if room == nil || req.CreateRoom {
		r, err := s.Repo.Create(ctx, req.UserID, req.Question)
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}
		span.SetAttributes(attribute.String("room.created", r.ID))
		return r, nil
	}
	return room, nil
}

// Get returns one of the caller's rooms.
func (s *RoomService) Get(ctx context.Context, userID, id string) (*domain.Room, error) {
	r, err := s.Repo.FindByID(ctx, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	return r, err
}

// List pages through the caller's rooms, newest first unless params say otherwise.
func (s *RoomService) List(ctx context.Context, userID string, params map[string]string) ([]domain.Room, query.Meta, error) {
	return s.Repo.ListByUser(ctx, userID, params, s.DefaultLimit)
}
