// Package services – ConversationService
//
// ConversationService answers a question inside a room. It resolves the
// room, replays the room's history to the completion service as a chat
// transcript behind a fixed persona, and stores the new turn.
//
// All public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/llm"
)

// Persona is the system prompt that opens every transcript.
const Persona = "You are an AI expert in business strategy. Answer business-related questions only."

// TurnRepository is the persistence contract for turns.
type TurnRepository interface {
	// ListByRoom returns turns ordered by (created_at, id) ascending.
	ListByRoom(ctx context.Context, roomID string) ([]domain.Turn, error)
	Create(ctx context.Context, roomID, userID, question string, answer *string) (*domain.Turn, error)
	Page(ctx context.Context, roomID string, offset, limit int) ([]domain.Turn, int64, error)
	Get(ctx context.Context, id, userID string) (*domain.Turn, error)
	// Stats reports the turn count and newest turn time of a room.
	Stats(ctx context.Context, roomID string) (int64, *time.Time, error)
}

// AskRequest is one question from a user.
type AskRequest struct {
	UserID     string
	Question   string
	RoomID     string
	CreateRoom bool
}

// AskResult is the room the turn landed in and the stored turn.
type AskResult struct {
	RoomID string       `json:"roomId"`
	Turn   *domain.Turn `json:"data"`
}

// ConversationService coordinates room resolution, completion and persistence.
type ConversationService struct {
	Rooms *RoomService
	Turns TurnRepository
	LLM   llm.Completer
	Model string

	// MaxQuestionRunes caps the question length; <= 0 disables the check.
	MaxQuestionRunes int

	// locks serializes turns per room when set.
	locks *keyedMutex
}

// NewConversationService wires the service. With serialize set, concurrent
// questions on the same room are answered one after another so each sees
// the previous turn in its history.
func NewConversationService(rooms *RoomService, turns TurnRepository, c llm.Completer, model string, maxRunes int, serialize bool) *ConversationService {
	s := &ConversationService{
		Rooms:            rooms,
		Turns:            turns,
		LLM:              c,
		Model:            model,
		MaxQuestionRunes: maxRunes,
	}
	if serialize {
		s.locks = newKeyedMutex()
	}
	return s
}

// Ask validates the question, resolves the room, asks the model with the
// room history and stores the resulting turn.
func (s *ConversationService) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Ask",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("room.id", req.RoomID),
			attribute.Bool("room.create", req.CreateRoom),
		),
	)
	defer span.End()

	q, err := s.normalizeQuestion(req.Question)
	if err != nil {
		return nil, err
	}

	room, err := s.Rooms.Resolve(ctx, ResolveRoomRequest{
		UserID:     req.UserID,
		Question:   q,
		RoomID:     req.RoomID,
		CreateRoom: req.CreateRoom,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("room.resolved", room.ID))

	if s.locks != nil {
		unlock := s.locks.Lock(room.ID)
		defer unlock()
	}

	history, err := s.Turns.ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	span.SetAttributes(attribute.Int("room.turns", len(history)))

	answer, err := s.LLM.Complete(ctx, llm.Request{Model: s.Model, Messages: Transcript(history, q)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		zerolog.Ctx(ctx).Warn().Err(err).Str("room_id", room.ID).Msg("completion failed")
		return nil, fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
	}

	turn, err := s.Turns.Create(ctx, room.ID, req.UserID, q, &answer)
	if err != nil {
		return nil, fmt.Errorf("save turn: %w", err)
	}
	return &AskResult{RoomID: room.ID, Turn: turn}, nil
}

// Replay returns a previously stored turn as an AskResult.
func (s *ConversationService) Replay(ctx context.Context, userID, turnID string) (*AskResult, error) {
	t, err := s.Turns.Get(ctx, turnID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTurnNotFound
		}
		return nil, err
	}
	return &AskResult{RoomID: t.RoomID, Turn: t}, nil
}

// ListTurns returns one page of a room's transcript, oldest first, after
// checking that the caller owns the room.
func (s *ConversationService) ListTurns(ctx context.Context, userID, roomID string, page, pageSize int) ([]domain.Turn, int64, error) {
	ctx, span := otel.Tracer("services/ConversationService").Start(ctx, "ListTurns",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if _, err := s.Rooms.Get(ctx, userID, roomID); err != nil {
		return nil, 0, err
	}
	return s.Turns.Page(ctx, roomID, (page-1)*pageSize, pageSize)
}

// TranscriptVersion identifies the current state of a room's transcript.
// Turns are append-only, so the count and the newest creation time change
// exactly when a page could.
func (s *ConversationService) TranscriptVersion(ctx context.Context, userID, roomID string) (int64, *time.Time, error) {
	if _, err := s.Rooms.Get(ctx, userID, roomID); err != nil {
		return 0, nil, err
	}
	return s.Turns.Stats(ctx, roomID)
}

// Transcript builds the completion input: the persona, then each stored
// turn as a user/assistant pair (a missing answer becomes ""), then the new
// question.
func Transcript(history []domain.Turn, question string) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: Persona})
	for _, t := range history {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.Question},
			llm.Message{Role: llm.RoleAssistant, Content: t.AnswerText()},
		)
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
}

func (s *ConversationService) normalizeQuestion(q string) (string, error) {
	q = norm.NFC.String(strings.TrimSpace(q))
	if q == "" {
		return "", ErrEmptyQuestion
	}
	if s.MaxQuestionRunes > 0 && utf8.RuneCountInString(q) > s.MaxQuestionRunes {
		return "", ErrQuestionTooLong
	}
	return q, nil
}
