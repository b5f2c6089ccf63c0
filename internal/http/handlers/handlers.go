package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/http/middleware"
	"github.com/tbourn/go-advisor-backend/internal/query"
	"github.com/tbourn/go-advisor-backend/internal/services"
)

// Service contracts used by the handlers. The concrete types live in
// internal/services; tests substitute stubs.
type (
	AuthService interface {
		Register(ctx context.Context, req services.RegisterRequest) (*domain.User, error)
		CreateModerator(ctx context.Context, req services.RegisterRequest) (*domain.User, error)
		Login(ctx context.Context, req services.LoginRequest) error
		VerifyLoginOTP(ctx context.Context, req services.OTPRequest) (*services.Session, error)
		SocialLogin(ctx context.Context, req services.SocialLoginRequest) (*services.Session, error)
		VerifyEmail(ctx context.Context, req services.OTPRequest) (*services.VerifyEmailResult, error)
		ForgetPassword(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, req services.ResetPasswordRequest) error
		ChangePassword(ctx context.Context, req services.ChangePasswordRequest) error
		RefreshToken(ctx context.Context, token string) (string, error)
		ResendVerification(ctx context.Context, email string) error
		DeleteAccount(ctx context.Context, userID string) error
	}

	UserService interface {
		Profile(ctx context.Context, userID string) (*domain.User, error)
		GetUser(ctx context.Context, id string) (*domain.User, error)
		ListUsers(ctx context.Context, params map[string]string) ([]domain.User, query.Meta, error)
		UpdateProfile(ctx context.Context, userID string, req services.UpdateProfileRequest, up *services.Upload) (*domain.User, error)
	}

	ClientService interface {
		Create(ctx context.Context, req services.CreateClientRequest, up *services.Upload) (*domain.Client, error)
		Get(ctx context.Context, id string) (*domain.Client, error)
		List(ctx context.Context, params map[string]string) ([]domain.Client, query.Meta, error)
		Update(ctx context.Context, id string, req services.UpdateClientRequest, up *services.Upload) (*domain.Client, error)
		Delete(ctx context.Context, id string) error
	}

	ConversationService interface {
		Ask(ctx context.Context, req services.AskRequest) (*services.AskResult, error)
		Replay(ctx context.Context, userID, turnID string) (*services.AskResult, error)
		ListTurns(ctx context.Context, userID, roomID string, page, pageSize int) ([]domain.Turn, int64, error)
		TranscriptVersion(ctx context.Context, userID, roomID string) (int64, *time.Time, error)
	}

	RoomService interface {
		List(ctx context.Context, userID string, params map[string]string) ([]domain.Room, query.Meta, error)
	}

	// IdempotencyStore records the turn produced for an Idempotency-Key.
	IdempotencyStore interface {
		Save(ctx context.Context, userID, scope, key, turnID string, status int, ttl time.Duration) error
	}
)

// Deps bundles what New needs.
type Deps struct {
	Auth           AuthService
	Users          UserService
	Clients        ClientService
	Conversations  ConversationService
	Rooms          RoomService
	Idempotency    IdempotencyStore
	IdempotencyTTL time.Duration
	// MaxUploadBytes caps a whole multipart request.
	MaxUploadBytes int64
	DefaultLimit   int
}

// Handlers wires HTTP endpoints to the services.
type Handlers struct {
	auth     AuthService
	users    UserService
	clients  ClientService
	conv     ConversationService
	rooms    RoomService
	idem     IdempotencyStore
	idemTTL  time.Duration
	maxBody  int64
	defLimit int
}

// New returns Handlers backed by d.
func New(d Deps) *Handlers {
	if d.IdempotencyTTL <= 0 {
		d.IdempotencyTTL = 24 * time.Hour
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 5 << 20
	}
	return &Handlers{
		auth:     d.Auth,
		users:    d.Users,
		clients:  d.Clients,
		conv:     d.Conversations,
		rooms:    d.Rooms,
		idem:     d.Idempotency,
		idemTTL:  d.IdempotencyTTL,
		maxBody:  d.MaxUploadBytes,
		defLimit: d.DefaultLimit,
	}
}

// multipart field names.
const (
	formData  = "data"
	formImage = "image"
	// multipartSlack covers the JSON part and multipart framing.
	multipartSlack = 1 << 20
)

// bindJSON binds and validates a JSON body, answering 400 itself on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return false
	}
	return true
}

// bindWithImage accepts either a JSON body, or a multipart form whose "data"
// field holds the JSON and whose optional "image" part is the upload. The
// returned release func closes the upload and is never nil.
func (h *Handlers) bindWithImage(c *gin.Context, dst any) (*services.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(dst); err != nil {
			return nil, noop, err
		}
		return nil, noop, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody+multipartSlack)
	if _, err := c.MultipartForm(); err != nil {
		return nil, noop, err
	}
	if raw := c.PostForm(formData); raw != "" {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return nil, noop, fmt.Errorf("data: %w", err)
		}
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return nil, noop, err
	}

	fh, err := c.FormFile(formImage)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	// The declared part type is client-controlled; sniff instead.
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, noop, err
	}
	up := &services.Upload{Body: f, Size: fh.Size, ContentType: http.DetectContentType(head[:n])}
	return up, func() { _ = f.Close() }, nil
}

// bindMessage turns a binding error into a short client message.
func bindMessage(err error) string {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return "request body too large"
	case errors.Is(err, io.EOF):
		return "request body required"
	default:
		return "invalid request: " + err.Error()
	}
}

// listParams flattens the query string into the list builder's params.
func listParams(c *gin.Context) map[string]string {
	q := c.Request.URL.Query()
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// currentUser is the id stored by middleware.Auth.
func currentUser(c *gin.Context) string { return middleware.UserID(c) }
