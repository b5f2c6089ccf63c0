package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/http/middleware"
	"github.com/tbourn/go-advisor-backend/internal/query"
	"github.com/tbourn/go-advisor-backend/internal/services"
)

// ---------- stubs ----------

type stubAuth struct {
	AuthService // unimplemented methods panic
	login       func(services.LoginRequest) error
	verifyEmail func(services.OTPRequest) (*services.VerifyEmailResult, error)
	reset       func(services.ResetPasswordRequest) error
	refresh     func(string) (string, error)
	change      func(services.ChangePasswordRequest) error
	del         func(string) error
	register    func(services.RegisterRequest) (*domain.User, error)
}

func (s stubAuth) Login(_ context.Context, r services.LoginRequest) error { return s.login(r) }
func (s stubAuth) VerifyEmail(_ context.Context, r services.OTPRequest) (*services.VerifyEmailResult, error) {
	return s.verifyEmail(r)
}
func (s stubAuth) ResetPassword(_ context.Context, r services.ResetPasswordRequest) error {
	return s.reset(r)
}
func (s stubAuth) RefreshToken(_ context.Context, t string) (string, error) { return s.refresh(t) }
func (s stubAuth) ChangePassword(_ context.Context, r services.ChangePasswordRequest) error {
	return s.change(r)
}
func (s stubAuth) DeleteAccount(_ context.Context, id string) error { return s.del(id) }
func (s stubAuth) Register(_ context.Context, r services.RegisterRequest) (*domain.User, error) {
	return s.register(r)
}

type stubConv struct {
	ask    func(services.AskRequest) (*services.AskResult, error)
	replay func(userID, turnID string) (*services.AskResult, error)
	turns  func(userID, roomID string, page, size int) ([]domain.Turn, int64, error)
	// version defaults to a failing lookup, which skips the ETag.
	version func(userID, roomID string) (int64, *time.Time, error)
}

func (s stubConv) Ask(_ context.Context, r services.AskRequest) (*services.AskResult, error) {
	return s.ask(r)
}
func (s stubConv) Replay(_ context.Context, u, t string) (*services.AskResult, error) {
	return s.replay(u, t)
}
func (s stubConv) ListTurns(_ context.Context, u, r string, p, n int) ([]domain.Turn, int64, error) {
	return s.turns(u, r, p, n)
}
func (s stubConv) TranscriptVersion(_ context.Context, u, r string) (int64, *time.Time, error) {
	if s.version == nil {
		return 0, nil, services.ErrRoomNotFound
	}
	return s.version(u, r)
}

type stubRooms struct {
	list func(userID string, params map[string]string) ([]domain.Room, query.Meta, error)
}

func (s stubRooms) List(_ context.Context, u string, p map[string]string) ([]domain.Room, query.Meta, error) {
	return s.list(u, p)
}

type savedIdem struct {
	userID, scope, key, turnID string
	status                     int
	ttl                        time.Duration
}

type stubIdem struct {
	saved []savedIdem
	err   error
}

func (s *stubIdem) Save(_ context.Context, userID, scope, key, turnID string, status int, ttl time.Duration) error {
	s.saved = append(s.saved, savedIdem{userID, scope, key, turnID, status, ttl})
	return s.err
}

type stubUsers struct {
	UserService
	update func(userID string, req services.UpdateProfileRequest, up *services.Upload) (*domain.User, error)
}

func (s stubUsers) UpdateProfile(_ context.Context, id string, r services.UpdateProfileRequest, up *services.Upload) (*domain.User, error) {
	return s.update(id, r, up)
}

type stubClients struct {
	ClientService
	create func(services.CreateClientRequest, *services.Upload) (*domain.Client, error)
	update func(id string, req services.UpdateClientRequest, up *services.Upload) (*domain.Client, error)
	del    func(id string) error
}

func (s stubClients) Create(_ context.Context, r services.CreateClientRequest, up *services.Upload) (*domain.Client, error) {
	return s.create(r, up)
}
func (s stubClients) Update(_ context.Context, id string, r services.UpdateClientRequest, up *services.Upload) (*domain.Client, error) {
	return s.update(id, r, up)
}
func (s stubClients) Delete(_ context.Context, id string) error { return s.del(id) }

// ---------- plumbing ----------

// newEngine returns a test engine that stamps a request id and, when uid is
// set, an authenticated user.
func newEngine(uid string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		if uid != "" {
			c.Set(middleware.CtxUserID, uid)
		}
		c.Next()
	})
	return r
}

func doJSON(r http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (Envelope, json.RawMessage) {
	t.Helper()
	var raw struct {
		Envelope
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return raw.Envelope, raw.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return e
}

func sp(s string) *string { return &s }
