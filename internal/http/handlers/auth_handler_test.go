package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tbourn/go-advisor-backend/internal/services"
)

func TestLogin(t *testing.T) {
	h := New(Deps{Auth: stubAuth{login: func(r services.LoginRequest) error {
		if r.Email == "ghost@example.com" {
			return services.ErrUserNotFound
		}
		if r.Password != "secret1" {
			return services.ErrInvalidCredentials
		}
		return nil
	}}})
	r := newEngine("")
	r.POST("/auth/login", h.Login)

	w := doJSON(r, http.MethodPost, "/auth/login", services.LoginRequest{Email: "jane@example.com", Password: "secret1"}, nil)
	env, _ := decodeEnvelope(t, w)
	if w.Code != http.StatusOK || env.Message != "We have sent a login code to your email" {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	cases := []struct {
		body   any
		status int
	}{
		{services.LoginRequest{Email: "jane@example.com", Password: "nope"}, http.StatusBadRequest},
		{services.LoginRequest{Email: "ghost@example.com", Password: "x"}, http.StatusNotFound},
		{`{"email":"not-an-email","password":"x"}`, http.StatusBadRequest},
		{nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if w := doJSON(r, http.MethodPost, "/auth/login", tc.body, nil); w.Code != tc.status {
			t.Fatalf("body %v: status=%d want %d", tc.body, w.Code, tc.status)
		}
	}
}

func TestVerifyEmail_MessageFollowsPath(t *testing.T) {
	var res services.VerifyEmailResult
	h := New(Deps{Auth: stubAuth{verifyEmail: func(r services.OTPRequest) (*services.VerifyEmailResult, error) {
		if r.OTP != "123456" {
			t.Fatalf("oneTimeCode not bound: %+v", r)
		}
		return &res, nil
	}}})
	r := newEngine("")
	r.POST("/auth/verify-email", h.VerifyEmail)
	body := `{"email":"jane@example.com","oneTimeCode":"123456"}`

	res = services.VerifyEmailResult{Verified: true}
	w := doJSON(r, http.MethodPost, "/auth/verify-email", body, nil)
	if env, _ := decodeEnvelope(t, w); env.Message != "Email verified successfully" {
		t.Fatalf("registration path: %s", w.Body.String())
	}

	res = services.VerifyEmailResult{Verified: true, ResetToken: "tok"}
	w = doJSON(r, http.MethodPost, "/auth/verify-email", body, nil)
	env, data := decodeEnvelope(t, w)
	var got services.VerifyEmailResult
	_ = json.Unmarshal(data, &got)
	if env.Message != "Verification successful, use the token to reset your password" || got.ResetToken != "tok" {
		t.Fatalf("reset path: %s", w.Body.String())
	}
}

func TestResetPassword_TokenSources(t *testing.T) {
	var gotToken string
	h := New(Deps{Auth: stubAuth{reset: func(r services.ResetPasswordRequest) error {
		gotToken = r.Token
		if r.Token == "used" {
			return services.ErrUnauthorized
		}
		return nil
	}}})
	r := newEngine("")
	r.POST("/auth/reset-password", h.ResetPassword)
	pw := map[string]string{"newPassword": "newpass1", "confirmPassword": "newpass1"}

	w := doJSON(r, http.MethodPost, "/auth/reset-password", pw, map[string]string{"Authorization": "hdr-token"})
	if w.Code != http.StatusOK || gotToken != "hdr-token" {
		t.Fatalf("header token: %d %q", w.Code, gotToken)
	}

	withBody := map[string]string{"token": "body-token", "newPassword": "newpass1", "confirmPassword": "newpass1"}
	w = doJSON(r, http.MethodPost, "/auth/reset-password", withBody, map[string]string{"Authorization": "Bearer hdr-token"})
	if w.Code != http.StatusOK || gotToken != "body-token" {
		t.Fatalf("body token should win: %d %q", w.Code, gotToken)
	}

	if w := doJSON(r, http.MethodPost, "/auth/reset-password", pw, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/auth/reset-password", pw, map[string]string{"Authorization": "used"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("used token: %d", w.Code)
	}
}

func TestRefreshToken(t *testing.T) {
	h := New(Deps{Auth: stubAuth{refresh: func(tok string) (string, error) {
		if tok != "r1" {
			return "", services.ErrUnauthorized
		}
		return "a1", nil
	}}})
	r := newEngine("")
	r.POST("/auth/refresh-token", h.RefreshToken)

	for _, tc := range []struct {
		name string
		body any
		hdr  map[string]string
	}{
		{"body", RefreshTokenRequest{RefreshToken: "r1"}, nil},
		{"header without body", nil, map[string]string{"Authorization": "r1"}},
	} {
		w := doJSON(r, http.MethodPost, "/auth/refresh-token", tc.body, tc.hdr)
		_, data := decodeEnvelope(t, w)
		if w.Code != http.StatusOK || string(data) != `{"accessToken":"a1"}` {
			t.Fatalf("%s: %d %s", tc.name, w.Code, w.Body.String())
		}
	}

	if w := doJSON(r, http.MethodPost, "/auth/refresh-token", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/auth/refresh-token", RefreshTokenRequest{RefreshToken: "stale"}, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", w.Code)
	}
}

func TestChangePassword_UsesCaller(t *testing.T) {
	var got services.ChangePasswordRequest
	h := New(Deps{Auth: stubAuth{change: func(r services.ChangePasswordRequest) error {
		got = r
		if r.CurrentPassword != "old" {
			return services.ErrWrongPassword
		}
		return nil
	}}})
	r := newEngine("u7")
	r.POST("/auth/change-password", h.ChangePassword)

	// A user id smuggled in the body is ignored.
	body := `{"UserID":"someone-else","currentPassword":"old","newPassword":"newpass1","confirmPassword":"newpass1"}`
	w := doJSON(r, http.MethodPost, "/auth/change-password", body, nil)
	if w.Code != http.StatusOK || got.UserID != "u7" {
		t.Fatalf("status=%d req=%+v", w.Code, got)
	}

	body = `{"currentPassword":"bad","newPassword":"newpass1","confirmPassword":"newpass1"}`
	if w := doJSON(r, http.MethodPost, "/auth/change-password", body, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("wrong password: %d", w.Code)
	}
}

func TestDeleteAccount(t *testing.T) {
	var deleted string
	h := New(Deps{Auth: stubAuth{del: func(id string) error {
		if id == "gone" {
			return services.ErrUserNotFound
		}
		deleted = id
		return nil
	}}})

	r := newEngine("u3")
	r.DELETE("/auth/delete-account", h.DeleteAccount)
	if w := doJSON(r, http.MethodDelete, "/auth/delete-account", nil, nil); w.Code != http.StatusNoContent || deleted != "u3" {
		t.Fatalf("status=%d deleted=%q", w.Code, deleted)
	}

	r = newEngine("gone")
	r.DELETE("/auth/delete-account", h.DeleteAccount)
	if w := doJSON(r, http.MethodDelete, "/auth/delete-account", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown user: %d", w.Code)
	}
}
