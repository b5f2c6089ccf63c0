package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/services"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// multipartBody builds a form with an optional "data" JSON field and an
// optional "image" file.
func multipartBody(t *testing.T, data string, image []byte, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if data != "" {
		if err := mw.WriteField("data", data); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUpdateProfile_Multipart(t *testing.T) {
	var (
		gotUser string
		gotReq  services.UpdateProfileRequest
		gotUp   *services.Upload
		gotBody []byte
	)
	h := New(Deps{Users: stubUsers{update: func(id string, req services.UpdateProfileRequest, up *services.Upload) (*domain.User, error) {
		gotUser, gotReq, gotUp = id, req, up
		if up != nil {
			gotBody, _ = io.ReadAll(up.Body)
		}
		return &domain.User{ID: id, Name: *req.Name, Image: "users/abc.png"}, nil
	}}})
	r := newEngine("u1")
	r.PATCH("/users/update-profile", h.UpdateProfile)

	// The declared filename says jpg; the bytes are a PNG.
	body, ct := multipartBody(t, `{"name":"Jane Doe","country":"GR"}`, pngHeader, "avatar.jpg")
	req := httptest.NewRequest(http.MethodPatch, "/users/update-profile", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotUser != "u1" || gotReq.Name == nil || *gotReq.Name != "Jane Doe" || gotReq.Country == nil || gotReq.Phone != nil {
		t.Fatalf("bound request %+v for %q", gotReq, gotUser)
	}
	if gotUp == nil || gotUp.ContentType != "image/png" || gotUp.Size != int64(len(pngHeader)) {
		t.Fatalf("upload %+v", gotUp)
	}
	if !bytes.Equal(gotBody, pngHeader) {
		t.Fatalf("upload must be readable from the first byte")
	}
}

func TestUpdateProfile_JSONAndErrors(t *testing.T) {
	var gotUp *services.Upload
	h := New(Deps{MaxUploadBytes: 64, Users: stubUsers{update: func(id string, req services.UpdateProfileRequest, up *services.Upload) (*domain.User, error) {
		gotUp = up
		if req.Phone != nil && *req.Phone == "bad" {
			return nil, services.ErrInvalidInput
		}
		return &domain.User{ID: id}, nil
	}}})
	r := newEngine("u1")
	r.PATCH("/users/update-profile", h.UpdateProfile)

	w := doJSON(r, http.MethodPatch, "/users/update-profile", services.UpdateProfileRequest{Name: sp("Jane")}, nil)
	if w.Code != http.StatusOK || gotUp != nil {
		t.Fatalf("json path: %d upload=%v", w.Code, gotUp)
	}

	if w := doJSON(r, http.MethodPatch, "/users/update-profile", services.UpdateProfileRequest{Phone: sp("bad")}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("service rejection: %d", w.Code)
	}

	body, ct := multipartBody(t, `{"name":`, nil, "")
	req := httptest.NewRequest(http.MethodPatch, "/users/update-profile", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed data field: %d", w.Code)
	}

	big := bytes.Repeat([]byte{0}, 4<<20)
	body, ct = multipartBody(t, `{"name":"x"}`, big, "huge.png")
	req = httptest.NewRequest(http.MethodPatch, "/users/update-profile", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized upload: %d %s", w.Code, w.Body.String())
	}
}

func TestCreateUser_DoesNotLeakAccount(t *testing.T) {
	h := New(Deps{Auth: stubAuth{register: func(r services.RegisterRequest) (*domain.User, error) {
		if r.Email == "taken@example.com" {
			return nil, services.ErrEmailTaken
		}
		return &domain.User{ID: "u9", Email: r.Email}, nil
	}}})
	r := newEngine("")
	r.POST("/users/create-user", h.CreateUser)

	w := doJSON(r, http.MethodPost, "/users/create-user",
		services.RegisterRequest{Name: "Jane", Email: "jane@example.com", Password: "secret1"}, nil)
	_, data := decodeEnvelope(t, w)
	if w.Code != http.StatusOK || (len(data) != 0 && string(data) != "null") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/users/create-user",
		services.RegisterRequest{Name: "Jane", Email: "taken@example.com", Password: "secret1"}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: %d", w.Code)
	}
}
