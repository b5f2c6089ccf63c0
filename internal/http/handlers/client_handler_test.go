package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/services"
)

func TestCreateClient(t *testing.T) {
	var gotUp *services.Upload
	h := New(Deps{Clients: stubClients{create: func(r services.CreateClientRequest, up *services.Upload) (*domain.Client, error) {
		gotUp = up
		return &domain.Client{ID: "c1", Name: r.Name, Code: r.Code}, nil
	}}})
	r := newEngine("admin-1")
	r.POST("/clients/create-client", h.CreateClient)

	w := doJSON(r, http.MethodPost, "/clients/create-client", services.CreateClientRequest{Name: "Acme", Code: "ACM"}, nil)
	if w.Code != http.StatusCreated || gotUp != nil {
		t.Fatalf("json: %d %s", w.Code, w.Body.String())
	}

	// Validation runs on the JSON inside the multipart "data" field too.
	body, ct := multipartBody(t, `{"name":"Acme"}`, pngHeader, "logo.png")
	req := httptest.NewRequest(http.MethodPost, "/clients/create-client", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing code: %d", w.Code)
	}

	body, ct = multipartBody(t, `{"name":"Acme","code":"ACM"}`, pngHeader, "logo.png")
	req = httptest.NewRequest(http.MethodPost, "/clients/create-client", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated || gotUp == nil || gotUp.ContentType != "image/png" {
		t.Fatalf("multipart: %d upload=%+v", w.Code, gotUp)
	}
}

func TestUpdateClient_DeletedIsRejected(t *testing.T) {
	h := New(Deps{Clients: stubClients{update: func(id string, r services.UpdateClientRequest, _ *services.Upload) (*domain.Client, error) {
		switch id {
		case "deleted":
			return nil, services.ErrClientDeleted
		case "missing":
			return nil, services.ErrClientNotFound
		}
		return &domain.Client{ID: id, Name: *r.Name}, nil
	}}})
	r := newEngine("admin-1")
	r.PATCH("/clients/:id", h.UpdateClient)

	for _, tc := range []struct {
		id     string
		status int
	}{
		{"c1", http.StatusOK},
		{"deleted", http.StatusBadRequest},
		{"missing", http.StatusNotFound},
	} {
		w := doJSON(r, http.MethodPatch, "/clients/"+tc.id, services.UpdateClientRequest{Name: sp("Renamed")}, nil)
		if w.Code != tc.status {
			t.Fatalf("%s: status=%d want %d", tc.id, w.Code, tc.status)
		}
	}
}

func TestDeleteClient(t *testing.T) {
	h := New(Deps{Clients: stubClients{del: func(id string) error {
		if id != "c1" {
			return services.ErrClientNotFound
		}
		return nil
	}}})
	r := newEngine("admin-1")
	r.DELETE("/clients/:id", h.DeleteClient)

	w := doJSON(r, http.MethodDelete, "/clients/c1", nil, nil)
	env, _ := decodeEnvelope(t, w)
	if w.Code != http.StatusOK || env.Message != "Client deleted successfully" {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w := doJSON(r, http.MethodDelete, "/clients/nope", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", w.Code)
	}
}
