package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-advisor-backend/internal/query"
	"github.com/tbourn/go-advisor-backend/internal/services"
)

func Test_fail_500_LogsAndBody(t *testing.T) {
	r := newEngine("")
	var buf bytes.Buffer
	lg := zerolog.New(&buf)
	r.Use(func(c *gin.Context) { c.Set("logger", &lg); c.Next() })
	r.GET("/boom", func(c *gin.Context) { fail(c, http.StatusInternalServerError, ErrCodeInternal, "kaboom") })

	w := doJSON(r, http.MethodGet, "/boom", nil, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	resp := decodeError(t, w)
	if resp.RequestID != "rid-test" || resp.Code != ErrCodeInternal || resp.Message != "kaboom" {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func Test_failErr_KindMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{services.ErrEmptyQuestion, http.StatusBadRequest, ErrCodeBadRequest, "question is empty"},
		{services.ErrTokenExpired, http.StatusUnauthorized, ErrCodeUnauthorized, "reset token expired"},
		{services.ErrRoomNotFound, http.StatusNotFound, ErrCodeNotFound, "room not found"},
		{services.ErrEmailTaken, http.StatusConflict, ErrCodeConflict, "email already registered"},
		{fmt.Errorf("%w: %v", services.ErrCompletionUnavailable, "quota exceeded for key abc"),
			http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "completion service unavailable"},
		{errors.New("disk I/O error at /var/lib/db"), http.StatusInternalServerError, ErrCodeInternal, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			r := newEngine("")
			var recorded int
			r.GET("/x", func(c *gin.Context) {
				failErr(c, tc.err)
				recorded = len(c.Errors)
			})
			w := doJSON(r, http.MethodGet, "/x", nil, nil)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			resp := decodeError(t, w)
			if resp.Code != tc.code || resp.Message != tc.message {
				t.Fatalf("unexpected body: %+v", resp)
			}
			if tc.status >= 500 && recorded != 1 {
				t.Fatalf("5xx errors must be attached to the context for the access log")
			}
		})
	}
}

func Test_Fail_And_SuccessHelpers(t *testing.T) {
	r := newEngine("")
	r.GET("/nf", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "missing") })
	r.GET("/ok", func(c *gin.Context) { respond(c, http.StatusOK, "fine", gin.H{"a": 1}) })
	r.GET("/page", func(c *gin.Context) {
		respondPage(c, "listed", []int{1, 2}, query.Meta{Page: 2, Limit: 2, Total: 5, TotalPages: 3, HasNext: true})
	})
	r.DELETE("/gone", func(c *gin.Context) { noContent(c) })

	if w := doJSON(r, http.MethodGet, "/nf", nil, nil); w.Code != http.StatusNotFound || decodeError(t, w).Message != "missing" {
		t.Fatalf("Fail: %d %s", w.Code, w.Body.String())
	}

	w := doJSON(r, http.MethodGet, "/ok", nil, nil)
	env, data := decodeEnvelope(t, w)
	if !env.Success || env.Message != "fine" || string(data) != `{"a":1}` || env.Meta != nil {
		t.Fatalf("respond: %s", w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/page", nil, nil)
	env, _ = decodeEnvelope(t, w)
	if env.Meta == nil || env.Meta.Total != 5 || !env.Meta.HasNext {
		t.Fatalf("respondPage: %s", w.Body.String())
	}

	req := httptest.NewRequest(http.MethodDelete, "/gone", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("noContent: %d %q", rec.Code, rec.Body.String())
	}
}

func Test_listParams_FirstValue(t *testing.T) {
	r := newEngine("")
	var got map[string]string
	r.GET("/l", func(c *gin.Context) { got = listParams(c) })
	doJSON(r, http.MethodGet, "/l?searchTerm=ebitda&page=2&page=3&sort=-created_at", nil, nil)
	if got["searchTerm"] != "ebitda" || got["page"] != "2" || got["sort"] != "-created_at" || len(got) != 3 {
		t.Fatalf("listParams: %v", got)
	}
}
