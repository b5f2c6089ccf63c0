package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-advisor-backend/internal/llm"
	"github.com/tbourn/go-advisor-backend/internal/notify"
	"github.com/tbourn/go-advisor-backend/internal/repo"
	"github.com/tbourn/go-advisor-backend/internal/storage"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

var bg = context.Background()

// fakeCompleter records every request and answers from a script.
type fakeCompleter struct {
	mu     sync.Mutex
	calls  []llm.Request
	answer string
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeCompleter) last() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// mailbox is a synchronous Notifier.
type mailbox struct {
	mu   sync.Mutex
	sent []notify.Email
}

func (m *mailbox) Notify(_ context.Context, e notify.Email) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
}

func (m *mailbox) lastKind() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Kind
}

// memStore is an in-memory storage.Store.
type memStore struct {
	files   map[string]string
	deleted []string
	putErr  error
}

func newMemStore() *memStore { return &memStore{files: map[string]string{}} }

func (m *memStore) Put(_ context.Context, key, _ string, r io.Reader, _ int64) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	b, _ := io.ReadAll(r)
	ref := "/uploads/" + key
	m.files[ref] = string(b)
	return ref, nil
}

func (m *memStore) Delete(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, "/uploads/") {
		return storage.ErrForeignRef
	}
	m.deleted = append(m.deleted, ref)
	delete(m.files, ref)
	return nil
}

func pngUpload(body string) *Upload {
	return &Upload{Body: strings.NewReader(body), Size: int64(len(body)), ContentType: "image/png"}
}

func sp(s string) *string { return &s }
