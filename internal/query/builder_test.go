package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-advisor-backend/internal/domain"
)

func newQueryDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:query_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Client{}, &domain.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedClients inserts n clients named "Client 01".."Client n" one second apart.
func seedClients(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		c := domain.Client{
			ID:        fmt.Sprintf("c%02d", i),
			Name:      fmt.Sprintf("Client %02d", i),
			Code:      fmt.Sprintf("A%02d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func names(cs []domain.Client) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestPaginate_SecondPageAndTotalPages(t *testing.T) {
	db := newQueryDB(t)
	seedClients(t, db, 12)

	params := map[string]string{"page": "2", "limit": "5", "sortBy": "created_at", "order": "asc"}
	var got []domain.Client
	meta, err := New(db, &domain.Client{}, params).Run(context.Background(), &got)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"Client 06", "Client 07", "Client 08", "Client 09", "Client 10"}
	if fmt.Sprint(names(got)) != fmt.Sprint(want) {
		t.Fatalf("page 2 = %v; want %v", names(got), want)
	}
	if meta.Total != 12 || meta.TotalPages != 3 || meta.Page != 2 || meta.Limit != 5 || !meta.HasNext {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestSort_DefaultsToNewestFirst(t *testing.T) {
	db := newQueryDB(t)
	seedClients(t, db, 3)

	var got []domain.Client
	if _, err := New(db, &domain.Client{}, nil).Run(context.Background(), &got); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 3 || got[0].Name != "Client 03" || got[2].Name != "Client 01" {
		t.Fatalf("default order = %v", names(got))
	}
}

func TestSort_UnknownFieldFallsBack(t *testing.T) {
	db := newQueryDB(t)
	seedClients(t, db, 3)

	var got []domain.Client
	params := map[string]string{"sortBy": "nope", "sortOrder": "asc"}
	if _, err := New(db, &domain.Client{}, params).Run(context.Background(), &got); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got[0].Name != "Client 01" {
		t.Fatalf("expected created_at asc fallback, got %v", names(got))
	}
}

func TestSort_SortParamIsNotAFilter(t *testing.T) {
	db := newQueryDB(t)
	seedClients(t, db, 3)

	cases := map[string][]string{
		"-created_at": {"Client 03", "Client 02", "Client 01"},
		"created_at":  {"Client 01", "Client 02", "Client 03"},
		"-name":       {"Client 03", "Client 02", "Client 01"},
		"name":        {"Client 01", "Client 02", "Client 03"},
	}
	for sort, want := range cases {
		var got []domain.Client
		meta, err := New(db, &domain.Client{}, map[string]string{"sort": sort}).Run(context.Background(), &got)
		if err != nil {
			t.Fatalf("sort=%s: %v", sort, err)
		}
		if meta.Total != 3 || fmt.Sprint(names(got)) != fmt.Sprint(want) {
			t.Fatalf("sort=%s: total=%d order=%v; want %v", sort, meta.Total, names(got), want)
		}
	}
}

func TestSort_DashPrefixOnSortByMeansDescending(t *testing.T) {
	db := newQueryDB(t)
	seedClients(t, db, 3)

	var got []domain.Client
	params := map[string]string{"sortBy": "-name", "sortOrder": "asc"}
	if _, err := New(db, &domain.Client{}, params).Run(context.Background(), &got); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got[0].Name != "Client 03" {
		t.Fatalf("sortBy=-name = %v; want descending", names(got))
	}

	got = nil
	params = map[string]string{"sortBy": "name", "sortOrder": "asc"}
	if _, err := New(db, &domain.Client{}, params).Run(context.Background(), &got); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got[0].Name != "Client 01" {
		t.Fatalf("sortBy=name&sortOrder=asc = %v; want ascending", names(got))
	}
}

func TestSearch_CaseInsensitiveSubstring(t *testing.T) {
	db := newQueryDB(t)
	for i, n := range []string{"Aspirin 500mg", "Ibuprofen", "Paracetamol"} {
		db.Create(&domain.Client{ID: fmt.Sprint(i), Name: n, Code: "X"})
	}

	var got []domain.Client
	meta, err := New(db, &domain.Client{}, map[string]string{"searchTerm": "aspirin"}).
		Run(context.Background(), &got, "name")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Aspirin 500mg" || meta.Total != 1 {
		t.Fatalf("search = %v (total %d)", names(got), meta.Total)
	}
}

func TestSearch_OrAcrossFieldsAndEscapesWildcards(t *testing.T) {
	db := newQueryDB(t)
	db.Create(&domain.Client{ID: "1", Name: "Alpha", Code: "N02BA01"})
	db.Create(&domain.Client{ID: "2", Name: "n02 beta", Code: "ZZ"})
	db.Create(&domain.Client{ID: "3", Name: "Gamma", Code: "QQ"})
	db.Create(&domain.Client{ID: "4", Name: "100% pure", Code: "PP"})

	var got []domain.Client
	if _, err := New(db, &domain.Client{}, map[string]string{"searchTerm": "N02"}).
		Run(context.Background(), &got, "name", "code"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("OR search = %v; want 2 rows", names(got))
	}

	got = nil
	if _, err := New(db, &domain.Client{}, map[string]string{"searchTerm": "%"}).
		Run(context.Background(), &got, "name"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 1 || got[0].Name != "100% pure" {
		t.Fatalf("%% must be literal, got %v", names(got))
	}
}

func TestFilter_ExactMatchWithTypedValues(t *testing.T) {
	db := newQueryDB(t)
	db.Create(&domain.Client{ID: "1", Name: "Live", Code: "A"})
	db.Create(&domain.Client{ID: "2", Name: "Gone", Code: "B", IsDeleted: true})

	for _, key := range []string{"is_deleted", "isDeleted", "IsDeleted"} {
		var got []domain.Client
		meta, err := New(db, &domain.Client{}, map[string]string{key: "true"}).Run(context.Background(), &got)
		if err != nil {
			t.Fatalf("%s: %v", key, err)
		}
		if len(got) != 1 || got[0].Name != "Gone" || meta.Total != 1 {
			t.Fatalf("%s filter = %v", key, names(got))
		}
	}
}

func TestFilter_UnknownOrInvalidMatchesNothing(t *testing.T) {
	db := newQueryDB(t)
	seedClients(t, db, 3)

	cases := []map[string]string{
		{"colour": "red"},
		{"is_deleted": "sometimes"},
	}
	for _, params := range cases {
		var got []domain.Client
		meta, err := New(db, &domain.Client{}, params).Run(context.Background(), &got)
		if err != nil {
			t.Fatalf("%v: unexpected error %v", params, err)
		}
		if len(got) != 0 || meta.Total != 0 || meta.TotalPages != 0 {
			t.Fatalf("%v: expected empty result, got %v", params, names(got))
		}
	}
}

func TestFilter_HiddenColumnsAreNotFilterable(t *testing.T) {
	db := newQueryDB(t)
	db.Create(&domain.User{ID: "u1", Name: "A", Email: "a@x.io", Role: domain.RoleUser, Password: "hash"})

	var got []domain.User
	if _, err := New(db, &domain.User{}, map[string]string{"password": "hash"}).Run(context.Background(), &got); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("filtering on a hidden column must match nothing")
	}
}

func TestMalformedNumbersFallBackToDefaults(t *testing.T) {
	db := newQueryDB(t)
	seedClients(t, db, 12)

	var got []domain.Client
	meta, err := New(db, &domain.Client{}, map[string]string{"page": "abc", "limit": "-4"}, WithDefaultLimit(10)).
		Run(context.Background(), &got)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if meta.Page != 1 || meta.Limit != 10 || len(got) != 10 || meta.TotalPages != 2 {
		t.Fatalf("meta=%+v len=%d", meta, len(got))
	}
}

func TestFields_ProjectionKeepsPrimaryKey(t *testing.T) {
	db := newQueryDB(t)
	db.Create(&domain.Client{ID: "1", Name: "Aspirin", Code: "N02", Description: "pain"})

	var got []domain.Client
	if _, err := New(db, &domain.Client{}, map[string]string{"fields": "name,bogus"}).Run(context.Background(), &got); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" || got[0].Name != "Aspirin" || got[0].Code != "" || got[0].Description != "" {
		t.Fatalf("projection = %+v", got)
	}

	got = nil
	if _, err := New(db, &domain.Client{}, map[string]string{"fields": "-description"}).Run(context.Background(), &got); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got[0].Description != "" || got[0].Code != "N02" {
		t.Fatalf("omit projection = %+v", got[0])
	}
}

func TestWithScope_AppliesToCount(t *testing.T) {
	db := newQueryDB(t)
	db.Create(&domain.User{ID: "u1", Name: "Ann", Email: "ann@x.io", Role: domain.RoleUser})
	db.Create(&domain.User{ID: "u2", Name: "Anna", Email: "anna@x.io", Role: domain.RoleAdmin})

	var got []domain.User
	meta, err := New(db, &domain.User{}, map[string]string{"searchTerm": "ann"},
		WithScope(func(tx *gorm.DB) *gorm.DB { return tx.Where("role = ?", domain.RoleUser) }),
	).Run(context.Background(), &got, "name", "email")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 1 || meta.Total != 1 || got[0].ID != "u1" {
		t.Fatalf("scoped search = %+v meta=%+v", got, meta)
	}
}
