package repo

import (
	"errors"
	"testing"
	"time"
)

func TestGetIdempotency_BlankScopeOrKey(t *testing.T) {
	db := newRepoDB(t, false)
	now := time.Now().UTC()
	for _, tc := range [][2]string{{"  ", "k"}, {"/ans/create", ""}} {
		if rec, err := GetIdempotency(ctx, db, "u1", tc[0], tc[1], now); rec != nil || !errors.Is(err, ErrNotFound) {
			t.Fatalf("scope=%q key=%q: got (%v, %v)", tc[0], tc[1], rec, err)
		}
	}
}

func TestIdempotency_CreateGetDuplicateAndExpiry(t *testing.T) {
	db := newRepoDB(t, false)

	rec, err := CreateIdempotency(ctx, db, "u1", "/ans/create", "k1", "turn-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := GetIdempotency(ctx, db, "u1", "/ans/create", "k1", time.Now().UTC())
	if err != nil || got.TurnID != "turn-1" || got.ID != rec.ID {
		t.Fatalf("get: rec=%+v err=%v", got, err)
	}

	if _, err := CreateIdempotency(ctx, db, "u1", "/ans/create", "k1", "turn-2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same key under another user or scope is independent.
	if _, err := CreateIdempotency(ctx, db, "u2", "/ans/create", "k1", "turn-3", 201, time.Hour); err != nil {
		t.Fatalf("other user: %v", err)
	}

	later := time.Now().UTC().Add(2 * time.Hour)
	if _, err := GetIdempotency(ctx, db, "u1", "/ans/create", "k1", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record must read as not found, got %v", err)
	}
	n, err := PurgeIdempotency(ctx, db, later)
	if err != nil || n != 2 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
}

func TestCreateIdempotency_NoTable(t *testing.T) {
	db := newRepoDB(t, true)
	if _, err := CreateIdempotency(ctx, db, "u", "s", "k", "t", 201, time.Hour); err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected a raw DB error, got %v", err)
	}
}
