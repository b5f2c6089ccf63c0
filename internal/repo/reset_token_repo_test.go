package repo

import (
	"errors"
	"testing"
	"time"
)

func TestResetToken_ConsumedExactlyOnce(t *testing.T) {
	db := newRepoDB(t, false)
	rt, err := CreateResetToken(ctx, db, "u1", "hash-1", time.Now().Add(5*time.Minute))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := GetUnusedResetToken(ctx, db, "hash-1")
	if err != nil || got.ID != rt.ID {
		t.Fatalf("get: %+v err=%v", got, err)
	}
	if err := ConsumeResetToken(ctx, db, rt.ID, time.Now()); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := ConsumeResetToken(ctx, db, rt.ID, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second consume must fail, got %v", err)
	}
	if _, err := GetUnusedResetToken(ctx, db, "hash-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("used token must not be returned, got %v", err)
	}
}
