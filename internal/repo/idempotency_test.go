package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetIdempotency_BlankScopeOrKey_ReturnsNotFound(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if _, err := GetIdempotency(ctx, db, "u1", "", "k", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank scope: want ErrNotFound, got %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "purchase:1", "  ", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank key: want ErrNotFound, got %v", err)
	}
}

func TestGetIdempotency_MissingOrExpired(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if _, err := GetIdempotency(ctx, db, "u1", "purchase:1", "k1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: want ErrNotFound, got %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "u1", "purchase:1", "k1", "opening-1", 200, time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "purchase:1", "k1", time.Now().Add(2*time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired: want ErrNotFound, got %v", err)
	}
}

func TestCreateIdempotency_RoundTrip_AndDuplicate(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "purchase:7", "abc", "opening-9", 200, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := GetIdempotency(ctx, db, "u1", "purchase:7", "abc", time.Now())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != rec.ID || got.ResourceID != "opening-9" || got.Status != 200 {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := CreateIdempotency(ctx, db, "u1", "purchase:7", "abc", "opening-10", 200, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
	// Same key under another scope or user is independent.
	if _, err := CreateIdempotency(ctx, db, "u1", "purchase:8", "abc", "", 200, time.Hour); err != nil {
		t.Fatalf("other scope: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u2", "purchase:7", "abc", "", 200, time.Hour); err != nil {
		t.Fatalf("other user: %v", err)
	}
}

func TestIsDuplicate(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrDuplicate, true},
		{errors.New("UNIQUE constraint failed: crate_openings.purchase_id"), true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "ux_refunds_purchase"`), true},
		{errors.New("disk I/O error"), false},
	}
	for _, c := range cases {
		if got := IsDuplicate(c.err); got != c.want {
			t.Fatalf("IsDuplicate(%v)=%v want %v", c.err, got, c.want)
		}
	}
}
