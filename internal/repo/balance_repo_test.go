package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

func TestDebit_RecordsEntry_AndRefusesOverdraft(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedUser(t, db, "alice", 1000)

	e, err := Debit(ctx, db, "alice", 400, domain.EntryPurchase, "purchase:1")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if e.Delta != -400 || e.BalanceBefore != 1000 || e.BalanceAfter != 600 {
		t.Fatalf("unexpected entry: %+v", e)
	}

	if _, err := Debit(ctx, db, "alice", 601, domain.EntryPurchase, "purchase:2"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft: want ErrInsufficientFunds, got %v", err)
	}
	u, _ := GetUser(ctx, db, "alice")
	if u.AccountBalance != 600 {
		t.Fatalf("balance changed by refused debit: %d", u.AccountBalance)
	}

	if _, err := Debit(ctx, db, "nobody", 1, domain.EntryPurchase, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: want ErrNotFound, got %v", err)
	}
}

func TestCredit_AndListEntries(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedUser(t, db, "alice", 0)

	if _, err := Credit(ctx, db, "alice", 250, domain.EntryRefund, "purchase:9"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := Credit(ctx, db, "alice", 1000, domain.EntryCreditTopUp, "TXN-1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	u, _ := GetUser(ctx, db, "alice")
	if u.AccountBalance != 1250 {
		t.Fatalf("want 1250, got %d", u.AccountBalance)
	}

	entries, err := ListBalanceEntries(ctx, db, "alice", 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("list: %v %v", entries, err)
	}
	if entries[0].Reference != "TXN-1" || entries[0].BalanceAfter != 1250 {
		t.Fatalf("newest entry expected first: %+v", entries[0])
	}

	if _, err := Credit(ctx, db, "nobody", 1, domain.EntryRefund, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: want ErrNotFound, got %v", err)
	}
}
