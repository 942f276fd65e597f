package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/repo"
)

func TestPurchaseService_Crate_CompletesImmediately(t *testing.T) {
	f := newFixture(t, 1000)
	var delivered []Delivery
	f.store.Deliverer = DelivererFunc(func(_ context.Context, d Delivery) error {
		delivered = append(delivered, d)
		return nil
	})

	res, err := f.store.Purchase(context.Background(), "alice", f.crate.ID, "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if !res.IsCrate || res.Status != domain.PurchaseCompleted || res.Price != 500 || res.Balance != 500 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(delivered) != 0 {
		t.Fatalf("crates are delivered on open, not on purchase")
	}
	entries, _ := repo.ListBalanceEntries(context.Background(), f.db, "alice", 0)
	if len(entries) != 1 || entries[0].Kind != domain.EntryPurchase || entries[0].Delta != -500 || entries[0].BalanceAfter != 500 {
		t.Fatalf("unexpected ledger: %+v", entries)
	}
}

func TestPurchaseService_InsufficientBalance(t *testing.T) {
	f := newFixture(t, 100)

	_, err := f.store.Purchase(context.Background(), "alice", f.crate.ID, "")
	var ib *InsufficientBalanceError
	if !errors.As(err, &ib) || !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("want InsufficientBalanceError, got %v", err)
	}
	if ib.Required != 500 || ib.Current != 100 {
		t.Fatalf("unexpected amounts: %+v", ib)
	}
	if n := f.count(t, &domain.Purchase{}, "user_id = ?", "alice"); n != 0 {
		t.Fatalf("no purchase expected, got %d", n)
	}
	if f.balance(t, "alice") != 100 {
		t.Fatalf("balance changed")
	}
}

func TestPurchaseService_NonCrate_Delivered(t *testing.T) {
	f := newFixture(t, 1000)
	var got Delivery
	f.store.Deliverer = DelivererFunc(func(_ context.Context, d Delivery) error {
		got = d
		return nil
	})

	res, err := f.store.Purchase(context.Background(), "alice", f.potion.ID, "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if res.IsCrate || res.Status != domain.PurchaseCompleted || res.Balance != 950 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got.GoodsNo != 5001 || got.GameUserNo != 1000 || got.PurchaseID != res.PurchaseID || got.Source != "store" {
		t.Fatalf("unexpected delivery: %+v", got)
	}
	p, _ := repo.GetPurchase(context.Background(), f.db, res.PurchaseID, "alice")
	if p.Status != domain.PurchaseCompleted || p.CompletedAt == nil {
		t.Fatalf("purchase not completed: %+v", p)
	}
}

func TestPurchaseService_DeliveryFailure_Refunds(t *testing.T) {
	f := newFixture(t, 1000)
	f.store.Deliverer = DelivererFunc(func(context.Context, Delivery) error { return errInjected })

	res, err := f.store.Purchase(context.Background(), "alice", f.potion.ID, "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if !res.Refunded || res.Status != domain.PurchaseRefunded || res.Balance != 1000 {
		t.Fatalf("want refunded result, got %+v", res)
	}
	if f.balance(t, "alice") != 1000 {
		t.Fatalf("balance not restored")
	}
	ref, err := repo.GetRefundByPurchase(context.Background(), f.db, res.PurchaseID)
	if err != nil || ref.Amount != 50 || ref.Reason != "delivery failed" {
		t.Fatalf("refund row: %+v %v", ref, err)
	}
}

func TestPurchaseService_IdempotencyKey(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	first, err := f.store.Purchase(ctx, "alice", f.crate.ID, "k-1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	again, err := f.store.Purchase(ctx, "alice", f.crate.ID, "k-1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !again.Replayed || again.PurchaseID != first.PurchaseID || again.ItemName != "Bronze Crate" {
		t.Fatalf("want replay of %d, got %+v", first.PurchaseID, again)
	}
	if f.balance(t, "alice") != 500 {
		t.Fatalf("retry must not debit again")
	}

	// Keys are per user.
	other, err := f.store.Purchase(ctx, "bob", f.crate.ID, "k-1")
	if err != nil || other.Replayed || other.PurchaseID == first.PurchaseID {
		t.Fatalf("bob's purchase must be independent: %+v %v", other, err)
	}
}

func TestPurchaseService_InvalidInput(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	if err := f.db.Model(&domain.StoreItem{}).Where("id = ?", f.potion.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	cases := []struct {
		name   string
		user   string
		itemID int64
		want   error
	}{
		{"zero item", "alice", 0, ErrInvalidInput},
		{"unknown item", "alice", 9999, ErrItemNotFound},
		{"inactive item", "alice", f.potion.ID, ErrItemNotFound},
		{"unknown user", "mallory", f.crate.ID, ErrInvalidInput},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := f.store.Purchase(ctx, c.user, c.itemID, ""); !errors.Is(err, c.want) {
				t.Fatalf("want %v, got %v", c.want, err)
			}
		})
	}
}

func TestPurchaseService_ConcurrentBuysNeverOverdraw(t *testing.T) {
	f := newFixture(t, 1200)
	ctx := context.Background()

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.store.Purchase(ctx, "alice", f.crate.ID, "")
		}(i)
	}
	wg.Wait()

	ok, short := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientBalance):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 2 || short != 3 {
		t.Fatalf("want 2 purchases and 3 rejections, got ok=%d short=%d", ok, short)
	}
	if got := f.balance(t, "alice"); got != 200 {
		t.Fatalf("want balance 200, got %d", got)
	}
}
