// Package services – PurchaseService
//
// PurchaseService buys store items with account credits. The balance debit,
// the purchase row and its ledger entry commit together. Crates complete
// immediately and wait for CrateService.Open; other items are handed to the
// Deliverer after commit, and a failed delivery marks the purchase failed and
// refunds it.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ScopeStorePurchase namespaces Idempotency-Key records of store purchases.
const ScopeStorePurchase = "store:purchase"

// PurchaseService implements the store purchase flow.
type PurchaseService struct {
	DB        *gorm.DB
	Deliverer Deliverer

	Timeout        time.Duration
	RefundTimeout  time.Duration
	IdempotencyTTL time.Duration
}

// NewPurchaseService returns a PurchaseService with log delivery and default
// bounds.
func NewPurchaseService(db *gorm.DB) *PurchaseService {
	return &PurchaseService{
		DB:             db,
		Deliverer:      LogDeliverer{},
		Timeout:        5 * time.Second,
		RefundTimeout:  5 * time.Second,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// PurchaseResult describes a committed purchase.
type PurchaseResult struct {
	PurchaseID int64
	ItemName   string
	Status     string
	IsCrate    bool
	Price      int64
	Balance    int64 // balance right after the debit
	Refunded   bool  // delivery failed and the price was returned
	Replayed   bool  // answered from an earlier request with the same key
}

// Purchase debits the item's price and records the purchase. A non-empty
// idemKey makes retries of the same request return the first result.
func (s *PurchaseService) Purchase(ctx context.Context, userID string, itemID int64, idemKey string) (*PurchaseResult, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "Purchase",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("item.id", itemID),
		),
	)
	defer span.End()

	if itemID <= 0 {
		return nil, ErrInvalidInput
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	if idemKey != "" {
		if res, ok := s.replay(ctx, userID, idemKey); ok {
			return res, nil
		}
	}

	item, err := repo.GetActiveItem(ctx, s.DB, itemID)
	if err != nil {
		return nil, classifyRead(ctx, err, ErrItemNotFound)
	}

	var (
		p   *domain.Purchase
		bal int64
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := repo.GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		current, err := repo.LockBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current < item.Price {
			return &InsufficientBalanceError{Required: item.Price, Current: current}
		}

		now := time.Now().UTC()
		p = &domain.Purchase{
			UserID:     userID,
			ItemID:     item.ID,
			Quantity:   1,
			UnitPrice:  item.Price,
			TotalPrice: item.Price,
			Status:     domain.PurchasePending,
			GameUserNo: u.GameUserNo,
			CreatedAt:  now,
		}
		if item.IsCrate() {
			p.Status = domain.PurchaseCompleted
			p.CompletedAt = &now
		}
		if err := repo.CreatePurchase(ctx, tx, p); err != nil {
			return err
		}
		e, err := repo.Debit(ctx, tx, userID, item.Price, domain.EntryPurchase, purchaseRef(p.ID))
		if errors.Is(err, repo.ErrInsufficientFunds) {
			return &InsufficientBalanceError{Required: item.Price, Current: current}
		}
		if err != nil {
			return err
		}
		bal = e.BalanceAfter

		if idemKey != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, userID, ScopeStorePurchase, idemKey, strconv.FormatInt(p.ID, 10), 200, s.IdempotencyTTL); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrDuplicate):
		// Same key committed concurrently.
		if res, ok := s.replay(context.WithoutCancel(ctx), userID, idemKey); ok {
			return res, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	case errors.Is(err, ErrInsufficientBalance):
		return nil, err
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrInvalidInput
	default:
		return nil, classifyRead(ctx, err, nil)
	}

	storePurchases.WithLabelValues(item.ItemType).Inc()
	res := &PurchaseResult{
		PurchaseID: p.ID,
		ItemName:   item.Name,
		Status:     p.Status,
		IsCrate:    item.IsCrate(),
		Price:      item.Price,
		Balance:    bal,
	}
	if !res.IsCrate {
		s.deliver(ctx, item, p, res)
	}
	return res, nil
}

// deliver completes a non-crate purchase, or fails and refunds it.
func (s *PurchaseService) deliver(ctx context.Context, item *domain.StoreItem, p *domain.Purchase, res *PurchaseResult) {
	dctx := context.WithoutCancel(ctx)
	var derr error
	if s.Deliverer != nil {
		derr = s.Deliverer.Deliver(dctx, Delivery{
			UserID:     p.UserID,
			GameUserNo: p.GameUserNo,
			PurchaseID: p.ID,
			GoodsNo:    item.GoodsNo,
			ItemName:   item.Name,
			Quantity:   p.Quantity,
			Source:     "store",
		})
	}
	now := time.Now().UTC()
	if derr == nil {
		if err := repo.TransitionPurchase(dctx, s.DB, p.ID, domain.PurchasePending, domain.PurchaseCompleted, now); err != nil {
			logFrom(ctx).Error().Err(err).Int64("purchase_id", p.ID).Msg("complete purchase")
			return
		}
		res.Status = domain.PurchaseCompleted
		return
	}

	logFrom(ctx).Error().Err(derr).Int64("purchase_id", p.ID).Msg("store item delivery failed")
	if err := repo.TransitionPurchase(dctx, s.DB, p.ID, domain.PurchasePending, domain.PurchaseFailed, now); err != nil {
		logFrom(ctx).Error().Err(err).Int64("purchase_id", p.ID).Msg("mark purchase failed")
		return
	}
	res.Status = domain.PurchaseFailed
	if _, err := compensate(ctx, s.DB, s.RefundTimeout, refundRequest{
		UserID:     p.UserID,
		PurchaseID: p.ID,
		Reason:     "delivery failed",
		From:       domain.PurchaseFailed,
	}); err == nil {
		res.Status = domain.PurchaseRefunded
		res.Refunded = true
		res.Balance += p.TotalPrice
	}
}

func (s *PurchaseService) replay(ctx context.Context, userID, key string) (*PurchaseResult, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, ScopeStorePurchase, key, time.Now().UTC())
	if err != nil {
		return nil, false
	}
	id, err := strconv.ParseInt(rec.ResourceID, 10, 64)
	if err != nil {
		return nil, false
	}
	p, err := repo.GetPurchase(ctx, s.DB, id, userID)
	if err != nil {
		return nil, false
	}
	return &PurchaseResult{
		PurchaseID: p.ID,
		ItemName:   p.Item.Name,
		Status:     p.Status,
		IsCrate:    p.Item.IsCrate(),
		Price:      p.TotalPrice,
		Refunded:   p.Status == domain.PurchaseRefunded,
		Replayed:   true,
	}, true
}
