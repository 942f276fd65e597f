package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/repo"
)

// errNotRefundable is returned when the purchase is no longer in the status a
// refund starts from, or a crate purchase already has an opening.
var errNotRefundable = errors.New("purchase is not refundable")

type refundRequest struct {
	UserID     string
	PurchaseID int64
	AttemptID  string
	Reason     string
	From       string // status the purchase must be in
	Unopened   bool   // require that no crate opening exists
}

// refundPurchase credits a purchase back to its owner in its own transaction:
// purchase status From -> refunded, balance credit with ledger entry, and a
// refunds row keyed by purchase id. A purchase that was already refunded
// yields the stored refund and credited=false, but only to its owner; anyone
// else gets repo.ErrNotFound.
func refundPurchase(ctx context.Context, db *gorm.DB, req refundRequest) (ref *domain.Refund, credited bool, err error) {
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prior, err := repo.GetRefundByPurchase(ctx, tx, req.PurchaseID)
		if err == nil {
			if prior.UserID != req.UserID {
				return repo.ErrNotFound
			}
			ref = prior
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		p, err := repo.LockPurchase(ctx, tx, req.PurchaseID, req.UserID)
		if err != nil {
			return err
		}
		if p.Status != req.From {
			return errNotRefundable
		}
		if req.Unopened {
			opened, err := repo.OpeningExists(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if opened {
				return errNotRefundable
			}
		}

		now := time.Now().UTC()
		if err := repo.TransitionPurchase(ctx, tx, p.ID, req.From, domain.PurchaseRefunded, now); err != nil {
			return err
		}
		if _, err := repo.Credit(ctx, tx, p.UserID, p.TotalPrice, domain.EntryRefund, purchaseRef(p.ID)); err != nil {
			return err
		}
		r := &domain.Refund{
			PurchaseID: p.ID,
			UserID:     p.UserID,
			AttemptID:  req.AttemptID,
			Amount:     p.TotalPrice,
			Reason:     req.Reason,
			CreatedAt:  now,
		}
		if err := repo.CreateRefund(ctx, tx, r); err != nil {
			return err
		}
		ref, credited = r, true
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent refund for the same purchase won; report its row.
		prior, gerr := repo.GetRefundByPurchase(ctx, db, req.PurchaseID)
		if gerr != nil {
			return nil, false, gerr
		}
		if prior.UserID != req.UserID {
			return nil, false, repo.ErrNotFound
		}
		return prior, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ref, credited, nil
}

// compensate runs the refund detached from the caller's cancellation, bounded
// by timeout, and logs the outcome.
func compensate(ctx context.Context, db *gorm.DB, timeout time.Duration, req refundRequest) (*domain.Refund, error) {
	rctx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, timeout)
		defer cancel()
	}

	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	ref, credited, err := refundPurchase(rctx, db, req)
	switch {
	case err != nil:
		crateRefunds.WithLabelValues("failed").Inc()
		logger.Error().Err(err).
			Str("user_id", req.UserID).
			Int64("purchase_id", req.PurchaseID).
			Str("attempt_id", req.AttemptID).
			Str("reason", req.Reason).
			Msg("compensating refund failed; manual reconciliation required")
		return nil, fmt.Errorf("%w: %v", ErrRefundFailed, err)
	case credited:
		crateRefunds.WithLabelValues("credited").Inc()
		logger.Warn().
			Str("user_id", req.UserID).
			Int64("purchase_id", req.PurchaseID).
			Int64("amount", ref.Amount).
			Str("reason", req.Reason).
			Msg("purchase refunded")
	default:
		crateRefunds.WithLabelValues("replayed").Inc()
		logger.Info().
			Int64("purchase_id", req.PurchaseID).
			Str("attempt_id", ref.AttemptID).
			Msg("refund already issued")
	}
	return ref, nil
}

func purchaseRef(id int64) string { return "purchase:" + strconv.FormatInt(id, 10) }
