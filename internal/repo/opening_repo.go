// Package repo implements the data persistence layer for storefront entities,
// backed by GORM. This file stores crate openings and per-user pity counters.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// ErrStalePity is returned when the pity row changed between read and write.
var ErrStalePity = errors.New("pity state changed concurrently")

// CreateOpening inserts an opening record. A second record for the same
// purchase, or a second use of the user's attempt id, fails with ErrDuplicate.
func CreateOpening(ctx context.Context, db *gorm.DB, o *domain.CrateOpening) error {
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetOpeningByPurchase returns the opening recorded for purchaseID.
func GetOpeningByPurchase(ctx context.Context, db *gorm.DB, purchaseID int64) (*domain.CrateOpening, error) {
	var o domain.CrateOpening
	if err := db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// OpeningExists reports whether purchaseID already has an opening record.
func OpeningExists(ctx context.Context, db *gorm.DB, purchaseID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.CrateOpening{}).
		Where("purchase_id = ?", purchaseID).
		Count(&n).Error
	return n > 0, err
}

// GetOpeningByAttempt returns the opening userID committed under attemptID.
func GetOpeningByAttempt(ctx context.Context, db *gorm.DB, userID, attemptID string) (*domain.CrateOpening, error) {
	var o domain.CrateOpening
	if err := db.WithContext(ctx).
		Where("user_id = ? AND attempt_id = ?", userID, attemptID).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// OpeningAttemptExists reports whether userID committed the opening of
// purchaseID under attemptID. It backs replay detection for retried open
// requests; a key used for another purchase does not match.
func OpeningAttemptExists(ctx context.Context, db *gorm.DB, userID, attemptID string, purchaseID int64) (bool, error) {
	if attemptID == "" || purchaseID <= 0 {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.CrateOpening{}).
		Where("user_id = ? AND attempt_id = ? AND purchase_id = ?", userID, attemptID, purchaseID).
		Count(&n).Error
	return n > 0, err
}

// MarkOpeningDelivered records the delivery outcome for an opening.
func MarkOpeningDelivered(ctx context.Context, db *gorm.DB, id int64, delivered bool) error {
	return db.WithContext(ctx).
		Model(&domain.CrateOpening{}).
		Where("id = ?", id).
		Update("delivered", delivered).Error
}

// GetPityState loads the counters for (userID, crateID). A missing row yields
// a zero state and found=false.
func GetPityState(ctx context.Context, db *gorm.DB, userID string, crateID int64) (state domain.PityState, found bool, err error) {
	err = db.WithContext(ctx).
		Where("user_id = ? AND crate_id = ?", userID, crateID).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PityState{UserID: userID, CrateID: crateID}, false, nil
	}
	if err != nil {
		return domain.PityState{}, false, err
	}
	return state, true, nil
}

// SavePityState writes next over prev. An existing row is only updated while
// its total_opens still equals prev.TotalOpens; a missing row is inserted.
// Either race surfaces as ErrStalePity.
func SavePityState(ctx context.Context, db *gorm.DB, prev, next domain.PityState, existed bool) error {
	next.UpdatedAt = time.Now().UTC()
	if !existed {
		if err := db.WithContext(ctx).Create(&next).Error; err != nil {
			if IsDuplicate(err) {
				return ErrStalePity
			}
			return err
		}
		return nil
	}

	res := db.WithContext(ctx).
		Model(&domain.PityState{}).
		Where("user_id = ? AND crate_id = ? AND total_opens = ?", prev.UserID, prev.CrateID, prev.TotalOpens).
		Updates(map[string]any{
			"opens_since_rare":      next.OpensSinceRare,
			"opens_since_legendary": next.OpensSinceLegendary,
			"total_opens":           next.TotalOpens,
			"updated_at":            next.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStalePity
	}
	return nil
}
