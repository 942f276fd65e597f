// Package repo implements the data persistence layer for storefront entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// CrateInventoryStats summarizes what the user-crates listing depends on: the
// number of the user's crate purchases, openings and refunds, the latest pity
// counter change, and the latest edit to a crate definition the user bought.
// Any open, refund, purchase or catalog re-seed changes at least one value.
//
// Return values:
//   - count:   purchases + openings + refunds for userID
//   - latest:  greatest of pity and definition updated_at, or nil when neither exists
//   - err:     database error, if any
func CrateInventoryStats(ctx context.Context, db *gorm.DB, userID string) (count int64, latest *time.Time, err error) {
	var purchases, openings, refunds int64
	if err = db.WithContext(ctx).Model(&domain.Purchase{}).Where("user_id = ?", userID).Count(&purchases).Error; err != nil {
		return 0, nil, err
	}
	if err = db.WithContext(ctx).Model(&domain.CrateOpening{}).Where("user_id = ?", userID).Count(&openings).Error; err != nil {
		return 0, nil, err
	}
	if err = db.WithContext(ctx).Model(&domain.Refund{}).Where("user_id = ?", userID).Count(&refunds).Error; err != nil {
		return 0, nil, err
	}
	count = purchases + openings + refunds

	pity, err := latestUpdate(db.WithContext(ctx).
		Model(&domain.PityState{}).
		Where("user_id = ?", userID), "updated_at")
	if err != nil {
		return 0, nil, err
	}
	defs, err := latestUpdate(db.WithContext(ctx).
		Model(&domain.CrateDefinition{}).
		Joins("JOIN purchases ON purchases.item_id = crate_definitions.item_id").
		Where("purchases.user_id = ?", userID), "crate_definitions.updated_at")
	if err != nil {
		return 0, nil, err
	}

	latest = pity
	if defs != nil && (latest == nil || defs.After(*latest)) {
		latest = defs
	}
	return count, latest, nil
}

// latestUpdate returns the greatest col among the rows q matches, or nil when
// there are none. Ordering avoids MAX(), which SQLite returns as TEXT.
func latestUpdate(q *gorm.DB, col string) (*time.Time, error) {
	var row struct {
		UpdatedAt time.Time
	}
	res := q.Select(col + " AS updated_at").Order(col + " DESC").Limit(1).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row.UpdatedAt, nil
}
