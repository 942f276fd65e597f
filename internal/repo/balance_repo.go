// Package repo implements the data persistence layer for storefront entities,
// backed by GORM. This file owns account balance mutations. Every change goes
// through Debit or Credit, which update the balance with a single conditional
// statement and append the matching BalanceEntry on the same handle; callers
// pass a transaction handle to make both atomic with their own writes.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// ErrInsufficientFunds is returned by Debit when the balance is below amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// GetUser loads a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// LockBalance reads the user's balance holding a row lock where supported.
func LockBalance(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "account_balance").
		Where("id = ?", userID).
		First(&u).Error
	if err != nil {
		return 0, err
	}
	return u.AccountBalance, nil
}

// Debit subtracts amount from the user's balance if it stays non-negative and
// records the ledger entry.
func Debit(ctx context.Context, db *gorm.DB, userID string, amount int64, kind, ref string) (*domain.BalanceEntry, error) {
	before, err := LockBalance(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND account_balance >= ?", userID, amount).
		Update("account_balance", gorm.Expr("account_balance - ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInsufficientFunds
	}
	return appendEntry(ctx, db, userID, kind, ref, -amount, before)
}

// Credit adds amount to the user's balance and records the ledger entry.
func Credit(ctx context.Context, db *gorm.DB, userID string, amount int64, kind, ref string) (*domain.BalanceEntry, error) {
	before, err := LockBalance(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("account_balance", gorm.Expr("account_balance + ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return appendEntry(ctx, db, userID, kind, ref, amount, before)
}

func appendEntry(ctx context.Context, db *gorm.DB, userID, kind, ref string, delta, before int64) (*domain.BalanceEntry, error) {
	e := &domain.BalanceEntry{
		UserID:        userID,
		Kind:          kind,
		Delta:         delta,
		BalanceBefore: before,
		BalanceAfter:  before + delta,
		Reference:     ref,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListBalanceEntries returns the user's most recent ledger entries.
func ListBalanceEntries(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.BalanceEntry, error) {
	var out []domain.BalanceEntry
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
