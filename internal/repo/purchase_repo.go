// Package repo implements the data persistence layer for storefront entities,
// backed by GORM. This file is the purchase ledger: purchase rows, their
// status transitions, and the "unopened crates" projection.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// CreatePurchase inserts p and fills its ID.
func CreatePurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	return db.WithContext(ctx).Omit("Item").Create(p).Error
}

// GetPurchase fetches a purchase owned by userID, with its store item loaded.
func GetPurchase(ctx context.Context, db *gorm.DB, id int64, userID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := db.WithContext(ctx).
		Preload("Item").
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LockPurchase re-reads a purchase with a row lock (a no-op on SQLite, which
// serializes writers instead).
func LockPurchase(ctx context.Context, db *gorm.DB, id int64, userID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TransitionPurchase moves a purchase from one status to another. It returns
// ErrNotFound when the purchase is not currently in status from.
func TransitionPurchase(ctx context.Context, db *gorm.DB, id int64, from, to string, at time.Time) error {
	updates := map[string]any{"status": to}
	if to == domain.PurchaseCompleted {
		updates["completed_at"] = at
	}
	res := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UnopenedCrate is one row of the caller's crate inventory.
type UnopenedCrate struct {
	PurchaseID          int64
	CrateID             int64
	CrateName           string
	Description         string
	Quantity            int
	PurchasedAt         time.Time
	RareThreshold       int
	LegendaryThreshold  int
	OpensSinceRare      int
	OpensSinceLegendary int
	TotalOpens          int
}

// ListUnopenedCrates returns the user's completed crate purchases that have no
// opening record yet, newest first, joined with the current pity counters.
func ListUnopenedCrates(ctx context.Context, db *gorm.DB, userID string) ([]UnopenedCrate, error) {
	var out []UnopenedCrate
	err := db.WithContext(ctx).
		Table("purchases AS p").
		Select(`p.id AS purchase_id,
			cd.id AS crate_id,
			i.name AS crate_name,
			cd.description AS description,
			p.quantity AS quantity,
			p.created_at AS purchased_at,
			cd.rare_threshold AS rare_threshold,
			cd.legendary_threshold AS legendary_threshold,
			COALESCE(ps.opens_since_rare, 0) AS opens_since_rare,
			COALESCE(ps.opens_since_legendary, 0) AS opens_since_legendary,
			COALESCE(ps.total_opens, 0) AS total_opens`).
		Joins("JOIN store_items i ON i.id = p.item_id").
		Joins("JOIN crate_definitions cd ON cd.item_id = i.id").
		Joins("LEFT JOIN crate_pity_states ps ON ps.user_id = p.user_id AND ps.crate_id = cd.id").
		Where("p.user_id = ? AND p.status = ? AND i.item_type = ?", userID, domain.PurchaseCompleted, domain.ItemTypeCrate).
		Where("NOT EXISTS (SELECT 1 FROM crate_openings co WHERE co.purchase_id = p.id)").
		Order("p.created_at DESC").
		Order("p.id DESC").
		Scan(&out).Error
	return out, err
}
