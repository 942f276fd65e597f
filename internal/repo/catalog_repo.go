// Package repo implements the data persistence layer for storefront entities,
// backed by GORM. This file provides read access to the store catalog and the
// crate catalog (definitions and weighted contents), plus the upserts used by
// the seeding command.
//
// All functions are context-aware and accept a *gorm.DB handle, so they can
// run on the root handle or inside a transaction. They hold no business
// logic.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can use either.
var ErrNotFound = gorm.ErrRecordNotFound

// ListActiveItems returns the purchasable items ordered by type, then price.
func ListActiveItems(ctx context.Context, db *gorm.DB) ([]domain.StoreItem, error) {
	var out []domain.StoreItem
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("item_type ASC").
		Order("price ASC").
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// GetActiveItem fetches an active store item by id.
func GetActiveItem(ctx context.Context, db *gorm.DB, id int64) (*domain.StoreItem, error) {
	var it domain.StoreItem
	if err := db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// GetCrateByItemID returns the crate definition sold as store item itemID.
// Items that are not of type crates yield ErrNotFound.
func GetCrateByItemID(ctx context.Context, db *gorm.DB, itemID int64) (*domain.CrateDefinition, error) {
	var def domain.CrateDefinition
	err := db.WithContext(ctx).
		Joins("JOIN store_items ON store_items.id = crate_definitions.item_id").
		Where("crate_definitions.item_id = ? AND store_items.item_type = ?", itemID, domain.ItemTypeCrate).
		First(&def).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// ListActiveContents returns a crate's active contents in catalog (id) order.
func ListActiveContents(ctx context.Context, db *gorm.DB, crateID int64) ([]domain.CrateContent, error) {
	var out []domain.CrateContent
	err := db.WithContext(ctx).
		Where("crate_id = ? AND is_active = ?", crateID, true).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// UpsertItem inserts or updates a store item keyed by its unique name.
func UpsertItem(ctx context.Context, db *gorm.DB, it *domain.StoreItem) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "goods_no", "price", "item_type", "is_active", "updated_at"}),
	}).Create(it).Error
}

// UpsertCrate inserts or updates a crate definition keyed by item_id.
func UpsertCrate(ctx context.Context, db *gorm.DB, def *domain.CrateDefinition) error {
	return db.WithContext(ctx).Omit("Item").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "rare_threshold", "legendary_threshold", "updated_at"}),
	}).Create(def).Error
}

// UpsertContent inserts or updates a crate content keyed by (crate_id, goods_no).
func UpsertContent(ctx context.Context, db *gorm.DB, c *domain.CrateContent) error {
	return db.WithContext(ctx).Omit("Crate").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "crate_id"}, {Name: "goods_no"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "rarity", "drop_weight", "is_active", "updated_at"}),
	}).Create(c).Error
}

// LookupItemID returns the id of the item with the given name.
func LookupItemID(ctx context.Context, db *gorm.DB, name string) (int64, error) {
	var it domain.StoreItem
	if err := db.WithContext(ctx).Select("id").Where("name = ?", name).First(&it).Error; err != nil {
		return 0, err
	}
	return it.ID, nil
}

// LookupCrateID returns the id of the crate definition sold as itemID.
func LookupCrateID(ctx context.Context, db *gorm.DB, itemID int64) (int64, error) {
	var def domain.CrateDefinition
	if err := db.WithContext(ctx).Select("id").Where("item_id = ?", itemID).First(&def).Error; err != nil {
		return 0, err
	}
	return def.ID, nil
}
