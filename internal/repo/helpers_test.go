package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// newRepoDB opens a private in-memory database with the full schema.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string, balance int64) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Username: id, Email: id + "@example.com", AccountBalance: balance}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// seedCrate creates a crate store item with the classic 70/20/10 contents.
func seedCrate(t *testing.T, db *gorm.DB, name string, price int64) (*domain.StoreItem, *domain.CrateDefinition, []domain.CrateContent) {
	t.Helper()
	ctx := context.Background()
	item := &domain.StoreItem{Name: name, Description: name + " crate", Price: price, ItemType: domain.ItemTypeCrate, IsActive: true}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	def := &domain.CrateDefinition{ItemID: item.ID, Name: name, Description: "desc " + name, RareThreshold: 10, LegendaryThreshold: 50}
	if err := db.Omit("Item").Create(def).Error; err != nil {
		t.Fatalf("seed crate: %v", err)
	}
	contents := []domain.CrateContent{
		{CrateID: def.ID, GoodsNo: 100, Name: "Wooden Sword", Rarity: domain.RarityCommon, DropWeight: 70, IsActive: true},
		{CrateID: def.ID, GoodsNo: 200, Name: "Silver Ring", Rarity: domain.RarityRare, DropWeight: 20, IsActive: true},
		{CrateID: def.ID, GoodsNo: 300, Name: "Dragon Wings", Rarity: domain.RarityLegendary, DropWeight: 10, IsActive: true},
	}
	for i := range contents {
		if err := UpsertContent(ctx, db, &contents[i]); err != nil {
			t.Fatalf("seed content: %v", err)
		}
	}
	return item, def, contents
}

func seedPurchase(t *testing.T, db *gorm.DB, userID string, item *domain.StoreItem, status string, at time.Time) *domain.Purchase {
	t.Helper()
	p := &domain.Purchase{
		UserID:     userID,
		ItemID:     item.ID,
		Quantity:   1,
		UnitPrice:  item.Price,
		TotalPrice: item.Price,
		Status:     status,
		CreatedAt:  at,
	}
	if err := CreatePurchase(context.Background(), db, p); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	return p
}
