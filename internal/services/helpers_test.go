package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/gacha"
	"github.com/tbourn/go-storefront-backend/internal/repo"
)

// ---------- test helpers ----------

// newSvcDB opens a migrated in-memory database on a single connection, so
// concurrent callers serialize the way row locks would serialize them.
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fixedRNG replays the given values in a cycle.
type fixedRNG struct {
	vals []float64
	i    int
}

func (f *fixedRNG) Float64() float64 {
	v := f.vals[f.i%len(f.vals)]
	f.i++
	return v
}

func rngOf(vals ...float64) gacha.RandomSource { return &fixedRNG{vals: vals} }

type fixture struct {
	db       *gorm.DB
	crates   *CrateService
	store    *PurchaseService
	crate    *domain.StoreItem
	def      *domain.CrateDefinition
	potion   *domain.StoreItem
	contents []domain.CrateContent
}

// newFixture seeds a crate priced 500 with 70/20/10 common/rare/legendary
// contents (thresholds 10/50), a potion priced 50, and users alice and bob.
func newFixture(t *testing.T, balance int64) *fixture {
	t.Helper()
	db := newSvcDB(t)

	for i, id := range []string{"alice", "bob"} {
		u := &domain.User{ID: id, Username: id, Email: id + "@example.com", GameUserNo: int64(1000 + i), AccountBalance: balance}
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	crate := &domain.StoreItem{Name: "Bronze Crate", Price: 500, ItemType: domain.ItemTypeCrate, IsActive: true}
	potion := &domain.StoreItem{Name: "Potion", GoodsNo: 5001, Price: 50, ItemType: "consumables", IsActive: true}
	for _, it := range []*domain.StoreItem{crate, potion} {
		if err := db.Create(it).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}
	def := &domain.CrateDefinition{ItemID: crate.ID, Name: crate.Name, Description: "everyday gear", RareThreshold: 10, LegendaryThreshold: 50}
	if err := db.Omit("Item").Create(def).Error; err != nil {
		t.Fatalf("seed crate: %v", err)
	}
	contents := []domain.CrateContent{
		{CrateID: def.ID, GoodsNo: 100, Name: "Wooden Sword", Description: "better than a stick", Rarity: domain.RarityCommon, DropWeight: 70, IsActive: true},
		{CrateID: def.ID, GoodsNo: 200, Name: "Silver Ring", Rarity: domain.RarityRare, DropWeight: 20, IsActive: true},
		{CrateID: def.ID, GoodsNo: 300, Name: "Dragon Wings", Rarity: domain.RarityLegendary, DropWeight: 10, IsActive: true},
	}
	for i := range contents {
		if err := db.Omit("Crate").Create(&contents[i]).Error; err != nil {
			t.Fatalf("seed content: %v", err)
		}
	}

	cs := NewCrateService(db)
	cs.Selector = gacha.NewSelector(gacha.NewSeededRNG(7))
	ps := NewPurchaseService(db)
	return &fixture{db: db, crates: cs, store: ps, crate: crate, def: def, potion: potion, contents: contents}
}

func (f *fixture) buyCrate(t *testing.T, userID string) int64 {
	t.Helper()
	res, err := f.store.Purchase(context.Background(), userID, f.crate.ID, "")
	if err != nil {
		t.Fatalf("buy crate: %v", err)
	}
	return res.PurchaseID
}

func (f *fixture) setPity(t *testing.T, userID string, sinceRare, sinceLegendary int) {
	t.Helper()
	st := domain.PityState{
		UserID:              userID,
		CrateID:             f.def.ID,
		OpensSinceRare:      sinceRare,
		OpensSinceLegendary: sinceLegendary,
		TotalOpens:          sinceLegendary,
		UpdatedAt:           time.Now().UTC(),
	}
	if err := f.db.Save(&st).Error; err != nil {
		t.Fatalf("set pity: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	u, err := repo.GetUser(context.Background(), f.db, userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u.AccountBalance
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

var errInjected = errors.New("injected failure")

// failCreates makes every INSERT into table fail.
func failCreates(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	name := "test:fail_" + table
	err := db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errInjected)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
}

// blockCreates makes INSERTs into table wait for the statement context to end.
func blockCreates(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:block_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		ctx := tx.Statement.Context
		select {
		case <-ctx.Done():
			_ = tx.AddError(ctx.Err())
		case <-time.After(5 * time.Second):
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
}
