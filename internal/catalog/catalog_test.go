package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-storefront-backend/internal/config"
	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/repo"
)

const sample = `
items:
  - name: Bronze Crate
    description: everyday gear
    price: 500
    crate:
      legendary_pity: 40
      contents:
        - { goods_no: 1, name: Wooden Sword, rarity: common, weight: 70 }
        - { goods_no: 2, name: Silver Ring, rarity: Rare, weight: 20 }
        - { goods_no: 3, name: Dragon Wings, rarity: legendary, weight: 10 }
  - name: Potion
    price: 50
    type: consumables
    active: false
credit_packages:
  - { name: Big Bag, credits: 100, bonus: 5, price_cents: 150 }
`

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:catalog_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func TestParse_DefaultsTypeAndPackageFields(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, s.Items, 2)

	assert.Equal(t, domain.ItemTypeCrate, s.Items[0].Type)
	require.Len(t, s.CreditPackages, 1)
	p := s.CreditPackages[0]
	assert.Equal(t, 1, p.ID)
	assert.Equal(t, 1.5, p.Price)
	assert.EqualValues(t, 105, p.Total())
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	bad := `
items:
  - name: Broken
    type: crates
  - name: Odd
    price: -1
    crate:
      contents:
        - { goods_no: 1, name: A, rarity: mythic, weight: 0 }
        - { goods_no: 1, name: "", rarity: common, weight: 1 }
  - name: Odd
credit_packages:
  - { id: 7, name: Empty, credits: 0, price_cents: 0 }
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"items[0].crate is required",
		"items[1].price must be >= 0",
		`rarity "mythic"`,
		"weight must be > 0",
		"name is required",
		"goods_no 1 is duplicated",
		`items[2].name "Odd" is duplicated`,
		"credit_packages[0] must grant credits",
		"price_cents must be > 0",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "read catalog"))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items: [:"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse catalog")
}

func TestApply_UpsertsAndIsRepeatable(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	s, err := Parse([]byte(sample))
	require.NoError(t, err)
	pity := config.PityDefaults{Rare: 10, Legendary: 50}

	res, err := Apply(ctx, db, s, pity)
	require.NoError(t, err)
	assert.Equal(t, Result{Items: 2, Crates: 1, Contents: 3}, res)

	// Second run updates in place.
	s.Items[0].Price = 600
	s.Items[0].Crate.Contents[0].Weight = 60
	_, err = Apply(ctx, db, s, pity)
	require.NoError(t, err)

	var items, contents int64
	require.NoError(t, db.Model(&domain.StoreItem{}).Count(&items).Error)
	require.NoError(t, db.Model(&domain.CrateContent{}).Count(&contents).Error)
	assert.EqualValues(t, 2, items)
	assert.EqualValues(t, 3, contents)

	active, err := repo.ListActiveItems(ctx, db)
	require.NoError(t, err)
	require.Len(t, active, 1, "inactive potion must be hidden")
	assert.EqualValues(t, 600, active[0].Price)

	def, err := repo.GetCrateByItemID(ctx, db, active[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 10, def.RareThreshold, "missing threshold falls back to default")
	assert.Equal(t, 40, def.LegendaryThreshold)
	assert.Equal(t, "everyday gear", def.Description)

	got, err := repo.ListActiveContents(ctx, db, def.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 60, got[0].DropWeight)
	assert.Equal(t, domain.RarityRare, got[1].Rarity)
}

func TestExampleCatalogFileIsValid(t *testing.T) {
	s, err := Load(filepath.Join("..", "..", "catalog.example.yaml"))
	require.NoError(t, err)
	assert.Len(t, s.CreditPackages, len(config.DefaultCreditPackages()))
}
