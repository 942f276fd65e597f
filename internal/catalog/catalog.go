// Package catalog loads the store catalog seed (items, crate definitions,
// crate contents and credit packages) from YAML and applies it to the database.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/config"
	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/repo"
)

// Seed is the root of a catalog file.
type Seed struct {
	Items          []Item                 `yaml:"items"`
	CreditPackages []config.CreditPackage `yaml:"credit_packages"`
}

// Item is a store item; Crate is set for loot crates.
type Item struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	GoodsNo     int64  `yaml:"goods_no"`
	Price       int64  `yaml:"price"`
	Type        string `yaml:"type"`
	Active      *bool  `yaml:"active"`
	Crate       *Crate `yaml:"crate"`
}

// Crate describes the crate definition behind a crate item. Zero thresholds
// are filled from config.PityDefaults.
type Crate struct {
	Description   string    `yaml:"description"`
	RarePity      int       `yaml:"rare_pity"`
	LegendaryPity int       `yaml:"legendary_pity"`
	Contents      []Content `yaml:"contents"`
}

// Content is one weighted entry of a crate.
type Content struct {
	GoodsNo     int64  `yaml:"goods_no"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Rarity      string `yaml:"rarity"`
	Weight      int    `yaml:"weight"`
	Active      *bool  `yaml:"active"`
}

func active(b *bool) bool { return b == nil || *b }

// Load reads and validates a catalog file.
func Load(path string) (Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates catalog YAML.
func Parse(b []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Seed{}, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range s.Items {
		if s.Items[i].Crate != nil && s.Items[i].Type == "" {
			s.Items[i].Type = domain.ItemTypeCrate
		}
	}
	for i := range s.CreditPackages {
		p := &s.CreditPackages[i]
		p.Price = float64(p.PriceCents) / 100
		if p.ID == 0 {
			p.ID = i + 1
		}
	}
	if err := Validate(s); err != nil {
		return Seed{}, err
	}
	return s, nil
}

// Validate checks semantic constraints of a seed and reports every problem.
func Validate(s Seed) error {
	var errs []string
	names := map[string]bool{}
	for i, it := range s.Items {
		at := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.Name) == "" {
			errs = append(errs, at+".name is required")
		} else if names[it.Name] {
			errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", at, it.Name))
		}
		names[it.Name] = true
		if it.Price < 0 {
			errs = append(errs, at+".price must be >= 0")
		}
		if it.Type == domain.ItemTypeCrate && it.Crate == nil {
			errs = append(errs, at+".crate is required for crate items")
		}
		if it.Crate == nil {
			continue
		}
		if it.Type != domain.ItemTypeCrate {
			errs = append(errs, at+".type must be crates when crate is set")
		}
		if it.Crate.RarePity < 0 || it.Crate.LegendaryPity < 0 {
			errs = append(errs, at+".crate pity thresholds must be >= 1 when set")
		}
		goods := map[int64]bool{}
		for j, c := range it.Crate.Contents {
			cat := fmt.Sprintf("%s.crate.contents[%d]", at, j)
			if _, ok := domain.ParseRarity(c.Rarity); !ok {
				errs = append(errs, fmt.Sprintf("%s.rarity %q must be one of: common, rare, epic, legendary", cat, c.Rarity))
			}
			if c.Weight <= 0 {
				errs = append(errs, cat+".weight must be > 0")
			}
			if strings.TrimSpace(c.Name) == "" {
				errs = append(errs, cat+".name is required")
			}
			if goods[c.GoodsNo] {
				errs = append(errs, fmt.Sprintf("%s.goods_no %d is duplicated", cat, c.GoodsNo))
			}
			goods[c.GoodsNo] = true
		}
	}
	ids := map[int]bool{}
	for i, p := range s.CreditPackages {
		at := fmt.Sprintf("credit_packages[%d]", i)
		if ids[p.ID] {
			errs = append(errs, fmt.Sprintf("%s.id %d is duplicated", at, p.ID))
		}
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, at+".name is required")
		}
		ids[p.ID] = true
		if p.Credits <= 0 || p.Bonus < 0 {
			errs = append(errs, at+" must grant credits > 0 and bonus >= 0")
		}
		if p.PriceCents <= 0 {
			errs = append(errs, at+".price_cents must be > 0")
		}
	}
	if len(errs) > 0 {
		return errors.New("invalid catalog: " + strings.Join(errs, "; "))
	}
	return nil
}

// Result counts what Apply wrote.
type Result struct {
	Items    int
	Crates   int
	Contents int
}

// Apply upserts the seed in one transaction. Items, crates and contents are
// matched by item name, item id and (crate, goods_no); nothing is deleted.
func Apply(ctx context.Context, db *gorm.DB, s Seed, pity config.PityDefaults) (Result, error) {
	var res Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, it := range s.Items {
			row := &domain.StoreItem{
				Name:        it.Name,
				Description: it.Description,
				GoodsNo:     it.GoodsNo,
				Price:       it.Price,
				ItemType:    it.Type,
				IsActive:    true,
			}
			if err := repo.UpsertItem(ctx, tx, row); err != nil {
				return fmt.Errorf("item %q: %w", it.Name, err)
			}
			itemID, err := repo.LookupItemID(ctx, tx, it.Name)
			if err != nil {
				return fmt.Errorf("item %q: %w", it.Name, err)
			}
			// is_active carries a default, so false is written explicitly.
			if err := tx.Model(&domain.StoreItem{}).Where("id = ?", itemID).Update("is_active", active(it.Active)).Error; err != nil {
				return err
			}
			res.Items++
			if it.Crate == nil {
				continue
			}

			def := &domain.CrateDefinition{
				ItemID:             itemID,
				Name:               it.Name,
				Description:        it.Crate.Description,
				RareThreshold:      orDefault(it.Crate.RarePity, pity.Rare),
				LegendaryThreshold: orDefault(it.Crate.LegendaryPity, pity.Legendary),
			}
			if def.Description == "" {
				def.Description = it.Description
			}
			if err := repo.UpsertCrate(ctx, tx, def); err != nil {
				return fmt.Errorf("crate %q: %w", it.Name, err)
			}
			crateID, err := repo.LookupCrateID(ctx, tx, itemID)
			if err != nil {
				return fmt.Errorf("crate %q: %w", it.Name, err)
			}
			res.Crates++

			for _, c := range it.Crate.Contents {
				r, _ := domain.ParseRarity(c.Rarity)
				row := &domain.CrateContent{
					CrateID:     crateID,
					GoodsNo:     c.GoodsNo,
					Name:        c.Name,
					Description: c.Description,
					Rarity:      r,
					DropWeight:  c.Weight,
					IsActive:    true,
				}
				if err := repo.UpsertContent(ctx, tx, row); err != nil {
					return fmt.Errorf("crate %q content %q: %w", it.Name, c.Name, err)
				}
				if err := tx.Model(&domain.CrateContent{}).
					Where("crate_id = ? AND goods_no = ?", crateID, c.GoodsNo).
					Update("is_active", active(c.Active)).Error; err != nil {
					return err
				}
				res.Contents++
			}
		}
		return nil
	})
	return res, err
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
