package gacha

import (
	"errors"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// ErrEmptyPool is returned when no candidate survives the rarity floor, or the
// surviving candidates carry no weight. It indicates a crate configuration
// defect, never bad luck.
var ErrEmptyPool = errors.New("gacha: no eligible items for draw")

// Selector draws one crate content item proportionally to its drop weight.
type Selector struct {
	RNG RandomSource
}

// NewSelector returns a Selector using rng, or the crypto source when nil.
func NewSelector(rng RandomSource) *Selector {
	if rng == nil {
		rng = DefaultRNG()
	}
	return &Selector{RNG: rng}
}

// Select filters items to the floor (nil means the full pool) and draws one.
//
// The walk keeps catalog order and returns the first item whose running weight
// sum strictly exceeds the drawn value r in [0, total). The last eligible item
// is returned if rounding leaves r at the very top of the range.
func (s *Selector) Select(items []domain.CrateContent, floor RaritySet) (domain.CrateContent, error) {
	pool := Eligible(items, floor)
	if len(pool) == 0 {
		return domain.CrateContent{}, ErrEmptyPool
	}

	total := 0
	for _, it := range pool {
		total += it.DropWeight
	}
	if total <= 0 {
		return domain.CrateContent{}, ErrEmptyPool
	}

	r := s.RNG.Float64() * float64(total)
	acc := 0.0
	for _, it := range pool {
		acc += float64(it.DropWeight)
		if r < acc {
			return it, nil
		}
	}
	return pool[len(pool)-1], nil
}

// Eligible returns the items whose rarity is in floor, preserving order.
// Items with non-positive weight never qualify.
func Eligible(items []domain.CrateContent, floor RaritySet) []domain.CrateContent {
	out := make([]domain.CrateContent, 0, len(items))
	for _, it := range items {
		if it.DropWeight <= 0 {
			continue
		}
		if floor != nil && !floor.Contains(it.Rarity) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// TotalWeight sums the drop weights of items.
func TotalWeight(items []domain.CrateContent) int {
	total := 0
	for _, it := range items {
		total += it.DropWeight
	}
	return total
}
