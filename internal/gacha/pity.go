package gacha

import (
	"sort"
	"strings"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// RaritySet is a rarity floor: the set of rarities a draw may produce.
// A nil set means no floor.
type RaritySet map[domain.Rarity]struct{}

// NewRaritySet builds a set from rs.
func NewRaritySet(rs ...domain.Rarity) RaritySet {
	s := make(RaritySet, len(rs))
	for _, r := range rs {
		s[r] = struct{}{}
	}
	return s
}

// Contains reports whether r is allowed by the set.
func (s RaritySet) Contains(r domain.Rarity) bool {
	_, ok := s[r]
	return ok
}

func (s RaritySet) String() string {
	if s == nil {
		return "none"
	}
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

var (
	legendaryFloor = NewRaritySet(domain.RarityLegendary)
	rareFloor      = NewRaritySet(domain.RarityRare, domain.RarityEpic, domain.RarityLegendary)
)

// Thresholds are the per-crate pity limits.
type Thresholds struct {
	Rare      int
	Legendary int
}

// ThresholdsOf extracts the thresholds configured on a crate.
func ThresholdsOf(def domain.CrateDefinition) Thresholds {
	return Thresholds{Rare: def.RareThreshold, Legendary: def.LegendaryThreshold}
}

// Policy is the pity state machine. It is stateless; counters live in
// domain.PityState.
type Policy struct{}

// FloorFor returns the floor to enforce on the next draw from state, or nil.
// The legendary guarantee takes precedence over the rare one.
func (Policy) FloorFor(state domain.PityState, th Thresholds) RaritySet {
	switch {
	case state.OpensSinceLegendary >= th.Legendary:
		return legendaryFloor
	case state.OpensSinceRare >= th.Rare:
		return rareFloor
	default:
		return nil
	}
}

// Advance returns the state after one open that produced rolled.
func (Policy) Advance(state domain.PityState, rolled domain.Rarity) domain.PityState {
	next := state
	next.OpensSinceRare++
	next.OpensSinceLegendary++
	next.TotalOpens++

	switch rolled {
	case domain.RarityLegendary:
		next.OpensSinceLegendary = 0
		next.OpensSinceRare = 0
	case domain.RarityRare, domain.RarityEpic:
		next.OpensSinceRare = 0
	}
	return next
}

// Projection is what a client sees about its pity progress.
type Projection struct {
	OpensSinceRare      int `json:"opens_since_rare"`
	OpensSinceLegendary int `json:"opens_since_legendary"`
	TotalOpens          int `json:"total_opens"`
	RarePityIn          int `json:"rare_pity_in"`
	LegendaryPityIn     int `json:"legendary_pity_in"`
}

// Project computes the remaining opens until each guarantee, floored at 0.
func Project(state domain.PityState, th Thresholds) Projection {
	return Projection{
		OpensSinceRare:      state.OpensSinceRare,
		OpensSinceLegendary: state.OpensSinceLegendary,
		TotalOpens:          state.TotalOpens,
		RarePityIn:          max(0, th.Rare-state.OpensSinceRare),
		LegendaryPityIn:     max(0, th.Legendary-state.OpensSinceLegendary),
	}
}
