package cache

import (
	"fmt"
	"strings"
)

// Tiers lists every tier, most urgent first.
var Tiers = []Tier{TierBreaking, TierRecent, TierPopular}

// ParseTier reads a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q (valid: breaking, recent, popular)", s)
	}
	return t, nil
}

// TierGroup holds the items of one tier in their cached order.
type TierGroup struct {
	Tier  Tier
	Items []EnrichedItem
}

// GroupByTier splits items into one group per tier, in Tiers order. Empty
// tiers are included so callers can report them.
func GroupByTier(items []EnrichedItem) []TierGroup {
	groups := make([]TierGroup, len(Tiers))
	idx := make(map[Tier]int, len(Tiers))
	for i, t := range Tiers {
		groups[i].Tier = t
		idx[t] = i
	}
	for _, it := range items {
		if i, ok := idx[it.Tier]; ok {
			groups[i].Items = append(groups[i].Items, it)
		}
	}
	return groups
}

// FilterTier returns the items of a single tier.
func FilterTier(items []EnrichedItem, tier Tier) []EnrichedItem {
	var out []EnrichedItem
	for _, it := range items {
		if it.Tier == tier {
			out = append(out, it)
		}
	}
	return out
}
