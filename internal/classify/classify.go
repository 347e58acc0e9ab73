package classify

import (
	"time"

	"github.com/matheuskafuri/intelfeed/internal/cache"
)

const (
	// BreakingWindow is the maximum age, inclusive, of a breaking item.
	BreakingWindow = 48 * time.Hour
	// RecentWindow is the maximum age, inclusive, of a recent item.
	RecentWindow = 14 * 24 * time.Hour
)

// Tier assigns a recency tier to an item. Aggregate feeds decide the tier on
// their own; standard feeds are tiered by age relative to now.
func Tier(item cache.RawItem, now time.Time) cache.Tier {
	switch item.SourceKind {
	case cache.KindMonthly:
		return cache.TierPopular
	case cache.KindWeekly:
		return cache.TierRecent
	}

	age := now.Sub(item.PublishedAt)
	switch {
	case age <= BreakingWindow:
		return cache.TierBreaking
	case age <= RecentWindow:
		return cache.TierRecent
	default:
		return cache.TierPopular
	}
}

// All classifies items in order.
func All(items []cache.RawItem, now time.Time) []cache.ClassifiedItem {
	out := make([]cache.ClassifiedItem, len(items))
	for i, it := range items {
		out[i] = cache.Classified(it, Tier(it, now))
	}
	return out
}
