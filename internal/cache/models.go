package cache

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// SourceKind tags where a feed's items come from.
type SourceKind string

const (
	KindStandard SourceKind = "standard"
	KindWeekly   SourceKind = "weekly"
	KindMonthly  SourceKind = "monthly"
)

// Valid reports whether k is one of the known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case KindStandard, KindWeekly, KindMonthly:
		return true
	}
	return false
}

// Tier is the recency classification of an item.
type Tier string

const (
	TierBreaking Tier = "breaking"
	TierRecent   Tier = "recent"
	TierPopular  Tier = "popular"
)

func (t Tier) Valid() bool {
	switch t {
	case TierBreaking, TierRecent, TierPopular:
		return true
	}
	return false
}

const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 3
)

// Hash identifies an item by its title and link.
type Hash string

// ContentHash returns the deduplication identity of an item.
func ContentHash(title, link string) Hash {
	h := sha256.Sum256([]byte(title + "|" + link))
	return Hash(fmt.Sprintf("%x", h[:16]))
}

type RawItem struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Summary     string     `json:"summary"`
	PublishedAt time.Time  `json:"published_at"`
	SourceKind  SourceKind `json:"source_kind"`
	Source      string     `json:"source"`
}

func (r RawItem) Hash() Hash {
	return ContentHash(r.Title, r.Link)
}

type ClassifiedItem struct {
	RawItem
	Tier Tier `json:"tier"`
}

type EnrichedItem struct {
	ClassifiedItem
	DisplayTitle string `json:"display_title"`
	Priority     int    `json:"priority"`
}

// Classified attaches a tier to a raw item. It panics on an unknown tier,
// which can only come from a programming error in the classifier.
func Classified(r RawItem, tier Tier) ClassifiedItem {
	if !tier.Valid() {
		panic(fmt.Sprintf("cache: invalid tier %q", tier))
	}
	return ClassifiedItem{RawItem: r, Tier: tier}
}

// Enriched attaches a display title and priority to a classified item.
func Enriched(c ClassifiedItem, displayTitle string, priority int) (EnrichedItem, error) {
	if priority < MinPriority || priority > MaxPriority {
		return EnrichedItem{}, fmt.Errorf("priority %d outside [%d,%d]", priority, MinPriority, MaxPriority)
	}
	if displayTitle == "" {
		displayTitle = c.Title
	}
	return EnrichedItem{ClassifiedItem: c, DisplayTitle: displayTitle, Priority: priority}, nil
}

// DefaultEnrichment is the deterministic enrichment used whenever scoring is
// skipped or fails.
func DefaultEnrichment(c ClassifiedItem) EnrichedItem {
	return EnrichedItem{ClassifiedItem: c, DisplayTitle: c.Title, Priority: DefaultPriority}
}

// Entry is the cached, bounded item list for a single topic, newest first.
type Entry struct {
	Topic     string         `json:"topic"`
	Items     []EnrichedItem `json:"items"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns an Entry that shares no memory with e.
func (e Entry) Clone() Entry {
	out := e
	if e.Items != nil {
		out.Items = make([]EnrichedItem, len(e.Items))
		copy(out.Items, e.Items)
	}
	return out
}

// Hashes returns the set of content hashes present in the entry.
func (e Entry) Hashes() map[Hash]struct{} {
	set := make(map[Hash]struct{}, len(e.Items))
	for _, it := range e.Items {
		set[it.Hash()] = struct{}{}
	}
	return set
}
