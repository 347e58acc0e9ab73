package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

const (
	// DefaultSize is the maximum number of items kept per topic.
	DefaultSize = 10
	// DefaultStaleAfter is how old the newest item may get before a topic is stale.
	DefaultStaleAfter = time.Hour
)

// ErrInvalidItem is returned by Merge for items violating the item invariants.
var ErrInvalidItem = errors.New("invalid cache item")

// TopicCache is the bounded, newest-first item cache for every topic. All
// writes go through Merge.
type TopicCache struct {
	store Store
	size  int
	now   func() time.Time
	log   *slog.Logger
}

type Option func(*TopicCache)

// WithSize overrides the per-topic item limit.
func WithSize(n int) Option {
	return func(c *TopicCache) {
		if n > 0 {
			c.size = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *TopicCache) { c.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *TopicCache) { c.log = log }
}

func New(store Store, opts ...Option) *TopicCache {
	c := &TopicCache{store: store, size: DefaultSize, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Size returns the per-topic item limit.
func (c *TopicCache) Size() int { return c.size }

// Merge folds items into the topic's entry: items already cached are dropped,
// the rest are combined with the existing ones, ordered newest first and cut
// down to the size limit. The write is a single atomic replacement. When no
// item is new, an existing entry within the limit is left exactly as it was;
// one over the limit is trimmed and keeps its UpdatedAt.
func (c *TopicCache) Merge(ctx context.Context, topic string, items []EnrichedItem) (Entry, error) {
	for _, it := range items {
		if err := validate(it); err != nil {
			return Entry{}, err
		}
	}

	added := 0
	entry, err := c.store.Update(ctx, topic, func(cur Entry, exists bool) (Entry, bool, error) {
		var merged []EnrichedItem
		merged, added = mergeItems(cur.Items, items, c.size)
		if exists && added == 0 {
			if len(cur.Items) <= c.size {
				return cur, false, nil
			}
			// the limit was lowered since the entry was written
			return Entry{Topic: topic, Items: merged, UpdatedAt: cur.UpdatedAt}, true, nil
		}
		return Entry{Topic: topic, Items: merged, UpdatedAt: c.now()}, true, nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("merging %q: %w", topic, err)
	}

	c.log.Debug("cache merged",
		slog.String("topic", topic),
		slog.Int("offered", len(items)),
		slog.Int("added", added),
		slog.Int("size", len(entry.Items)),
	)
	return entry, nil
}

// Get returns an independent snapshot of the topic's items, newest first.
func (c *TopicCache) Get(ctx context.Context, topic string) ([]EnrichedItem, error) {
	e, ok, err := c.store.Load(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", topic, err)
	}
	if !ok {
		return nil, nil
	}
	return e.Clone().Items, nil
}

// Entry returns a snapshot of the topic's entry and whether it exists.
func (c *TopicCache) Entry(ctx context.Context, topic string) (Entry, bool, error) {
	e, ok, err := c.store.Load(ctx, topic)
	if err != nil {
		return Entry{}, false, fmt.Errorf("loading %q: %w", topic, err)
	}
	return e.Clone(), ok, nil
}

// IsStale reports whether the topic has no items or its newest item is older
// than threshold.
func (c *TopicCache) IsStale(ctx context.Context, topic string, threshold time.Duration) (bool, error) {
	items, err := c.Get(ctx, topic)
	if err != nil {
		return true, err
	}
	if len(items) == 0 {
		return true, nil
	}
	return c.now().Sub(items[0].PublishedAt) > threshold, nil
}

// Topics lists every topic that has an entry.
func (c *TopicCache) Topics(ctx context.Context) ([]string, error) {
	return c.store.Topics(ctx)
}

// mergeItems returns the merged list and the number of incoming items that
// were not already present.
func mergeItems(existing, incoming []EnrichedItem, size int) ([]EnrichedItem, int) {
	seen := make(map[Hash]struct{}, len(existing)+len(incoming))
	combined := make([]EnrichedItem, 0, len(existing)+len(incoming))

	var kept []EnrichedItem
	for _, it := range existing {
		h := it.Hash()
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		kept = append(kept, it)
	}

	added := 0
	for _, it := range incoming {
		h := it.Hash()
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		combined = append(combined, it)
		added++
	}
	combined = append(combined, kept...)

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].PublishedAt.After(combined[j].PublishedAt)
	})
	if len(combined) > size {
		combined = combined[:size]
	}
	return combined, added
}

func validate(it EnrichedItem) error {
	if it.Priority < MinPriority || it.Priority > MaxPriority {
		return fmt.Errorf("%w: priority %d for %q", ErrInvalidItem, it.Priority, it.Link)
	}
	if !it.Tier.Valid() {
		return fmt.Errorf("%w: tier %q for %q", ErrInvalidItem, it.Tier, it.Link)
	}
	return nil
}
