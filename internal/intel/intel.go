// Package intel exposes the topic intelligence operations: subscriptions,
// cached item queries and the refresh pipeline that feeds the cache.
package intel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/matheuskafuri/intelfeed/internal/cache"
	"github.com/matheuskafuri/intelfeed/internal/classify"
	"github.com/matheuskafuri/intelfeed/internal/dedup"
	"github.com/matheuskafuri/intelfeed/internal/feed"
	"github.com/matheuskafuri/intelfeed/internal/metrics"
	"github.com/matheuskafuri/intelfeed/internal/subscription"
	"github.com/matheuskafuri/intelfeed/internal/topic"
)

// ErrPersistence wraps every subscription or cache store failure.
var ErrPersistence = errors.New("persistence failure")

// Fetcher retrieves raw items for a topic.
type Fetcher interface {
	FetchTopic(ctx context.Context, t topic.Topic) feed.Result
}

// Enricher scores classified items. It must never fail.
type Enricher interface {
	Enrich(ctx context.Context, items []cache.ClassifiedItem) []cache.EnrichedItem
}

type Service struct {
	registry   *subscription.Registry
	cache      *cache.TopicCache
	fetcher    Fetcher
	enricher   Enricher
	staleAfter time.Duration
	now        func() time.Time
	log        *slog.Logger

	locks keyedMutex
}

type Option func(*Service)

// WithStaleAfter sets the IsStale threshold.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func New(registry *subscription.Registry, tc *cache.TopicCache, fetcher Fetcher, enricher Enricher, opts ...Option) *Service {
	s := &Service{
		registry:   registry,
		cache:      tc,
		fetcher:    fetcher,
		enricher:   enricher,
		staleAfter: cache.DefaultStaleAfter,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func persistence(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// Subscribe validates and records the subscription, then refreshes the topic
// before returning so the first query is not served from an empty cache. A
// failed refresh store write is returned alongside OutcomeSuccess since the
// subscription itself was recorded.
func (s *Service) Subscribe(ctx context.Context, userID int64, raw string) (subscription.Outcome, error) {
	t, out, err := s.registry.Subscribe(ctx, userID, raw)
	if err != nil {
		return out, persistence(err)
	}
	if !out.OK() {
		return out, nil
	}
	if _, err := s.RefreshTopic(ctx, t.String()); err != nil {
		return out, err
	}
	return out, nil
}

// Unsubscribe reports whether a subscription was removed. The topic's cache
// entry is kept.
func (s *Service) Unsubscribe(ctx context.Context, userID int64, raw string) (bool, error) {
	removed, err := s.registry.Unsubscribe(ctx, userID, raw)
	if err != nil {
		return false, persistence(err)
	}
	return removed, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, userID int64) ([]string, error) {
	return s.registry.ListTopics(ctx, userID)
}

func (s *Service) ListAllSubscribedTopics(ctx context.Context) ([]string, error) {
	return s.registry.ListAllDistinctTopics(ctx)
}

// GetCachedItems returns a snapshot of the topic's items, newest first.
func (s *Service) GetCachedItems(ctx context.Context, raw string) ([]cache.EnrichedItem, error) {
	return s.cache.Get(ctx, topic.Normalize(raw).String())
}

// IsStale reports whether the topic has no items or only old ones.
func (s *Service) IsStale(ctx context.Context, raw string) (bool, error) {
	return s.cache.IsStale(ctx, topic.Normalize(raw).String(), s.staleAfter)
}

// GetFreshItems refreshes the topic first when IsStale reports it stale, then
// returns its cached items. refreshed reports whether a refresh ran.
func (s *Service) GetFreshItems(ctx context.Context, raw string) (items []cache.EnrichedItem, refreshed bool, err error) {
	stale, err := s.IsStale(ctx, raw)
	if err != nil {
		return nil, false, persistence(err)
	}
	if stale {
		if _, err := s.RefreshTopic(ctx, raw); err != nil {
			return nil, false, err
		}
		refreshed = true
	}
	items, err = s.GetCachedItems(ctx, raw)
	if err != nil {
		return nil, refreshed, persistence(err)
	}
	return items, refreshed, nil
}

// RefreshTopic runs fetch, dedup, classify, enrich and merge for one topic
// and returns how many new unique items were found. Refreshes of the same
// topic never overlap. Only store failures are returned.
func (s *Service) RefreshTopic(ctx context.Context, raw string) (int, error) {
	t := topic.Normalize(raw)
	key := t.String()

	unlock := s.locks.Lock(key)
	defer unlock()

	start := time.Now()
	log := s.log.With(slog.String("topic", key))

	existing, _, err := s.cache.Entry(ctx, key)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("error").Inc()
		return 0, persistence(err)
	}

	res := s.fetcher.FetchTopic(ctx, t)

	fresh := dedup.Filter(res.Items, existing)
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].PublishedAt.After(fresh[j].PublishedAt)
	})
	enriched := s.enricher.Enrich(ctx, classify.All(fresh, s.now()))

	entry, err := s.cache.Merge(ctx, key, enriched)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("error").Inc()
		return 0, persistence(err)
	}

	metrics.RefreshesTotal.WithLabelValues("ok").Inc()
	metrics.NewItemsTotal.WithLabelValues(key).Add(float64(len(fresh)))
	metrics.CachedItems.WithLabelValues(key).Set(float64(len(entry.Items)))

	log.Info("topic refreshed",
		slog.Int("fetched", len(res.Items)),
		slog.Int("new_items", len(fresh)),
		slog.Int("source_errors", len(res.Errors)),
		slog.Int("cached", len(entry.Items)),
		slog.Duration("duration", time.Since(start)),
	)
	return len(fresh), nil
}
