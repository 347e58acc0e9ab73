package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matheuskafuri/intelfeed/internal/ai"
	"github.com/matheuskafuri/intelfeed/internal/cache"
	"github.com/matheuskafuri/intelfeed/internal/config"
	"github.com/matheuskafuri/intelfeed/internal/database"
	"github.com/matheuskafuri/intelfeed/internal/enrich"
	"github.com/matheuskafuri/intelfeed/internal/feed"
	"github.com/matheuskafuri/intelfeed/internal/intel"
	"github.com/matheuskafuri/intelfeed/internal/metrics"
	"github.com/matheuskafuri/intelfeed/internal/ratelimit"
	"github.com/matheuskafuri/intelfeed/internal/retry"
	"github.com/matheuskafuri/intelfeed/internal/subscription"
	"github.com/matheuskafuri/intelfeed/internal/topic"
)

// app holds the wired service graph for a single command invocation.
type app struct {
	cfg *config.Config
	log *slog.Logger
	db  *database.DB
	rdb *redis.Client
	svc *intel.Service
	enr *enrich.Enricher
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	cacheStore, subStore, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	resolver, err := topic.NewResolver(cfg.TopicCategories())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("building resolver: %w", err)
	}

	registry := subscription.NewRegistry(subStore, topic.NewDomain(cfg.AllowedTopics), log)
	tc := cache.New(cacheStore, cache.WithSize(cfg.GetCacheSize()), cache.WithLogger(log))

	gen, err := ai.New(cfg.AI)
	switch {
	case errors.Is(err, ai.ErrDisabled):
		log.Info("enrichment disabled, using default priorities", slog.String("reason", err.Error()))
		gen = nil
	case err != nil:
		a.Close()
		return nil, fmt.Errorf("configuring AI: %w", err)
	}

	a.enr = enrich.New(gen,
		enrich.WithLimit(cfg.Enrich.Limit),
		enrich.WithTimeout(cfg.EnrichTimeout()),
		enrich.WithLanguage(cfg.Enrich.Language),
		enrich.WithLogger(log),
	)
	a.svc = intel.New(registry, tc,
		newFetcher(cfg, resolver, log),
		a.enr,
		intel.WithStaleAfter(cfg.StaleDuration()),
		intel.WithLogger(log),
	)
	return a, nil
}

func (a *app) openStores(ctx context.Context) (cache.Store, subscription.Store, error) {
	switch a.cfg.Store.Backend {
	case "memory":
		return cache.NewMemoryStore(), subscription.NewMemoryStore(), nil
	case "redis":
		rdb, err := cache.DialRedis(ctx, a.cfg.Store.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		a.rdb = rdb
		// Subscriptions stay in sqlite; only the topic cache moves to redis.
		db, err := database.Open(a.cfg.DatabasePath())
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		a.db = db
		return cache.NewRedisStore(rdb), subscription.NewSQLiteStore(db), nil
	default:
		db, err := database.Open(a.cfg.DatabasePath())
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		a.db = db
		return cache.NewSQLiteStore(db), subscription.NewSQLiteStore(db), nil
	}
}

func newFetcher(cfg *config.Config, resolver *topic.Resolver, log *slog.Logger) *feed.Fetcher {
	limiter := ratelimit.New("feeds", cfg.Fetch.RequestsPerMinute,
		ratelimit.WithLogger(log),
		ratelimit.OnWait(observeWait),
	)
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
		Multiplier:  cfg.Retry.Multiplier,
		MaxDelay:    cfg.RetryMaxDelay(),
		OnRetry: func(attempt int, delay time.Duration, err error) {
			log.Debug("retrying fetch", slog.Int("attempt", attempt), slog.Duration("delay", delay), slog.Any("error", err))
		},
	}
	return feed.NewFetcher(
		feed.NewGofeedClient(cfg.Fetch.UserAgent, cfg.Fetch.MaxItems),
		resolver,
		feed.WithLimiter(limiter),
		feed.WithRetry(policy),
		feed.WithTimeout(cfg.FetchTimeout()),
		feed.WithSourceDeadline(cfg.SourceDeadline()),
		feed.WithConcurrency(cfg.Fetch.Concurrency),
		feed.WithLogger(log),
	)
}

func observeWait(name string, d time.Duration) {
	metrics.ObserveRateLimitWait(name, d.Seconds())
}

// ping checks whichever stores are open.
func (a *app) ping(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.Ping(); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *app) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("closing redis", slog.Any("error", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("closing database", slog.Any("error", err))
		}
	}
}

// withApp builds the service graph for the duration of fn.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
