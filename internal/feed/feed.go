package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matheuskafuri/intelfeed/internal/cache"
	"github.com/matheuskafuri/intelfeed/internal/metrics"
	"github.com/matheuskafuri/intelfeed/internal/ratelimit"
	"github.com/matheuskafuri/intelfeed/internal/retry"
	"github.com/matheuskafuri/intelfeed/internal/topic"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultConcurrency = 4

	// DefaultSourceDeadline caps one source's attempts, backoff sleeps and
	// limiter waits combined.
	DefaultSourceDeadline = 45 * time.Second
)

// SourceError reports one source that could not be fetched.
type SourceError struct {
	Source string
	URL    string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Result holds the items of every source that succeeded, in source order,
// and one SourceError per source that did not.
type Result struct {
	Items  []cache.RawItem
	Errors []*SourceError
}

// Fetcher retrieves all sources for a topic, isolating per-source failures.
type Fetcher struct {
	client      Client
	resolver    *topic.Resolver
	limiter     *ratelimit.Limiter
	retry       retry.Policy
	timeout     time.Duration
	deadline    time.Duration
	concurrency int
	log         *slog.Logger
}

type Option func(*Fetcher)

// WithLimiter gates every request on the source host's window.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

func WithRetry(p retry.Policy) Option {
	return func(f *Fetcher) { f.retry = p }
}

// WithTimeout bounds each individual source request.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithSourceDeadline bounds the total time spent on one source, retries included.
func WithSourceDeadline(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.deadline = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(f *Fetcher) { f.log = log }
}

func NewFetcher(client Client, resolver *topic.Resolver, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		resolver:    resolver,
		retry:       retry.Default,
		timeout:     DefaultTimeout,
		deadline:    DefaultSourceDeadline,
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(f)
	}
	if f.log == nil {
		f.log = slog.Default()
	}
	return f
}

// FetchTopic fetches every source of the topic's category.
func (f *Fetcher) FetchTopic(ctx context.Context, t topic.Topic) Result {
	return f.FetchSources(ctx, f.resolver.Sources(t))
}

// FetchSources fetches sources concurrently. A failing source is logged and
// reported in Result.Errors; it never affects the others.
func (f *Fetcher) FetchSources(ctx context.Context, sources []topic.Source) Result {
	perSource := make([][]cache.RawItem, len(sources))
	errs := make([]*SourceError, len(sources))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			start := time.Now()
			items, err := f.fetchSource(ctx, src)
			if err != nil {
				errs[i] = &SourceError{Source: src.Name, URL: src.URL, Err: err}
				metrics.SourceErrorsTotal.WithLabelValues(src.Name).Inc()
				f.log.Warn("source fetch failed",
					slog.String("source", src.Name),
					slog.String("url", src.URL),
					slog.Any("error", err),
				)
				return nil
			}
			perSource[i] = items
			f.log.Debug("source fetched",
				slog.String("source", src.Name),
				slog.Int("items", len(items)),
				slog.Duration("duration", time.Since(start)),
			)
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i := range sources {
		if errs[i] != nil {
			res.Errors = append(res.Errors, errs[i])
			continue
		}
		res.Items = append(res.Items, perSource[i]...)
	}
	return res
}

func (f *Fetcher) fetchSource(ctx context.Context, src topic.Source) ([]cache.RawItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.deadline)
	defer cancel()

	host := hostOf(src.URL)
	items, err := retry.Value(ctx, f.retry, func(ctx context.Context) ([]cache.RawItem, error) {
		if _, err := f.limiter.Wait(ctx, host); err != nil {
			return nil, retry.Permanent(err)
		}
		return f.client.Fetch(ctx, src.URL, f.timeout)
	})
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].SourceKind = src.Kind
		items[i].Source = src.Name
	}
	return items, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
