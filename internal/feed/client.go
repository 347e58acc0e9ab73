package feed

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/matheuskafuri/intelfeed/internal/cache"
	"github.com/matheuskafuri/intelfeed/internal/retry"
)

const (
	DefaultMaxItems  = 15
	DefaultUserAgent = "Mozilla/5.0 (compatible; intelfeed/1.0)"
	maxSummaryRunes  = 500
)

// Client retrieves the items of a single feed.
type Client interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]cache.RawItem, error)
}

// GofeedClient parses RSS, Atom and JSON feeds over HTTP.
type GofeedClient struct {
	userAgent string
	maxItems  int
	http      *http.Client
	now       func() time.Time
}

func NewGofeedClient(userAgent string, maxItems int) *GofeedClient {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &GofeedClient{
		userAgent: userAgent,
		maxItems:  maxItems,
		http: &http.Client{Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: map[string]string{"Cache-Control": "no-cache"},
		}},
		now: time.Now,
	}
}

// Fetch reads at most maxItems entries. Client errors other than 429 and
// unrecognised feed formats are marked permanent.
func (c *GofeedClient) Fetch(ctx context.Context, url string, timeout time.Duration) ([]cache.RawItem, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// gofeed parsers keep per-parse state, so each fetch gets its own.
	fp := gofeed.NewParser()
	fp.UserAgent = c.userAgent
	fp.Client = c.http

	feed, err := fp.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, classify(err)
	}

	now := c.now()
	n := len(feed.Items)
	if n > c.maxItems {
		n = c.maxItems
	}
	items := make([]cache.RawItem, 0, n)
	for _, it := range feed.Items[:n] {
		if it == nil || (it.Title == "" && it.Link == "") {
			continue
		}
		pub := now
		if it.PublishedParsed != nil {
			pub = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			pub = *it.UpdatedParsed
		}

		summary := it.Description
		if summary == "" {
			summary = it.Content
		}

		items = append(items, cache.RawItem{
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Summary:     truncate(stripHTML(summary), maxSummaryRunes),
			PublishedAt: pub,
		})
	}
	return items, nil
}

func classify(err error) error {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(fmt.Errorf("http %d: %w", httpErr.StatusCode, err))
		}
		return err
	}
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return retry.Permanent(err)
	}
	return err
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// stripHTML returns the text content of an HTML fragment with entities
// decoded and whitespace collapsed.
func stripHTML(s string) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
		return strings.Join(strings.Fields(doc.Text()), " ")
	}
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}
