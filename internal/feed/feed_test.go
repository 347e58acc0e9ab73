package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheuskafuri/intelfeed/internal/cache"
	"github.com/matheuskafuri/intelfeed/internal/ratelimit"
	"github.com/matheuskafuri/intelfeed/internal/retry"
	"github.com/matheuskafuri/intelfeed/internal/topic"
)

type rssItem struct {
	title, link, desc, pub string
}

func rss(items ...rssItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>`)
	for _, it := range items {
		fmt.Fprintf(&b, "<item><title>%s</title><link>%s</link><description><![CDATA[%s]]></description>", it.title, it.link, it.desc)
		if it.pub != "" {
			fmt.Fprintf(&b, "<pubDate>%s</pubDate>", it.pub)
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

var fastRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1}

func TestGofeedClientParsesItems(t *testing.T) {
	var gotUA, gotCache string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCache = r.Header.Get("Cache-Control")
		fmt.Fprint(w, rss(
			rssItem{"Go 1.24", "https://go.dev/1.24", "<p>Generic <b>type</b> aliases</p>", "Mon, 09 Mar 2026 10:00:00 GMT"},
			rssItem{"No date", "https://x.dev/nodate", strings.Repeat("a", 600), ""},
		))
	}))
	defer srv.Close()

	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := NewGofeedClient("test-agent/1.0", 10)
	c.now = func() time.Time { return fixed }

	items, err := c.Fetch(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if gotUA != "test-agent/1.0" || gotCache != "no-cache" {
		t.Errorf("headers: ua=%q cache=%q", gotUA, gotCache)
	}
	if items[0].Summary != "Generic type aliases" {
		t.Errorf("summary = %q", items[0].Summary)
	}
	if !items[0].PublishedAt.Equal(time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("published = %v", items[0].PublishedAt)
	}
	if !items[1].PublishedAt.Equal(fixed) {
		t.Errorf("missing date should default to fetch time, got %v", items[1].PublishedAt)
	}
	if n := len([]rune(items[1].Summary)); n != maxSummaryRunes {
		t.Errorf("summary length = %d", n)
	}
}

func TestGofeedClientCapsItems(t *testing.T) {
	var items []rssItem
	for i := 0; i < 20; i++ {
		items = append(items, rssItem{fmt.Sprintf("post %d", i), fmt.Sprintf("https://x.dev/%d", i), "", ""})
	}
	srv := serveFeed(t, rss(items...))

	got, err := NewGofeedClient("", 15).Fetch(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 15 {
		t.Errorf("expected 15 items, got %d", len(got))
	}
}

func TestGofeedClientPermanentErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		permanent bool
	}{
		{"not found", http.StatusNotFound, "", true},
		{"forbidden", http.StatusForbidden, "", true},
		{"too many requests", http.StatusTooManyRequests, "", false},
		{"server error", http.StatusInternalServerError, "", false},
		{"not a feed", http.StatusOK, "hello there", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewGofeedClient("", 0).Fetch(context.Background(), srv.URL, time.Second)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := retry.IsPermanent(err); got != tt.permanent {
				t.Errorf("permanent = %v, want %v (%v)", got, tt.permanent, err)
			}
		})
	}
}

func TestFetchSourcesIsolatesFailures(t *testing.T) {
	good1 := serveFeed(t, rss(
		rssItem{"A", "https://x.dev/a", "", "Mon, 09 Mar 2026 10:00:00 GMT"},
		rssItem{"Shared", "https://x.dev/shared", "", "Mon, 09 Mar 2026 09:00:00 GMT"},
	))
	good2 := serveFeed(t, rss(
		rssItem{"Shared", "https://x.dev/shared", "", "Mon, 09 Mar 2026 09:00:00 GMT"},
		rssItem{"B", "https://x.dev/b", "", "Sun, 08 Mar 2026 10:00:00 GMT"},
	))

	var brokenHits, missingHits atomic.Int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		brokenHits.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer broken.Close()
	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		missingHits.Add(1)
		http.NotFound(w, r)
	}))
	defer missing.Close()

	f := NewFetcher(NewGofeedClient("", 0), nil, WithRetry(fastRetry), WithTimeout(time.Second))
	res := f.FetchSources(context.Background(), []topic.Source{
		{Name: "good1", URL: good1.URL, Kind: cache.KindStandard},
		{Name: "broken", URL: broken.URL, Kind: cache.KindStandard},
		{Name: "missing", URL: missing.URL, Kind: cache.KindStandard},
		{Name: "good2", URL: good2.URL, Kind: cache.KindWeekly},
	})

	if len(res.Items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(res.Items))
	}
	var order []string
	for _, it := range res.Items {
		order = append(order, it.Source+":"+it.Title)
	}
	want := "good1:A,good1:Shared,good2:Shared,good2:B"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
	if res.Items[3].SourceKind != cache.KindWeekly {
		t.Errorf("source kind not tagged: %q", res.Items[3].SourceKind)
	}

	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 source errors, got %d", len(res.Errors))
	}
	if res.Errors[0].Source != "broken" || res.Errors[1].Source != "missing" {
		t.Errorf("unexpected errors %v", res.Errors)
	}
	if brokenHits.Load() != 3 {
		t.Errorf("transient failure should be retried 3 times, got %d", brokenHits.Load())
	}
	if missingHits.Load() != 1 {
		t.Errorf("permanent failure should not be retried, got %d", missingHits.Load())
	}
}

type stubClient struct {
	calls atomic.Int32
	items map[string][]cache.RawItem
}

func (s *stubClient) Fetch(ctx context.Context, url string, timeout time.Duration) ([]cache.RawItem, error) {
	s.calls.Add(1)
	items, ok := s.items[url]
	if !ok {
		return nil, retry.Permanent(fmt.Errorf("no such feed %s", url))
	}
	out := make([]cache.RawItem, len(items))
	copy(out, items)
	return out, nil
}

func TestFetchTopicResolvesCategory(t *testing.T) {
	resolver, err := topic.NewResolver([]topic.Category{
		{Name: "ai", Keywords: []string{"ai"}, Sources: []topic.Source{{Name: "ml", URL: "https://ml.example/rss", Kind: cache.KindMonthly}}},
		{Name: topic.DefaultCategory, Sources: []topic.Source{{Name: "hn", URL: "https://hn.example/rss", Kind: cache.KindStandard}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	client := &stubClient{items: map[string][]cache.RawItem{
		"https://ml.example/rss": {{Title: "model", Link: "https://ml.example/1"}},
		"https://hn.example/rss": {{Title: "story", Link: "https://hn.example/1"}},
	}}
	f := NewFetcher(client, resolver, WithRetry(retry.None))

	res := f.FetchTopic(context.Background(), "machine learning ai")
	if len(res.Items) != 1 || res.Items[0].Title != "model" || res.Items[0].SourceKind != cache.KindMonthly {
		t.Errorf("unexpected items %+v", res.Items)
	}

	res = f.FetchTopic(context.Background(), "rust")
	if len(res.Items) != 1 || res.Items[0].Source != "hn" {
		t.Errorf("expected default category, got %+v", res.Items)
	}
}

func TestFetchUsesLimiterPerHost(t *testing.T) {
	client := &stubClient{items: map[string][]cache.RawItem{
		"https://a.example/1": {{Title: "1", Link: "l1"}},
		"https://a.example/2": {{Title: "2", Link: "l2"}},
		"https://b.example/1": {{Title: "3", Link: "l3"}},
	}}
	limiter := ratelimit.New("fetch", 10)
	f := NewFetcher(client, nil, WithLimiter(limiter), WithRetry(retry.None))

	f.FetchSources(context.Background(), []topic.Source{
		{Name: "a1", URL: "https://a.example/1"},
		{Name: "a2", URL: "https://a.example/2"},
		{Name: "b1", URL: "https://b.example/1"},
	})

	if got := limiter.Stats("a.example").Recent; got != 2 {
		t.Errorf("a.example recent = %d, want 2", got)
	}
	if got := limiter.Stats("b.example").Recent; got != 1 {
		t.Errorf("b.example recent = %d, want 1", got)
	}
}

func TestFetchCancelledContext(t *testing.T) {
	client := &stubClient{items: map[string][]cache.RawItem{}}
	limiter := ratelimit.New("fetch", 1)
	f := NewFetcher(client, nil, WithLimiter(limiter), WithRetry(retry.None))

	// exhaust the window so the next request has to wait
	limiter.Wait(context.Background(), "a.example")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := f.FetchSources(ctx, []topic.Source{{Name: "a", URL: "https://a.example/1"}})
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(res.Errors))
	}
	if client.calls.Load() != 0 {
		t.Errorf("client should not be called while rate limited")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long string", 10, "this is..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 5, ""},
		{"こんにちは世界です", 5, "こん..."},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<p>Hello</p>", "Hello"},
		{"<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"No tags here", "No tags here"},
		{"<div>  Multiple   spaces  </div>", "Multiple spaces"},
		{"Tom &amp; Jerry&#39;s <em>&quot;show&quot;</em>", `Tom & Jerry's "show"`},
		{"a &lt;b&gt; c", "a <b> c"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := stripHTML(tt.input); got != tt.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

type slowClient struct {
	calls atomic.Int32
}

func (s *slowClient) Fetch(ctx context.Context, url string, timeout time.Duration) ([]cache.RawItem, error) {
	s.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFetchSourceDeadlineSpansRetries(t *testing.T) {
	client := &slowClient{}
	f := NewFetcher(client, nil,
		WithRetry(retry.Policy{MaxAttempts: 5, BaseDelay: time.Hour}),
		WithSourceDeadline(50*time.Millisecond),
	)

	start := time.Now()
	res := f.FetchSources(context.Background(), []topic.Source{{Name: "slow", URL: "https://slow.example/rss"}})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("source held for %v, expected the deadline to cut it short", elapsed)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 source error, got %d", len(res.Errors))
	}
	if got := client.calls.Load(); got != 1 {
		t.Errorf("expected a single attempt within the deadline, got %d", got)
	}
}
