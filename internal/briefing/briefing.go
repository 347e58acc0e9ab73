// Package briefing builds a per-user digest from the topic cache.
package briefing

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/matheuskafuri/intelfeed/internal/cache"
)

// DefaultPerTopic caps how many items each topic contributes to a digest.
const DefaultPerTopic = 5

// HighlightPriority is the minimum priority preferred for the highlight.
const HighlightPriority = 4

// Source is the read side of the intel service the digest needs.
type Source interface {
	ListSubscriptions(ctx context.Context, userID int64) ([]string, error)
	GetCachedItems(ctx context.Context, topic string) ([]cache.EnrichedItem, error)
}

// Section holds the top items of one subscribed topic.
type Section struct {
	Topic string
	Items []cache.EnrichedItem
}

// Highlight is the single item featured at the top of the digest.
type Highlight struct {
	Topic string
	Item  cache.EnrichedItem
}

type Digest struct {
	UserID        int64
	Greeting      string
	DateLabel     string
	Sections      []Section
	Highlight     *Highlight
	Total         int
	ActiveSources string
	Trending      []string
}

// Empty reports whether the digest has nothing to show.
func (d *Digest) Empty() bool { return d.Total == 0 }

type Builder struct {
	src      Source
	perTopic int
	rng      *rand.Rand
	now      func() time.Time
}

type Option func(*Builder)

func WithPerTopic(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.perTopic = n
		}
	}
}

// WithRand fixes the highlight picker's randomness.
func WithRand(r *rand.Rand) Option {
	return func(b *Builder) { b.rng = r }
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func NewBuilder(src Source, opts ...Option) *Builder {
	b := &Builder{
		src:      src,
		perTopic: DefaultPerTopic,
		now:      time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return b
}

// Build collects the cached items of every topic the user follows.
func (b *Builder) Build(ctx context.Context, userID int64) (*Digest, error) {
	topics, err := b.src.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}

	now := b.now()
	d := &Digest{
		UserID:    userID,
		Greeting:  greeting(now),
		DateLabel: now.Format("Jan 2"),
	}

	var all, recent []cache.EnrichedItem
	var candidates []Highlight
	for _, t := range topics {
		items, err := b.src.GetCachedItems(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", t, err)
		}
		if len(items) == 0 {
			continue
		}
		top := topItems(items, b.perTopic)
		d.Sections = append(d.Sections, Section{Topic: t, Items: top})
		d.Total += len(top)

		for _, it := range top {
			candidates = append(candidates, Highlight{Topic: t, Item: it})
			if now.Sub(it.PublishedAt) <= 24*time.Hour {
				recent = append(recent, it)
			}
		}
		all = append(all, items...)
	}

	d.Highlight = pickHighlight(candidates, b.rng)
	if len(recent) > 0 {
		d.ActiveSources = activeSources(recent)
		d.Trending = trending(recent, all)
	}
	return d, nil
}

// topItems orders by priority then recency and keeps the first n.
func topItems(items []cache.EnrichedItem, n int) []cache.EnrichedItem {
	out := append([]cache.EnrichedItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func pickHighlight(candidates []Highlight, rng *rand.Rand) *Highlight {
	if len(candidates) == 0 {
		return nil
	}
	var important []Highlight
	for _, c := range candidates {
		if c.Item.Priority >= HighlightPriority {
			important = append(important, c)
		}
	}
	pool := candidates
	if len(important) > 0 {
		pool = important
	}
	h := pool[rng.IntN(len(pool))]
	return &h
}

// Render formats the digest as plain text for a chat message.
func Render(d *Digest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s! Your digest for %s\n", d.Greeting, d.DateLabel)

	if d.Empty() {
		sb.WriteString("\nNothing new in your topics yet.\n")
		return sb.String()
	}

	if d.Highlight != nil {
		h := d.Highlight.Item
		fmt.Fprintf(&sb, "\n★ %s [%s]\n  %s\n", h.DisplayTitle, d.Highlight.Topic, h.Link)
		if ex := DescriptionExcerpt(h.Summary); ex != "" {
			fmt.Fprintf(&sb, "  %s\n", ex)
		}
	}

	for _, s := range d.Sections {
		fmt.Fprintf(&sb, "\n# %s\n", s.Topic)
		for i, it := range s.Items {
			fmt.Fprintf(&sb, "%d. [P%d %s] %s\n   %s\n", i+1, it.Priority, it.Tier, it.DisplayTitle, it.Link)
		}
	}

	if len(d.Trending) > 0 {
		fmt.Fprintf(&sb, "\nTrending: %s\n", strings.Join(d.Trending, ", "))
	}
	if d.ActiveSources != "" {
		fmt.Fprintf(&sb, "Most active: %s\n", d.ActiveSources)
	}
	return sb.String()
}

// DescriptionExcerpt returns the first sentence of a description as a fallback.
func DescriptionExcerpt(desc string) string {
	if desc == "" {
		return ""
	}
	for i, c := range desc {
		if c == '.' && i > 20 {
			return desc[:i+1]
		}
	}
	runes := []rune(desc)
	if len(runes) > 150 {
		return string(runes[:150]) + "..."
	}
	return desc
}

func greeting(now time.Time) string {
	hour := now.Hour()
	switch {
	case hour < 12:
		return "Good morning"
	case hour < 17:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

func activeSources(items []cache.EnrichedItem) string {
	counts := map[string]int{}
	for _, it := range items {
		if it.Source != "" {
			counts[it.Source]++
		}
	}

	type sc struct {
		name  string
		count int
	}
	var sorted []sc
	for name, count := range counts {
		sorted = append(sorted, sc{name, count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].name < sorted[j].name
	})

	limit := min(3, len(sorted))
	parts := make([]string, limit)
	for i := 0; i < limit; i++ {
		parts[i] = fmt.Sprintf("%s (%d)", sorted[i].name, sorted[i].count)
	}
	return strings.Join(parts, ", ")
}

// trending extracts top keywords from recent titles using TF-IDF.
func trending(recent, all []cache.EnrichedItem) []string {
	df := map[string]int{}
	for _, it := range all {
		seen := map[string]bool{}
		for _, w := range tokenize(it.Title) {
			if !seen[w] {
				df[w]++
				seen[w] = true
			}
		}
	}

	tf := map[string]int{}
	for _, it := range recent {
		for _, w := range tokenize(it.Title) {
			tf[w]++
		}
	}

	totalDocs := max(len(all), 1)

	type scored struct {
		term  string
		score float64
	}
	var terms []scored
	for term, freq := range tf {
		if freq < 2 {
			continue
		}
		docFreq := max(df[term], 1)
		// +1 keeps terms present in every cached item from scoring zero.
		idf := math.Log(float64(totalDocs)/float64(docFreq)) + 1
		terms = append(terms, scored{term, float64(freq) * idf})
	}

	sort.Slice(terms, func(i, j int) bool {
		if terms[i].score != terms[j].score {
			return terms[i].score > terms[j].score
		}
		return terms[i].term < terms[j].term
	})

	limit := min(3, len(terms))
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = terms[i].term
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "is": true, "it": true, "its": true,
	"this": true, "that": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true, "do": true,
	"does": true, "did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "not": true, "no": true, "nor": true,
	"how": true, "what": true, "when": true, "where": true, "who": true, "which": true,
	"why": true, "all": true, "each": true, "every": true, "both": true, "few": true,
	"more": true, "most": true, "other": true, "some": true, "such": true, "than": true,
	"too": true, "very": true, "just": true, "about": true, "into": true, "over": true,
	"after": true, "before": true, "between": true, "under": true, "above": true,
	"out": true, "up": true, "down": true, "off": true, "our": true, "your": true,
	"we": true, "you": true, "they": true, "them": true, "their": true, "new": true,
	"use": true, "using": true, "used": true,
}

func tokenize(s string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(word) < 4 || stopWords[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}
