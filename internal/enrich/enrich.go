// Package enrich translates item titles and scores their priority with a
// text generator, falling back to the original title and a neutral priority
// whenever the generator cannot be used.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/matheuskafuri/intelfeed/internal/ai"
	"github.com/matheuskafuri/intelfeed/internal/cache"
	"github.com/matheuskafuri/intelfeed/internal/metrics"
)

const (
	DefaultLimit    = 10
	DefaultTimeout  = 15 * time.Second
	DefaultLanguage = "Spanish"
)

var (
	ErrMalformed  = errors.New("malformed enrichment response")
	ErrOutOfRange = errors.New("priority out of range")
)

// Result is a parsed generator response.
type Result struct {
	Title    string
	Priority int
}

type Enricher struct {
	gen      ai.Generator
	limit    int
	timeout  time.Duration
	language string
	log      *slog.Logger
}

type Option func(*Enricher)

// WithLimit sets how many items per call are sent to the generator.
func WithLimit(n int) Option {
	return func(e *Enricher) {
		if n >= 0 {
			e.limit = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(e *Enricher) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLanguage sets the language titles are translated to.
func WithLanguage(lang string) Option {
	return func(e *Enricher) {
		if lang != "" {
			e.language = lang
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Enricher) { e.log = log }
}

// New creates an Enricher. A nil generator gives every item the default
// enrichment.
func New(gen ai.Generator, opts ...Option) *Enricher {
	e := &Enricher{
		gen:      gen,
		limit:    DefaultLimit,
		timeout:  DefaultTimeout,
		language: DefaultLanguage,
	}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Enrich scores the newest items up to the limit and gives the rest the
// default enrichment. The result is ordered by priority, highest first, with
// ties kept newest first. Enrich never fails.
func (e *Enricher) Enrich(ctx context.Context, items []cache.ClassifiedItem) []cache.EnrichedItem {
	ordered := make([]cache.ClassifiedItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PublishedAt.After(ordered[j].PublishedAt)
	})

	out := make([]cache.EnrichedItem, 0, len(ordered))
	for i, it := range ordered {
		if e.gen == nil || i >= e.limit {
			metrics.EnrichmentsTotal.WithLabelValues(metrics.EnrichSkipped).Inc()
			out = append(out, cache.DefaultEnrichment(it))
			continue
		}
		out = append(out, e.enrichOne(ctx, it))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

func (e *Enricher) enrichOne(ctx context.Context, it cache.ClassifiedItem) cache.EnrichedItem {
	res, err := e.score(ctx, it)
	if err == nil {
		var enriched cache.EnrichedItem
		enriched, err = cache.Enriched(it, res.Title, res.Priority)
		if err == nil {
			metrics.EnrichmentsTotal.WithLabelValues(metrics.EnrichOK).Inc()
			return enriched
		}
	}

	e.log.Warn("enrichment failed, using defaults",
		slog.String("link", it.Link),
		slog.Any("error", err),
	)
	metrics.EnrichmentsTotal.WithLabelValues(metrics.EnrichFallback).Inc()
	return cache.DefaultEnrichment(it)
}

func (e *Enricher) score(ctx context.Context, it cache.ClassifiedItem) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.gen.Generate(ctx, ai.Request{
		Prompt:  Prompt(it.Title, e.language),
		System:  systemPrompt,
		Timeout: e.timeout,
		Quality: ai.QualityFast,
	})
	if err != nil {
		return Result{}, err
	}
	return Parse(text)
}

const systemPrompt = `You are a technology news editor. You translate headlines faithfully and rate their importance conservatively.`

const promptTemplate = `Title: %s

Tasks:
1. If the title is not in %s, translate it to %s (keep technical terms as they are).
2. Rate its importance with STRICT criteria:
   - 5: only critical vulnerabilities or groundbreaking launches (very rare)
   - 4: major announcements from large companies, disruptive technologies
   - 3: interesting news, new projects, useful tutorials (MOST items)
   - 2: minor news, small updates
   - 1: trivial or off-topic

BE CONSERVATIVE: most items should be 2 or 3, very few 4 or 5.

Respond EXACTLY in this format:
TITLE: <title in %s>
PRIORITY: <number from 1 to 5>`

// Prompt renders the enrichment instruction for a title.
func Prompt(title, language string) string {
	return fmt.Sprintf(promptTemplate, title, language, language, language)
}

// Parse reads a response of exactly one TITLE line and one PRIORITY line.
// Blank lines are ignored; anything else is ErrMalformed.
func Parse(text string) (Result, error) {
	var (
		r         Result
		haveTitle bool
		havePrio  bool
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return Result{}, fmt.Errorf("%w: unexpected line %q", ErrMalformed, line)
		}
		val = strings.TrimSpace(val)

		switch strings.TrimSpace(key) {
		case "TITLE":
			if haveTitle || val == "" {
				return Result{}, fmt.Errorf("%w: bad TITLE line", ErrMalformed)
			}
			r.Title, haveTitle = val, true
		case "PRIORITY":
			if havePrio {
				return Result{}, fmt.Errorf("%w: repeated PRIORITY line", ErrMalformed)
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				return Result{}, fmt.Errorf("%w: priority %q", ErrMalformed, val)
			}
			if n < cache.MinPriority || n > cache.MaxPriority {
				return Result{}, fmt.Errorf("%w: %d", ErrOutOfRange, n)
			}
			r.Priority, havePrio = n, true
		default:
			return Result{}, fmt.Errorf("%w: unexpected field %q", ErrMalformed, key)
		}
	}
	if !haveTitle || !havePrio {
		return Result{}, fmt.Errorf("%w: missing field", ErrMalformed)
	}
	return r, nil
}
