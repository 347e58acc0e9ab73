package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/matheuskafuri/intelfeed/internal/ai"
	"github.com/matheuskafuri/intelfeed/internal/cache"
	"github.com/matheuskafuri/intelfeed/internal/metrics"
)

const (
	FastSummaryTimeout = 20 * time.Second
	DeepSummaryTimeout = 40 * time.Second

	excerptRunes = 280
)

// Summary is the text produced for one item.
type Summary struct {
	Quality ai.Quality
	Text    string
	// Generated is false when Text is the item's own description.
	Generated bool
}

var summaryPrompts = map[ai.Quality]struct {
	system  string
	task    string
	timeout time.Duration
}{
	ai.QualityFast: {
		system:  "You are a concise journalist. You summarize news in two or three sentences at most.",
		task:    "Summarize the most important points in at most 2-3 sentences.",
		timeout: FastSummaryTimeout,
	},
	ai.QualityDeep: {
		system: "You are a technology analyst. You write clear, structured analyses.",
		task: `Write a structured analysis:
1. What it is: a clear explanation
2. Why it matters: impact and relevance
3. Context: useful background

At most 6-8 sentences in total.`,
		timeout: DeepSummaryTimeout,
	},
}

// SummaryPrompt renders the summary instruction for an item.
func SummaryPrompt(it cache.EnrichedItem, q ai.Quality, language string) string {
	p, ok := summaryPrompts[q]
	if !ok {
		p = summaryPrompts[ai.QualityFast]
	}
	return fmt.Sprintf("Title: %s\nContent: %s\n\n%s\nRespond in %s.",
		it.DisplayTitle, it.Summary, p.task, language)
}

// Summarize writes a fast or deep summary of one item. Deep summaries use the
// generator's stronger model. When no generator is configured or the call
// fails, the item's description excerpt is returned instead.
func (e *Enricher) Summarize(ctx context.Context, it cache.EnrichedItem, q ai.Quality) Summary {
	p, ok := summaryPrompts[q]
	if !ok {
		q, p = ai.QualityFast, summaryPrompts[ai.QualityFast]
	}
	if e.gen == nil {
		metrics.EnrichmentsTotal.WithLabelValues(metrics.EnrichSkipped).Inc()
		return Summary{Quality: q, Text: excerpt(it)}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := e.gen.Generate(ctx, ai.Request{
		Prompt:  SummaryPrompt(it, q, e.language),
		System:  p.system,
		Timeout: p.timeout,
		Quality: q,
	})
	text = strings.TrimSpace(text)
	if err == nil && text != "" {
		metrics.EnrichmentsTotal.WithLabelValues(metrics.EnrichOK).Inc()
		return Summary{Quality: q, Text: text, Generated: true}
	}

	e.log.Warn("summary failed, using description",
		slog.String("link", it.Link),
		slog.String("quality", string(q)),
		slog.Any("error", err),
	)
	metrics.EnrichmentsTotal.WithLabelValues(metrics.EnrichFallback).Inc()
	return Summary{Quality: q, Text: excerpt(it)}
}

func excerpt(it cache.EnrichedItem) string {
	s := strings.Join(strings.Fields(it.Summary), " ")
	if s == "" {
		return "No description available."
	}
	runes := []rune(s)
	if len(runes) <= excerptRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:excerptRunes-3])) + "..."
}
