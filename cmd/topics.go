package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/intelfeed/internal/ai"
	"github.com/matheuskafuri/intelfeed/internal/browser"
	"github.com/matheuskafuri/intelfeed/internal/cache"
	"github.com/matheuskafuri/intelfeed/internal/render"
)

var (
	flagShowSince string
	flagWidth     int
	flagOpen      int
	flagTier      string
	flagNoRefresh bool
	flagSummarize int
	flagDeep      bool
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List every topic with at least one subscriber",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withApp(cmd.Context(), func(a *app) error {
			topics, err := a.svc.ListAllSubscribedTopics(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range topics {
				fmt.Fprintln(out, t)
			}
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <topic...>",
	Short: "Print the cached items of a topic, grouped by tier",
	Long: `Print the cached items of a topic grouped into breaking, recent and popular.
A stale topic is refreshed first unless --no-refresh is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := strings.Join(args, " ")
		var since time.Duration
		if flagShowSince != "" {
			d, err := parseSince(flagShowSince)
			if err != nil {
				return fmt.Errorf("invalid --since value: %w", err)
			}
			since = d
		}
		var tier cache.Tier
		if flagTier != "" {
			t, err := cache.ParseTier(flagTier)
			if err != nil {
				return err
			}
			tier = t
		}
		if flagOpen > 0 && flagSummarize > 0 {
			return fmt.Errorf("--open and --summarize cannot be combined")
		}

		out := cmd.OutOrStdout()
		return withApp(cmd.Context(), func(a *app) error {
			items, err := showItems(cmd, a, raw)
			if err != nil {
				return err
			}
			now := time.Now()
			if since > 0 {
				items = newerThan(items, now.Add(-since))
			}

			var listed []cache.EnrichedItem
			if tier != "" {
				listed = cache.FilterTier(items, tier)
				fmt.Fprint(out, render.Items(raw+" · "+string(tier), listed, now, flagWidth))
			} else {
				groups := cache.GroupByTier(items)
				listed = render.Flatten(groups)
				fmt.Fprint(out, render.Groups(raw, groups, now, flagWidth))
			}

			switch {
			case flagOpen > 0:
				it, err := pick(listed, flagOpen, "--open")
				if err != nil {
					return err
				}
				return browser.Open(it.Link)
			case flagSummarize > 0:
				it, err := pick(listed, flagSummarize, "--summarize")
				if err != nil {
					return err
				}
				q := ai.QualityFast
				if flagDeep {
					q = ai.QualityDeep
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, render.Summary(it, a.enr.Summarize(cmd.Context(), it, q), flagWidth))
			}
			return nil
		})
	},
}

// showItems reads the topic, refreshing it first when stale unless
// --no-refresh is set.
func showItems(cmd *cobra.Command, a *app, raw string) ([]cache.EnrichedItem, error) {
	if flagNoRefresh {
		return a.svc.GetCachedItems(cmd.Context(), raw)
	}
	items, refreshed, err := a.svc.GetFreshItems(cmd.Context(), raw)
	if err != nil {
		return nil, err
	}
	if refreshed {
		a.log.Debug("stale topic refreshed before display", slog.String("topic", raw))
	}
	return items, nil
}

func pick(items []cache.EnrichedItem, n int, flag string) (cache.EnrichedItem, error) {
	if n > len(items) {
		return cache.EnrichedItem{}, fmt.Errorf("%s %d: only %d item(s) shown", flag, n, len(items))
	}
	return items[n-1], nil
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [topic...]",
	Short: "Refresh one topic, or every subscribed topic when none is given",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withApp(cmd.Context(), func(a *app) error {
			if len(args) == 0 {
				report := newScheduler(a).RunOnce(cmd.Context())
				fmt.Fprintf(out, "Refreshed %d topic(s), %d new item(s).\n", report.Topics, report.NewItems)
				if len(report.Failed) > 0 {
					return fmt.Errorf("refresh failed for: %s", strings.Join(report.Failed, ", "))
				}
				return nil
			}
			raw := strings.Join(args, " ")
			n, err := a.svc.RefreshTopic(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d new item(s).\n", raw, n)
			return nil
		})
	},
}

var staleCmd = &cobra.Command{
	Use:   "stale <topic...>",
	Short: "Report whether a topic's cache is empty or out of date",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := strings.Join(args, " ")
		return withApp(cmd.Context(), func(a *app) error {
			stale, err := a.svc.IsStale(cmd.Context(), raw)
			if err != nil {
				return err
			}
			if stale {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: stale\n", raw)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: fresh\n", raw)
			}
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withApp(cmd.Context(), func(a *app) error {
			fmt.Fprintf(out, "Backend: %s\n", cfg.Store.Backend)
			if a.db != nil {
				size, err := a.db.Size()
				if err != nil {
					return fmt.Errorf("reading stats: %w", err)
				}
				v, err := a.db.SchemaVersion()
				if err != nil {
					return fmt.Errorf("reading schema version: %w", err)
				}
				fmt.Fprintf(out, "Database: %s\n", a.db.Path)
				fmt.Fprintf(out, "Size: %s\n", formatBytes(size))
				fmt.Fprintf(out, "Schema: v%d\n", v)
			}
			topics, err := a.svc.ListAllSubscribedTopics(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Subscribed topics: %d\n", len(topics))
			return nil
		})
	},
}

func init() {
	showCmd.Flags().StringVar(&flagShowSince, "since", "", "only show items from the last duration (e.g., 7d, 24h)")
	showCmd.Flags().IntVar(&flagWidth, "width", 80, "output width")
	showCmd.Flags().IntVar(&flagOpen, "open", 0, "open the Nth listed item in the browser")
	showCmd.Flags().StringVar(&flagTier, "tier", "", "only show one tier: breaking, recent or popular")
	showCmd.Flags().BoolVar(&flagNoRefresh, "no-refresh", false, "never refresh a stale topic before showing it")
	showCmd.Flags().IntVar(&flagSummarize, "summarize", 0, "summarize the Nth listed item")
	showCmd.Flags().BoolVar(&flagDeep, "deep", false, "use the deep model for --summarize")
}

func newerThan(items []cache.EnrichedItem, cutoff time.Time) []cache.EnrichedItem {
	var out []cache.EnrichedItem
	for _, it := range items {
		if it.PublishedAt.After(cutoff) {
			out = append(out, it)
		}
	}
	return out
}

// parseSince accepts Go durations plus a whole-day "Nd" form.
func parseSince(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
