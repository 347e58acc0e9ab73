package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matheuskafuri/intelfeed/internal/ai"
	"github.com/matheuskafuri/intelfeed/internal/cache"
	"github.com/matheuskafuri/intelfeed/internal/enrich"
)

var tierLabels = map[cache.Tier]string{
	cache.TierBreaking: "Breaking · last 48h",
	cache.TierRecent:   "Recent · last 14 days",
	cache.TierPopular:  "Popular",
}

// Groups renders items under one heading per tier. Numbering runs across
// groups in display order, matching Flatten.
func Groups(topic string, groups []cache.TierGroup, now time.Time, width int) string {
	if width < 20 {
		width = 80
	}
	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%s · %d item(s)", topic, total)))
	sb.WriteString("\n")
	if total == 0 {
		sb.WriteString(timeStyle.Render("  nothing cached yet"))
		sb.WriteString("\n")
		return sb.String()
	}

	n := 0
	for _, g := range groups {
		label := tierLabels[g.Tier]
		if label == "" {
			label = string(g.Tier)
		}
		sb.WriteString("\n")
		sb.WriteString(tierStyle(string(g.Tier)).Render(fmt.Sprintf("▌%s (%d)", label, len(g.Items))))
		sb.WriteString("\n")
		if len(g.Items) == 0 {
			sb.WriteString(timeStyle.Render("  none"))
			sb.WriteString("\n")
			continue
		}
		for _, it := range g.Items {
			n++
			sb.WriteString(Item(n, it, now, width))
		}
	}
	return sb.String()
}

// Flatten returns the items of groups in display order.
func Flatten(groups []cache.TierGroup) []cache.EnrichedItem {
	var out []cache.EnrichedItem
	for _, g := range groups {
		out = append(out, g.Items...)
	}
	return out
}

// Summary renders a generated or fallback summary beneath the item title.
func Summary(it cache.EnrichedItem, s enrich.Summary, width int) string {
	if width < 20 {
		width = 80
	}
	label := "Flash summary"
	if s.Quality == ai.QualityDeep {
		label = "Deep analysis"
	}
	if !s.Generated {
		label += " (description)"
	}
	body := lipgloss.NewStyle().Width(width - 2).PaddingLeft(2).Render(s.Text)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(truncateStr(it.DisplayTitle, width)))
	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render(label))
	sb.WriteString("\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	sb.WriteString(linkStyle.Render(truncateStr(it.Link, width)))
	sb.WriteString("\n")
	return sb.String()
}
