// Package render formats cached topic items for the terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matheuskafuri/intelfeed/internal/cache"
)

// Items renders a topic header followed by one block per item.
func Items(topic string, items []cache.EnrichedItem, now time.Time, width int) string {
	if width < 20 {
		width = 80
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%s · %d item(s)", topic, len(items))))
	sb.WriteString("\n")
	if len(items) == 0 {
		sb.WriteString(timeStyle.Render("  nothing cached yet"))
		sb.WriteString("\n")
		return sb.String()
	}

	for i, it := range items {
		sb.WriteString("\n")
		sb.WriteString(Item(i+1, it, now, width))
	}
	return sb.String()
}

// Item renders a single item as title, metadata and link lines.
func Item(n int, it cache.EnrichedItem, now time.Time, width int) string {
	prefix := fmt.Sprintf("%2d. ", n)
	badge := priorityBadge(it.Priority)
	avail := width - lipgloss.Width(prefix) - lipgloss.Width(badge) - 1

	title := prefix + badge + " " + titleStyle.Render(truncateStr(it.DisplayTitle, avail))
	meta := "    " + tierStyle(string(it.Tier)).Render(string(it.Tier)) +
		" " + sourceStyle.Render(it.Source) +
		" " + timeStyle.Render("· "+relativeTime(now, it.PublishedAt))
	link := "    " + linkStyle.Render(truncateStr(it.Link, width-4))

	return title + "\n" + meta + "\n" + link + "\n"
}

func priorityBadge(p int) string {
	s := fmt.Sprintf("[P%d]", p)
	switch {
	case p >= 4:
		return highPriorityStyle.Render(s)
	case p == 3:
		return midPriorityStyle.Render(s)
	default:
		return lowPriorityStyle.Render(s)
	}
}

func tierStyle(tier string) lipgloss.Style {
	if s, ok := tierStyles[tier]; ok {
		return s
	}
	return timeStyle
}

func relativeTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

func truncateStr(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
