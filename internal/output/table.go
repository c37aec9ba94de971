// Package output provides terminal output utilities for snapshotplot.
//
// This package includes:
//   - Table rendering for site entries, collections, recorded runs, builds and publishes
//   - Progress bars for multi-step operations such as publishing several snapshots
//   - Spinners for indeterminate operations such as a site build
//
// Tables use plain box-drawing rules and ANSI colour only when stdout is a
// terminal and NO_COLOR is unset. Progress indicators are safe for
// concurrent use.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/snapshotplot/internal/site"
	"github.com/blackwell-systems/snapshotplot/internal/store"
)

// ANSI color codes for run outcome display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderEntryTable renders site entries in the order given. Callers sort
// with site.SortEntries or a search ranking first.
func RenderEntryTable(entries []*site.Entry) string {
	if len(entries) == 0 {
		return "No entries found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-12s %-16s %-36s %s\n", "Date", "Collection", "Title", "Tags"))
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	for _, e := range entries {
		title := truncate(e.Title, 36)
		if e.AutoGenerated {
			title = truncate(e.Title, 34) + " *"
		}
		sb.WriteString(fmt.Sprintf("%-12s %-16s %-36s %s\n",
			e.Date.Format("2006-01-02"),
			truncate(e.Collection, 16),
			title,
			colorize(colorGray, strings.Join(e.Tags, ", "))))
	}
	return sb.String()
}

// RenderCollectionTable renders collections with their entry counts.
func RenderCollectionTable(collections []*site.Collection) string {
	if len(collections) == 0 {
		return "No collections found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-20s %-28s %-8s %s\n", "Name", "Title", "Entries", "Latest"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, c := range collections {
		latest := "—"
		if len(c.Entries) > 0 {
			latest = c.Entries[0].Date.Format("2006-01-02")
		}
		sb.WriteString(fmt.Sprintf("%-20s %-28s %-8d %s\n",
			truncate(c.Name, 20),
			truncate(c.Title, 28),
			len(c.Entries),
			latest))
	}
	return sb.String()
}

// RenderRunTable renders recorded runs, newest first as the store returns
// them.
func RenderRunTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-21s %-28s %-6s %-9s %-16s %s\n",
		"Stamp", "Function", "Plots", "Duration", "Recorded", "Status"))
	sb.WriteString(strings.Repeat("─", 96))
	sb.WriteString("\n")

	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%-21s %-28s %-6d %-9s %-16s %s\n",
			r.Stamp,
			truncate(r.Function, 28),
			len(r.PlotPaths),
			formatDuration(r.Duration),
			formatRelativeTime(r.CreatedAt),
			formatOutcome(r)))
	}
	return sb.String()
}

// formatOutcome labels a run as ok, warned or failed.
func formatOutcome(r *store.Run) string {
	switch {
	case r.Outcome != "":
		return colorize(colorRed, "✗ "+truncate(r.Outcome, 30))
	case r.Warnings > 0:
		return colorize(colorYellow, fmt.Sprintf("⚠ %d warning(s)", r.Warnings))
	default:
		return colorize(colorGreen, "✓ ok")
	}
}

// RenderBuildTable renders site build history.
func RenderBuildTable(builds []*store.Build) string {
	if len(builds) == 0 {
		return "No builds recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-16s %-8s %-6s %-8s %s\n", "Built", "Entries", "Pages", "Skipped", "Failures"))
	sb.WriteString(strings.Repeat("─", 56))
	sb.WriteString("\n")

	for _, b := range builds {
		failures := fmt.Sprintf("%d", b.Failures)
		if b.Failures > 0 {
			failures = colorize(colorRed, failures)
		}
		sb.WriteString(fmt.Sprintf("%-16s %-8d %-6d %-8d %s\n",
			formatRelativeTime(b.BuiltAt),
			b.Entries,
			b.Pages,
			b.Skipped,
			failures))
	}
	return sb.String()
}

// RenderPublishTable renders the publish log.
func RenderPublishTable(publishes []*store.Publish) string {
	if len(publishes) == 0 {
		return "No publishes recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-16s %-24s %-6s %s\n", "Published", "Snapshot ID", "Files", "Directory"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, p := range publishes {
		sb.WriteString(fmt.Sprintf("%-16s %-24s %-6d %s\n",
			formatRelativeTime(p.PublishedAt),
			truncate(p.RemoteID, 24),
			p.Files,
			p.SnapshotDir))
	}
	return sb.String()
}

// RenderBuildSummary renders the one-line result of a site build.
// Format: "Built 3 collections · 14 entries · 21 pages (2 skipped, 1 failed)"
func RenderBuildSummary(r *site.BuildReport) string {
	s := fmt.Sprintf("Built %d collections · %d entries · %d pages",
		r.Collections, r.Entries, r.Pages)

	var notes []string
	if n := len(r.Skipped); n > 0 {
		notes = append(notes, colorize(colorYellow, fmt.Sprintf("%d skipped", n)))
	}
	if n := len(r.Failures); n > 0 {
		notes = append(notes, colorize(colorRed, fmt.Sprintf("%d failed", n)))
	}
	if len(notes) > 0 {
		s += " (" + strings.Join(notes, ", ") + ")"
	}
	return s
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "—"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate truncates a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
