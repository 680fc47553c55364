// Package output provides terminal output utilities for shotmeter.
//
// This package includes:
//   - Table rendering for journaled log events and display-state changes
//   - The status summary printed by "shotmeter status"
//   - Spinners for indeterminate operations
//   - Human-readable formatting for dates and durations
//
// Tables use plain characters and ANSI color codes, the latter only when
// stdout is a terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/shotmeter/internal/store"
)

// ANSI color codes for display-state names
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorBlue   = "\033[34m"
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

// getStateColor maps a display-state name to its color.
func getStateColor(state string) string {
	switch state {
	case "OK":
		return colorGreen
	case "Smile":
		return colorBlue
	case "Warning":
		return colorYellow
	case "Stop":
		return colorRed
	default:
		return colorGray
	}
}

// RenderEventTable renders journaled log events, in the order given.
func RenderEventTable(evs []store.LogEvent) string {
	if len(evs) == 0 {
		return "No log events recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-19s %-18s %s\n", "Time", "Event", "Line"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, ev := range evs {
		sb.WriteString(fmt.Sprintf("%-19s %-18s %s\n",
			formatTimestamp(ev.ObservedAt),
			ev.Kind,
			truncate(ev.Line, 41)))
	}

	return sb.String()
}

// RenderStateTable renders journaled display-state changes, in the order given.
func RenderStateTable(changes []store.StateChange) string {
	if len(changes) == 0 {
		return "No state changes recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-19s %-8s %s\n", "Time", "State", "Age"))
	sb.WriteString(strings.Repeat("─", 48))
	sb.WriteString("\n")

	for _, sc := range changes {
		// Pad before coloring so escape codes don't break alignment.
		state := colorize(getStateColor(sc.State), fmt.Sprintf("%-8s", sc.State))
		sb.WriteString(fmt.Sprintf("%-19s %s %s\n",
			formatTimestamp(sc.ChangedAt),
			state,
			formatRelativeTime(sc.ChangedAt)))
	}

	return sb.String()
}

// RenderEventCounts renders per-kind counts sorted by name.
func RenderEventCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "  (none)\n"
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	var sb strings.Builder
	for _, k := range kinds {
		sb.WriteString(fmt.Sprintf("  %-20s %d\n", k, counts[k]))
	}
	return sb.String()
}

// Status is the summary shown by the status command.
type Status struct {
	Running     bool
	PID         int
	PIDFile     string
	LogPath     string
	LogSize     int64
	LogExists   bool
	Window      time.Duration
	WindowStart time.Time
	Latest      *store.StateChange
	Counts      map[string]int
	// JournalErr explains why journal data is missing, if it is.
	JournalErr error
}

// RenderStatus renders the status summary.
func RenderStatus(s Status) string {
	var sb strings.Builder

	if s.Running {
		sb.WriteString(fmt.Sprintf("Daemon:        %s (PID %d)\n", colorize(colorGreen, "running"), s.PID))
	} else {
		sb.WriteString(fmt.Sprintf("Daemon:        %s\n", colorize(colorGray, "stopped")))
	}
	sb.WriteString(fmt.Sprintf("PID file:      %s\n", s.PIDFile))

	if s.LogExists {
		sb.WriteString(fmt.Sprintf("Log file:      %s (%d bytes)\n", s.LogPath, s.LogSize))
	} else {
		sb.WriteString(fmt.Sprintf("Log file:      %s %s\n", s.LogPath, colorize(colorYellow, "(missing)")))
	}
	sb.WriteString(fmt.Sprintf("Window:        %s (started %s)\n", s.Window, s.WindowStart.Format("15:04:05")))

	if s.JournalErr != nil {
		sb.WriteString(fmt.Sprintf("Journal:       %v\n", s.JournalErr))
		return sb.String()
	}

	if s.Latest != nil {
		sb.WriteString(fmt.Sprintf("Display state: %s (%s)\n",
			colorize(getStateColor(s.Latest.State), s.Latest.State),
			formatRelativeTime(s.Latest.ChangedAt)))
	} else {
		sb.WriteString("Display state: unknown\n")
	}

	sb.WriteString("Events this window:\n")
	sb.WriteString(RenderEventCounts(s.Counts))

	return sb.String()
}

// formatTimestamp formats t in local time for table columns.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatRelativeTime formats a time as relative to now (e.g., "2 hours ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

// truncate shortens s to maxLen runes, ending in "..." when there is room.
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
