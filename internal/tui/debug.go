package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DebugPanel keeps the most recent log lines and navigation events
type DebugPanel struct {
	enabled bool
	lines   []string
	buffer  int // max lines kept
}

// NewDebugPanel creates a new debug panel
func NewDebugPanel(enabled bool) DebugPanel {
	return DebugPanel{
		enabled: enabled,
		buffer:  100,
	}
}

// DebugEventMsg carries one log line into the debug panel.
// The log mirror sends these through Program.Send.
type DebugEventMsg struct {
	Line string
}

// IsEnabled returns whether debug mode is enabled
func (d *DebugPanel) IsEnabled() bool {
	return d.enabled
}

// AddLine adds a new debug line with timestamp
func (d *DebugPanel) AddLine(line string) {
	if !d.enabled {
		return
	}
	d.lines = append(d.lines, time.Now().Format("15:04:05.000")+" "+line)
	if len(d.lines) > d.buffer {
		d.lines = d.lines[len(d.lines)-d.buffer:]
	}
}

// AddEvent adds a "[kind] details" line
func (d *DebugPanel) AddEvent(kind, details string) {
	line := "[" + kind + "]"
	if details != "" {
		line += " " + details
	}
	d.AddLine(line)
}

// Lines returns the current debug lines
func (d *DebugPanel) Lines() []string {
	return d.lines
}

// Render draws the panel using exactly height rows, borders included
func (d *DebugPanel) Render(width, height int) string {
	if !d.enabled {
		return ""
	}

	title := lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true).
		Render("DEBUG")

	// Borders take two rows, the title one more
	contentHeight := height - 3
	if contentHeight < 1 {
		contentHeight = 1
	}

	start := 0
	if len(d.lines) > contentHeight {
		start = len(d.lines) - contentHeight
	}

	maxLen := width - 4
	if maxLen < 10 {
		maxLen = 10
	}

	lines := make([]string, 0, contentHeight)
	for _, line := range d.lines[start:] {
		lines = append(lines, truncate(line, maxLen))
	}
	for len(lines) < contentHeight {
		lines = append(lines, "")
	}

	return lipgloss.NewStyle().
		Width(width - 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorYellow).
		Padding(0, 1).
		Render(title + "\n" + strings.Join(lines, "\n"))
}

// truncate shortens s to max runes, marking the cut with "..."
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
