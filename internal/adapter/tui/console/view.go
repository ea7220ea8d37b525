package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"maestro-console/internal/adapter/tui/theme"
	"maestro-console/internal/domain"
)

// View renders the top bar, reasoning box, log viewport, input and status bar.
func (m *Model) View() string {
	if !m.ready {
		return "Starting " + theme.SymbolBot + theme.SymbolEllipsis
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTopBar(),
		m.renderReasoning(),
		m.logs.View(),
		m.input.View(),
		m.renderStatusBar(),
	)
}

func (m *Model) renderTopBar() string {
	left := theme.PhaseBadge(m.proj.Phase) + " " + theme.Bold.Render(m.proj.ActiveEngine)
	right := theme.TextMuted.Render(theme.SymbolArrowR + " " + truncate(m.proj.CurrentTarget, theme.Clamp(m.width/2, 10, theme.MaxContentWidth)))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return theme.TopBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) renderReasoning() string {
	inner := theme.Clamp(m.width-4, 10, 4*theme.MaxContentWidth)
	lines := reasoningLines(m.proj.Reasoning, inner)
	for len(lines) < 4 {
		lines = append(lines, "")
	}
	style := theme.BorderNormal
	if m.proj.Phase.Busy() {
		style = theme.BorderActive
	}
	return style.Width(inner).Render(strings.Join(lines[:4], "\n"))
}

// reasoningLines renders at most four lines describing r.
func reasoningLines(r *domain.ReasoningSnapshot, width int) []string {
	if r == nil {
		return []string{theme.TextMuted.Render("No reasoning yet")}
	}
	if r.IsWaiting && r.Thought == "" {
		return []string{theme.TextInfo.Render(theme.SymbolSpinner + " Waiting for the agent" + theme.SymbolEllipsis)}
	}

	var lines []string
	add := func(label, value string) {
		if value == "" {
			return
		}
		lines = append(lines, theme.Bold.Render(label)+" "+truncate(value, width-len(label)-1))
	}
	add("Thought:", r.Thought)
	add("Goal:", r.Goal)
	add("Memory:", r.Memory)
	if r.Elapsed != nil {
		lines = append(lines, theme.Timestamp.Render(fmt.Sprintf("Elapsed: %.2fs", *r.Elapsed)))
	}
	if len(lines) > 4 {
		lines = lines[:4]
	}
	return lines
}

func (m *Model) renderStatusBar() string {
	var flash string
	if m.flash != "" {
		if m.flashErr {
			flash = theme.TextError.Render(theme.SymbolError+" "+m.flash) + "  "
		} else {
			flash = theme.TextSuccess.Render(theme.SymbolSuccess+" "+m.flash) + "  "
		}
	}
	keys := []string{
		theme.StatusKey.Render("enter") + " run",
		theme.StatusKey.Render("esc") + " stop",
		theme.StatusKey.Render("tab") + " model:" + m.model,
		theme.StatusKey.Render("^l") + " clear",
		theme.StatusKey.Render("^s") + " save",
		theme.StatusKey.Render("^c") + " quit",
	}
	return theme.StatusBar.Width(m.width).Render(flash + strings.Join(keys, " "+theme.SymbolBullet+" "))
}

// renderLogs renders one line per entry, marked by level.
func renderLogs(entries []domain.LogEntry) string {
	if len(entries) == 0 {
		return theme.TextMuted.Render("  No log entries yet")
	}
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		style := theme.LevelStyle(e.Level)
		sb.WriteString(theme.Timestamp.Render(e.Timestamp.Format("15:04:05")))
		sb.WriteByte(' ')
		sb.WriteString(style.Render(theme.LevelSymbol(e.Level)))
		sb.WriteByte(' ')
		sb.WriteString(style.Render(fmt.Sprintf("%-6s", e.Level)))
		sb.WriteByte(' ')
		sb.WriteString(e.Message)
	}
	return sb.String()
}

// truncate shortens s to at most width runes.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + theme.SymbolEllipsis
}
