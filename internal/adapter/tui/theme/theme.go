// Package theme provides the console's visual design system.
// All styles use adaptive colors that work on both light and dark terminals.
//
// NO_COLOR (https://no-color.org/) is respected automatically by lipgloss via
// its color profile detection.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"maestro-console/internal/domain"
)

// --- Adaptive Color Palette ---

var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}

	ColorBorder       = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}
	ColorBorderActive = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}

	ColorBgAlt   = lipgloss.AdaptiveColor{Light: "#f5f5f5", Dark: "#2d2d2d"}
	ColorFg      = lipgloss.AdaptiveColor{Light: "#212121", Dark: "#e0e0e0"}
	ColorFgDim   = lipgloss.AdaptiveColor{Light: "#9e9e9e", Dark: "#757575"}
	ColorBadgeFg = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#1e1e1e"}
)

// --- Symbol variables (set by InitSymbols in symbols.go) ---

var (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolWarning  = "⚠"
	SymbolInfo     = "●"
	SymbolSpinner  = "⏳"
	SymbolArrowR   = "→"
	SymbolBullet   = "•"
	SymbolEllipsis = "…"
	SymbolBot      = "Maestro"
)

// --- Base styles ---

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	TextSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	TextWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextAccent  = lipgloss.NewStyle().Foreground(ColorAccent)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)

	Timestamp = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Faint(true)
)

// --- Layout styles ---

var (
	BorderNormal = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	BorderActive = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorderActive)
)

// --- Top bar ---

var (
	TopBar = lipgloss.NewStyle().
		Foreground(ColorFg).
		Background(ColorBgAlt).
		Padding(0, 1)

	badge = lipgloss.NewStyle().
		Foreground(ColorBadgeFg).
		Bold(true).
		Padding(0, 1)
)

// --- Status bar ---

var (
	StatusBar = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Background(ColorBgAlt).
			Padding(0, 1)

	StatusKey = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)
)

// --- Input area ---

var (
	InputPrompt = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	InputPlaceholder = lipgloss.NewStyle().
				Foreground(ColorFgDim)
)

// PhaseColor maps an agent phase to its badge color.
func PhaseColor(p domain.AgentPhase) lipgloss.AdaptiveColor {
	switch p {
	case domain.PhaseObserving:
		return ColorInfo
	case domain.PhaseThinking:
		return ColorAccent
	case domain.PhaseActing:
		return ColorWarning
	case domain.PhaseSynthesizing:
		return ColorSuccess
	case domain.PhaseError:
		return ColorError
	default:
		return ColorMuted
	}
}

// PhaseBadge renders the phase as a colored badge.
func PhaseBadge(p domain.AgentPhase) string {
	if p == "" {
		p = domain.PhaseIdle
	}
	return badge.Background(PhaseColor(p)).Render(string(p))
}

// LevelStyle returns the style for a log level label.
func LevelStyle(l domain.LogLevel) lipgloss.Style {
	switch l {
	case domain.LevelWarn:
		return TextWarning
	case domain.LevelError:
		return TextError
	case domain.LevelSystem:
		return TextMuted.Bold(true)
	case domain.LevelLLM:
		return TextAccent.Bold(true)
	default:
		return TextInfo
	}
}

// LevelSymbol returns the marker drawn before a log entry of level l.
func LevelSymbol(l domain.LogLevel) string {
	switch l {
	case domain.LevelWarn:
		return SymbolWarning
	case domain.LevelError:
		return SymbolError
	case domain.LevelSystem:
		return SymbolArrowR
	case domain.LevelLLM:
		return SymbolBullet
	default:
		return SymbolInfo
	}
}

// MaxContentWidth is the recommended max width for readable text content.
const MaxContentWidth = 100

// Clamp returns v clamped to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
