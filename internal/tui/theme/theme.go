// Package theme provides the Lip Gloss color palette and reusable styles
// for the steptrack TUI. It is a leaf package with no internal imports to
// avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Cadence colors.
var (
	ColorStill  = lipgloss.Color("#4b5563")
	ColorStroll = lipgloss.Color("#22c55e")
	ColorWalk   = lipgloss.Color("#06b6d4")
	ColorBrisk  = lipgloss.Color("#d97706")
	ColorRun    = lipgloss.Color("#dc2626")
)

// Mode colors.
var (
	ColorIdle      = lipgloss.Color("#6b7280")
	ColorSimulated = lipgloss.Color("#d97706")
	ColorHardware  = lipgloss.Color("#22c55e")
)

// UI chrome colors.
var (
	ColorBorder    = lipgloss.Color("#4b5563")
	ColorDimmed    = lipgloss.Color("#6b7280")
	ColorBright    = lipgloss.Color("#f9fafb")
	ColorAccent    = lipgloss.Color("#06b6d4")
	ColorHealthy   = lipgloss.Color("#22c55e")
	ColorDanger    = lipgloss.Color("#dc2626")
	ColorMilestone = lipgloss.Color("#f59e0b")
)

// CadenceColor returns the color for a cadence label.
func CadenceColor(cadence string) lipgloss.Color {
	switch cadence {
	case "still":
		return ColorStill
	case "stroll":
		return ColorStroll
	case "walk":
		return ColorWalk
	case "brisk":
		return ColorBrisk
	case "run":
		return ColorRun
	default:
		return ColorDimmed
	}
}

// ModeColor returns the color for a tracking mode.
func ModeColor(mode string) lipgloss.Color {
	switch mode {
	case "hardware":
		return ColorHardware
	case "simulated":
		return ColorSimulated
	default:
		return ColorIdle
	}
}

// CadenceGlyph returns a Unicode glyph for a cadence label.
func CadenceGlyph(cadence string) string {
	switch cadence {
	case "still":
		return "○"
	case "stroll":
		return "◔"
	case "walk":
		return "◑"
	case "brisk":
		return "◕"
	case "run":
		return "●"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleCounter = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	StyleMilestone = lipgloss.NewStyle().
			Foreground(ColorMilestone)

	StyleDanger = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorDanger)
)
