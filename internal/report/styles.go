package report

import "github.com/charmbracelet/lipgloss"

var (
	ColorBorder  = lipgloss.Color("#1a3a1a")
	ColorPrimary = lipgloss.Color("#00ff41")
	ColorBg      = lipgloss.Color("#0a1f0a")
	ColorAmber   = lipgloss.Color("#ffb000")
	ColorRed     = lipgloss.Color("#ff3333")
	ColorText    = lipgloss.Color("#e5e5e5")
	ColorMuted   = lipgloss.Color("#707070")
	ColorDim     = lipgloss.Color("#404040")
)

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Background(ColorBg).
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	TextStyle  = lipgloss.NewStyle().Foreground(ColorText)
	MutedStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	DimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	AmberStyle = lipgloss.NewStyle().Foreground(ColorAmber).Bold(true)
	RedStyle   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
)

// ForCount colors a per-source count against the alert threshold.
func ForCount(count, threshold int) lipgloss.Style {
	switch {
	case threshold > 0 && count >= 2*threshold:
		return RedStyle
	case threshold > 0 && count >= threshold:
		return AmberStyle
	default:
		return TextStyle
	}
}
