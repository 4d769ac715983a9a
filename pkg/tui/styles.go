package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared with the embedded web UI so both viewers read the same.
var (
	colorGreen  = lipgloss.Color("#4caf50")
	colorYellow = lipgloss.Color("#ffc107")
	colorRed    = lipgloss.Color("#f44336")
	colorCyan   = lipgloss.Color("#4dd0e1")
	colorGray   = lipgloss.Color("#a0a0b0")

	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#16213e")).
			Foreground(lipgloss.Color("#e0e0e0")).
			Padding(0, 1)

	styleHelp = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)

	styleSectionTitle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorCyan).
				BorderBottom(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("#0f3460"))

	styleKeyword = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	styleError = lipgloss.NewStyle().
			Foreground(colorRed)

	styleTag = lipgloss.NewStyle().
			Foreground(colorCyan).
			Background(lipgloss.Color("#0f3460")).
			Padding(0, 1)

	styleDivider = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3a3a5e"))

	tableSelectedStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#0f3460")).
				Bold(true)
)

// statusColor maps an HTTP status code onto its display color.
func statusColor(code int) lipgloss.Color {
	switch {
	case code >= 500:
		return colorRed
	case code >= 400:
		return colorYellow
	case code >= 300:
		return colorCyan
	case code >= 200:
		return colorGreen
	default:
		return colorGray
	}
}
