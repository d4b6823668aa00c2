package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorPrimary = "#7D56F4"
	colorSuccess = "#04B575"
	colorError   = "#FF5F87"
	colorWarn    = "#FFB86C"
	colorInfo    = "#626262"
	colorBorder  = "#874BFD"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginBottom(1)

	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorError))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarn))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorInfo))
	markerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorPrimary))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)

	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorInfo))
)
