package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#F59E0B")
	colorGray   = lipgloss.Color("#6B7280")

	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	badgeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#DC2626")).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(colorGray)
	unreadStyle   = lipgloss.NewStyle().Bold(true).PaddingLeft(1)
	readStyle     = lipgloss.NewStyle().Foreground(colorGray).PaddingLeft(1)
	selectedStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true).PaddingLeft(1)
	dimStyle      = lipgloss.NewStyle().Foreground(colorGray)
	toastStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)
	flashStyle    = lipgloss.NewStyle().Foreground(colorAccent).PaddingLeft(1)
)
