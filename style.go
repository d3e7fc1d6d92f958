package main

import "github.com/charmbracelet/lipgloss"

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render

	faint = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}).Render
	label = lipgloss.NewStyle().Width(14).Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}).Render
	alert = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Render
)

// row renders one "label  value" line.
func row(name, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, "  ", label(name), value)
}
