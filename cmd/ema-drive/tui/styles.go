package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorMuted   = lipgloss.Color("#6C6C6C")
	colorError   = lipgloss.Color("#FF5F87")
	colorOK      = lipgloss.Color("#04B575")
	colorRecord  = lipgloss.Color("#FF0000")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(colorPrimary).
			Padding(0, 1)

	labelStyle     = lipgloss.NewStyle().Foreground(colorMuted).Width(10)
	recordingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorRecord)
	okStyle        = lipgloss.NewStyle().Foreground(colorOK)
	errorStyle     = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	userStyle      = lipgloss.NewStyle().Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(colorPrimary)
)
