package theme

import "github.com/charmbracelet/lipgloss"

var (
	PanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	LabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	HelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	BadgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("0"))

	ActiveColor  = lipgloss.Color("10")
	WarnColor    = lipgloss.Color("11")
	StaleColor   = lipgloss.Color("9")
	MissingColor = lipgloss.Color("240")
	IdleColor    = lipgloss.Color("245")
	BusyColor    = lipgloss.Color("39")
)
