package cli

import "github.com/charmbracelet/lipgloss"

var (
	colorCyan  = lipgloss.Color("36")
	colorGreen = lipgloss.Color("35")
	colorRed   = lipgloss.Color("167")
	colorDim   = lipgloss.Color("240")

	styleBranch   = lipgloss.NewStyle().Foreground(colorDim)
	styleKind     = lipgloss.NewStyle().Foreground(colorCyan)
	styleSelected = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	styleDisabled = lipgloss.NewStyle().Foreground(colorRed)
	styleHidden   = lipgloss.NewStyle().Faint(true)
)
