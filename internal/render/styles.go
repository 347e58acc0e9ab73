package render

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorSecondary = lipgloss.AdaptiveColor{Light: "#3D3D3D", Dark: "#ABABAB"}
	colorDim       = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent    = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	colorGreen     = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorAmber     = lipgloss.AdaptiveColor{Light: "#C77C02", Dark: "#F5A524"}

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)

	sourceStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	timeStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	linkStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)

	tierStyles = map[string]lipgloss.Style{
		"breaking": lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		"recent":   lipgloss.NewStyle().Foreground(colorPrimary),
		"popular":  lipgloss.NewStyle().Foreground(colorGreen),
	}

	highPriorityStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	midPriorityStyle  = lipgloss.NewStyle().Foreground(colorAmber)
	lowPriorityStyle  = lipgloss.NewStyle().Foreground(colorDim)
)
