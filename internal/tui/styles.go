package tui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	colorRose    = lipgloss.Color("#E8A0BF")
	colorLilac   = lipgloss.Color("#B4A7D6")
	colorGreen   = lipgloss.Color("#00CC66")
	colorYellow  = lipgloss.Color("#FFCC00")
	colorRed     = lipgloss.Color("#FF5555")
	colorGray    = lipgloss.Color("#666666")
	colorDimGray = lipgloss.Color("#444444")
	colorWhite   = lipgloss.Color("#FFFFFF")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRose)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)

	personaNameStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorLilac)

	userNameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	phaseDoneStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	phaseActiveStyle = lipgloss.NewStyle().
				Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	crisisBannerStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorRed).
				Padding(0, 1)

	recordingDotStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	waveformStyle = lipgloss.NewStyle().
			Foreground(colorLilac)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorLilac)
)
