package tui

import "github.com/charmbracelet/lipgloss"

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted   = ac("240", "243")
	colorAccent  = ac("25", "75")
	colorWarn    = ac("160", "203")
	colorAdmin   = ac("130", "214")
	colorBorder  = ac("250", "240")
	colorSurface = ac("255", "235")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarn)

	baseStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1).
			MarginLeft(2)

	overlayStyle = modalStyle.
			BorderStyle(lipgloss.DoubleBorder())

	confirmStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorWarn).
			Background(colorSurface).
			Padding(0, 2).
			MarginLeft(4)

	adminStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorAdmin).
			Padding(0, 1)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.HiddenBorder()).
			Foreground(colorMuted).
			PaddingLeft(1)
)
