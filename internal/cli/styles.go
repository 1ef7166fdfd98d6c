package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
)

var (
	colorRed    = lipgloss.Color("#ff5555")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorGreen  = lipgloss.Color("#50fa7b")
	colorBlue   = lipgloss.Color("#8be9fd")
	colorDim    = lipgloss.Color("#6272a4")
	colorBorder = lipgloss.Color("#44475a")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	productStyle = lipgloss.NewStyle().Bold(true).Width(28)
	issueStyle   = lipgloss.NewStyle().Width(28)
	valueStyle   = lipgloss.NewStyle().Width(22)
)

func severityStyle(s audit.Severity) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Width(8)
	switch s {
	case audit.SeverityHigh:
		return base.Foreground(colorRed)
	case audit.SeverityMedium:
		return base.Foreground(colorYellow)
	}
	return base.Foreground(colorGreen)
}
