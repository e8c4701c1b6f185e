package main

import (
	"github.com/charmbracelet/lipgloss"

	"alerthub/pkg/protocol"
)

// Theme defines the visual styling for the alerthub dashboard.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Critical  lipgloss.Color
	Info      lipgloss.Color
	TCP       lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default theme for alerthub-dash.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),  // Blue
		Secondary: lipgloss.Color("14"),  // Cyan
		Success:   lipgloss.Color("10"),  // Green
		Warning:   lipgloss.Color("11"),  // Yellow
		Error:     lipgloss.Color("9"),   // Red
		Critical:  lipgloss.Color("13"),  // Magenta
		Info:      lipgloss.Color("12"),  // Blue
		TCP:       lipgloss.Color("14"),  // Cyan
		Muted:     lipgloss.Color("240"), // Gray
	}
}

// SeverityColor maps a severity to its badge color. Unknown levels are muted.
func (t Theme) SeverityColor(s protocol.Severity) lipgloss.Color {
	switch s {
	case protocol.SeverityInfo:
		return t.Info
	case protocol.SeverityWarning:
		return t.Warning
	case protocol.SeverityError:
		return t.Error
	case protocol.SeverityCritical:
		return t.Critical
	default:
		return t.Muted
	}
}

// ToneColor maps an audit card tone to a color.
func (t Theme) ToneColor(tone string) lipgloss.Color {
	switch tone {
	case "tcp":
		return t.TCP
	case "success":
		return t.Success
	default:
		return t.SeverityColor(protocol.Severity(tone))
	}
}
