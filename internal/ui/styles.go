package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/claimrag/internal/output"
)

// Styles holds the TUI styles.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Active  lipgloss.Style
	Done    lipgloss.Style
	Pending lipgloss.Style
	Label   lipgloss.Style
}

// DefaultStyles uses the same palette as the CLI output.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(output.ColorLime)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(output.ColorLime)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(output.ColorLime)),
		Done:    lipgloss.NewStyle().Foreground(lipgloss.Color(output.ColorLimeDim)),
		Pending: lipgloss.NewStyle().Foreground(lipgloss.Color(output.ColorDarkGray)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(output.ColorGray)),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Header: plain, Success: plain, Active: plain, Done: plain, Pending: plain, Label: plain}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
