package cli

import "github.com/charmbracelet/lipgloss"

// Terminal output styles. lipgloss drops colour when the writer is not a
// terminal, so piped output stays plain.
var (
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4")).PaddingLeft(2)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
)
