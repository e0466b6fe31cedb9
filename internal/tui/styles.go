package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#8BC34A")
	primary = lipgloss.Color("#2196F3")
	muted   = lipgloss.Color("#7A8594")
	danger  = lipgloss.Color("#E53935")
)

// Styles holds the lipgloss styles used by the review screen.
type Styles struct {
	Header   lipgloss.Style
	Record   lipgloss.Style
	Prompt   lipgloss.Style
	Option   lipgloss.Style
	Cursor   lipgloss.Style
	Selected lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Done     lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(primary).
			Padding(0, 1).
			Bold(true),
		Record: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		Prompt:   lipgloss.NewStyle().Bold(true),
		Option:   lipgloss.NewStyle().PaddingLeft(2),
		Cursor:   lipgloss.NewStyle().Foreground(primary).Bold(true),
		Selected: lipgloss.NewStyle().Foreground(accent).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(muted),
		Success:  lipgloss.NewStyle().Foreground(accent),
		Error:    lipgloss.NewStyle().Foreground(danger),
		Done:     lipgloss.NewStyle().Foreground(accent).Bold(true).MarginTop(1),
	}
}
