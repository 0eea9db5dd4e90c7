package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Version is shown on the home screen.
var Version = "v0.1.0"

// Theme holds the styles used across the terminal UI.
type Theme struct {
	Accent   lipgloss.Style // cyan: frames, tags, prompts
	Title    lipgloss.Style // bold white
	Body     lipgloss.Style // light blue: answers and info
	Dim      lipgloss.Style
	Thinking lipgloss.Style
	Success  lipgloss.Style
	Failure  lipgloss.Style
}

// NewTheme returns the Terminal Jarvis palette, or unstyled text when color
// is false.
func NewTheme(color bool) Theme {
	if !color {
		plain := lipgloss.NewStyle()
		return Theme{
			Accent:   plain,
			Title:    plain,
			Body:     plain,
			Dim:      plain,
			Thinking: plain,
			Success:  plain,
			Failure:  plain,
		}
	}
	return Theme{
		Accent:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")),
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")),
		Body:     lipgloss.NewStyle().Foreground(lipgloss.Color("#C8E6FF")),
		Dim:      lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("#788CA0")),
		Thinking: lipgloss.NewStyle().Foreground(lipgloss.Color("#8291A0")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF96")),
		Failure:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6464")),
	}
}

// ColorEnabled reports whether stdout should receive styled output.
func ColorEnabled(noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
