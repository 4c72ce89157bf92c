// Package theme holds the colors and styles shared by terminal views.
package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

// Palette, bright enough for a child's terminal without being loud.
var (
	Primary   = lipgloss.Color("#8B5CF6")
	Secondary = lipgloss.Color("#14B8A6")
	Accent    = lipgloss.Color("#F97316")
	Success   = lipgloss.Color("#22C55E")
	Error     = lipgloss.Color("#F43F5E")
	Text      = lipgloss.Color("#F8FAFC")
	TextDim   = lipgloss.Color("#94A3B8")
	BgCard    = lipgloss.Color("#1E293B")
	Border    = lipgloss.Color("#334155")
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	Encouragement = lipgloss.NewStyle().
			Foreground(Accent).
			Italic(true)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(1, 2)
)

// DifficultyColor shades a difficulty in [0.1, 0.9] from easy green through
// teal to hard orange.
func DifficultyColor(d float64) color.Color {
	switch {
	case d < 0.35:
		return Success
	case d < 0.65:
		return Secondary
	}
	return Accent
}
