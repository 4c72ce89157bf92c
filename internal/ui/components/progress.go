package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/skilltune/internal/ui/theme"
)

// Meter is a horizontal bar for values in [0, 1] such as pKnown or
// difficulty.
type Meter struct {
	Label     string
	Value     float64
	Width     int
	ShowValue bool
	Fill      lipgloss.Style
}

// NewMeter creates a meter filled with the secondary color.
func NewMeter(label string, value float64, width int) Meter {
	return Meter{
		Label:     label,
		Value:     value,
		Width:     width,
		ShowValue: true,
		Fill:      lipgloss.NewStyle().Background(theme.Secondary),
	}
}

// DifficultyMeter colors the fill by difficulty band.
func DifficultyMeter(value float64, width int) Meter {
	m := NewMeter("Difficulty", value, width)
	m.Fill = lipgloss.NewStyle().Background(theme.DifficultyColor(value))
	return m
}

// View renders the meter.
func (m Meter) View() string {
	var b strings.Builder
	if m.Label != "" {
		b.WriteString(theme.Body.Render(m.Label) + "  ")
	}

	valueWidth := 0
	if m.ShowValue {
		valueWidth = 6
	}
	barWidth := max(m.Width-lipgloss.Width(b.String())-valueWidth, 4)

	filled := min(max(int(float64(barWidth)*m.Value+0.5), 0), barWidth)
	b.WriteString(m.Fill.Render(strings.Repeat(" ", filled)))
	b.WriteString(lipgloss.NewStyle().Background(theme.Border).Render(strings.Repeat(" ", barWidth-filled)))

	if m.ShowValue {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf("  %.2f", m.Value)))
	}
	return b.String()
}
