package components

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/skilltune/internal/ui/theme"
)

// ContentWidth returns the inner width used for cards inside a frame.
func ContentWidth(frameWidth int) int {
	return min(max(frameWidth-6, 20), 60)
}

// Card wraps content in a centered rounded card of width cw.
func Card(content string, cw int) string {
	return theme.Card.
		Width(cw).
		Align(lipgloss.Center).
		Render(content)
}
