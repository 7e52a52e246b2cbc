package components

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/eikaiwa/internal/ui/theme"
)

// PanelWidth returns the inner width for side-by-side panels.
func PanelWidth(frameWidth int, share float64) int {
	w := int(float64(frameWidth)*share) - 4
	if w < 20 {
		w = 20
	}
	return w
}

// Panel wraps content in a rounded border with a title line.
func Panel(title, content string, width, height int) string {
	header := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render(title)
	style := theme.Panel.Width(width)
	if height > 0 {
		style = style.Height(height)
	}
	return style.Render(header + "\n" + content)
}
