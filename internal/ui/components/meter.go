package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/eikaiwa/internal/ui/theme"
)

// meterWarnAt is the fill ratio from which the bar turns amber.
const meterWarnAt = 0.8

// Meter shows how much of a budget is used, as a bar followed by
// "used/max".
type Meter struct {
	Label string
	Used  int
	Max   int
	Width int
}

// Ratio returns Used/Max clamped to [0, 1]. A zero Max reads as empty.
func (m Meter) Ratio() float64 {
	if m.Max <= 0 || m.Used <= 0 {
		return 0
	}
	r := float64(m.Used) / float64(m.Max)
	if r > 1 {
		return 1
	}
	return r
}

func (m Meter) View() string {
	label := ""
	if m.Label != "" {
		label = lipgloss.NewStyle().Foreground(theme.Text).Render(m.Label) + "  "
	}
	count := lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf("  %d/%d", m.Used, m.Max))

	barWidth := m.Width - lipgloss.Width(label) - lipgloss.Width(count)
	if barWidth < 4 {
		barWidth = 4
	}
	ratio := m.Ratio()
	filled := int(float64(barWidth) * ratio)

	fill := theme.Secondary
	if ratio >= meterWarnAt {
		fill = theme.Accent
	}
	bar := lipgloss.NewStyle().Background(fill).Render(strings.Repeat(" ", filled)) +
		lipgloss.NewStyle().Background(theme.Border).Render(strings.Repeat(" ", barWidth-filled))

	return label + bar + count
}
