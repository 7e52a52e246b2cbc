package components

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/eikaiwa/internal/ui/theme"
)

// Selector is a labelled row of options with one selected, cycled with
// the left and right keys by its owner.
type Selector struct {
	Label    string
	Options  []string
	Selected int
	Focused  bool
	Disabled bool
}

// NewSelector creates a selector with the given option selected.
func NewSelector(label string, options []string, selected int) Selector {
	return Selector{Label: label, Options: options, Selected: selected}
}

// Next selects the following option, wrapping around.
func (s *Selector) Next() {
	if s.Disabled || len(s.Options) == 0 {
		return
	}
	s.Selected = (s.Selected + 1) % len(s.Options)
}

// Prev selects the preceding option, wrapping around.
func (s *Selector) Prev() {
	if s.Disabled || len(s.Options) == 0 {
		return
	}
	s.Selected = (s.Selected - 1 + len(s.Options)) % len(s.Options)
}

// Value returns the selected option label.
func (s Selector) Value() string {
	if s.Selected < 0 || s.Selected >= len(s.Options) {
		return ""
	}
	return s.Options[s.Selected]
}

// View renders the selector on one line.
func (s Selector) View() string {
	label := theme.Unselected
	if s.Focused {
		label = theme.Selected
	}
	prefix := "  "
	if s.Focused {
		prefix = "▸ "
	}

	parts := make([]string, 0, len(s.Options))
	for i, opt := range s.Options {
		style := lipgloss.NewStyle().Foreground(theme.TextDim)
		switch {
		case s.Disabled && i == s.Selected:
			style = theme.Disabled.Underline(true)
		case s.Disabled:
			style = theme.Disabled
		case i == s.Selected:
			style = lipgloss.NewStyle().Foreground(theme.Accent).Bold(true).Underline(true)
		}
		parts = append(parts, style.Render(opt))
	}

	return label.Render(prefix+s.Label) + "  " + strings.Join(parts, "  ")
}
