package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/eikaiwa/internal/ui/layout"
)

// Screen defines the interface for all application screens.
type Screen interface {
	// Init returns an initial command when the screen is first created.
	Init() tea.Cmd

	// Update handles messages and returns updated screen + command.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the screen content (excluding header/footer).
	View(width, height int) string

	// Title returns the screen name for the header.
	Title() string
}

// KeyHintProvider is an optional interface that screens can implement
// to provide custom footer key hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// StatusProvider is an optional interface for screens that show a short
// status on the right of the header.
type StatusProvider interface {
	Status() string
}

// Leaver is an optional interface for screens that hold work which must
// stop when they are popped, replaced or the program quits.
type Leaver interface {
	Leave()
}

// Interrupter is an optional interface for screens that stop running work
// on Esc instead of closing. Interrupt reports whether it did.
type Interrupter interface {
	Interrupt() bool
}
