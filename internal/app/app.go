package app

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/eikaiwa/internal/router"
	"github.com/abhisek/eikaiwa/internal/screen"
	"github.com/abhisek/eikaiwa/internal/screens/practice"
	"github.com/abhisek/eikaiwa/internal/screens/usage"
	"github.com/abhisek/eikaiwa/internal/screens/welcome"
	"github.com/abhisek/eikaiwa/internal/session"
	"github.com/abhisek/eikaiwa/internal/store"
	"github.com/abhisek/eikaiwa/internal/ui/layout"
)

// Options are the collaborators of the TUI.
type Options struct {
	Session    *session.Session
	Runner     practice.Runner
	Translator practice.Translator
	Events     store.EventRepo // optional; enables the usage screen
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	width  int
	height int
}

// newAppModel creates a new AppModel with the welcome screen. The practice
// screen is built once so its session survives leaving and re-entering it.
func newAppModel(opts Options) AppModel {
	practiceScreen := practice.New(opts.Session, opts.Runner, opts.Translator)

	var usageFactory func() screen.Screen
	if opts.Events != nil {
		usageFactory = func() screen.Screen { return usage.New(opts.Events) }
	}
	welcomeScreen := welcome.New(func() screen.Screen { return practiceScreen }, usageFactory)

	return AppModel{
		router: router.New(welcomeScreen),
	}
}

func (m AppModel) Init() tea.Cmd {
	return nil
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			m.router.LeaveAll()
			return m, tea.Quit
		case "esc":
			if i, ok := m.router.Active().(screen.Interrupter); ok && i.Interrupt() {
				return m, nil
			}
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	v.SetContent(m.render())
	return v
}

func (m AppModel) render() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.router.Active()
	title, status := "", ""
	if active != nil {
		title = active.Title()
	}
	if sp, ok := active.(screen.StatusProvider); ok {
		status = sp.Status()
	}

	header := layout.RenderHeader(title, status, m.width)

	var footerHints []layout.KeyHint
	if kp, ok := active.(screen.KeyHintProvider); ok {
		footerHints = kp.KeyHints()
	} else if m.router.Depth() > 1 {
		footerHints = []layout.KeyHint{
			{Key: "Esc", Description: "戻る"},
			{Key: "Ctrl+C", Description: "終了"},
		}
	}

	footer := layout.RenderFooter(footerHints, m.width)

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

// Run starts the Bubble Tea program and blocks until it exits or ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	model := newAppModel(opts)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	_, err := p.Run()
	model.router.LeaveAll()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
