package welcome

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/eikaiwa/internal/router"
	"github.com/abhisek/eikaiwa/internal/screen"
	"github.com/abhisek/eikaiwa/internal/session"
	"github.com/abhisek/eikaiwa/internal/ui/components"
	"github.com/abhisek/eikaiwa/internal/ui/layout"
	"github.com/abhisek/eikaiwa/internal/ui/theme"
)

const instructions = `モードと再生速度を選択し「開始」を押してください。
発話後、3秒間沈黙することで音声入力が完了します。`

// WelcomeScreen explains the modes and offers the main menu.
type WelcomeScreen struct {
	menu components.Menu
}

var _ screen.Screen = (*WelcomeScreen)(nil)
var _ screen.KeyHintProvider = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen. practice and usage build the screens the
// menu opens; usage may be nil.
func New(practice, usage func() screen.Screen) *WelcomeScreen {
	items := []components.MenuItem{
		{Label: "練習を始める", Action: push(practice)},
		{Label: "使用状況", Action: push(usage), Disabled: usage == nil},
		{Label: "終了", Action: func() tea.Cmd { return tea.Quit }},
	}
	return &WelcomeScreen{menu: components.NewMenu(items)}
}

func push(factory func() screen.Screen) func() tea.Cmd {
	return func() tea.Cmd {
		if factory == nil {
			return nil
		}
		s := factory()
		return func() tea.Msg { return router.PushScreenMsg{Screen: s} }
	}
}

func (w *WelcomeScreen) Title() string {
	return ""
}

func (w *WelcomeScreen) Init() tea.Cmd {
	return nil
}

func (w *WelcomeScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "移動"},
		{Key: "Enter", Description: "選択"},
		{Key: "Ctrl+C", Description: "終了"},
	}
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	var cmd tea.Cmd
	w.menu, cmd = w.menu.Update(msg)
	return w, cmd
}

func (w *WelcomeScreen) View(width, height int) string {
	var sections []string

	sections = append(sections, RenderBanner(width), "")
	sections = append(sections, lipgloss.NewStyle().
		Foreground(theme.Text).
		Bold(true).
		Render("AIと話して、聞いて、書いて、英語を練習しましょう"), "")

	var modes strings.Builder
	for _, m := range session.Modes {
		modes.WriteString(theme.Selected.Render(m.String()))
		modes.WriteString("\n")
		modes.WriteString(lipgloss.NewStyle().Foreground(theme.TextDim).Render("  " + m.Description()))
		modes.WriteString("\n")
	}
	sections = append(sections, modes.String())
	sections = append(sections, theme.Hint.Render(instructions), "")
	sections = append(sections, w.menu.View())

	content := strings.Join(sections, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
