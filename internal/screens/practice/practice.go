// Package practice is the main screen: the control panel, the message
// history and the dictation chat line.
package practice

import (
	"context"
	"fmt"
	"strconv"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/eikaiwa/internal/audio"
	pr "github.com/abhisek/eikaiwa/internal/practice"
	"github.com/abhisek/eikaiwa/internal/screen"
	"github.com/abhisek/eikaiwa/internal/session"
	"github.com/abhisek/eikaiwa/internal/ui/components"
	"github.com/abhisek/eikaiwa/internal/ui/layout"
	"github.com/abhisek/eikaiwa/internal/ui/theme"
)

// Runner plays one round of the session's selected mode.
type Runner interface {
	Run(ctx context.Context, s *session.Session) error
}

// Translator renders English text in Japanese. It never returns "".
type Translator interface {
	Translate(ctx context.Context, text string) string
}

// Control panel focus order. focusChat is reachable only while the
// dictation chat line is open.
const (
	focusMode = iota
	focusSpeed
	focusLevel
	focusVoice
	focusStart
	focusChat
)

// PracticeScreen implements screen.Screen for a practice session.
type PracticeScreen struct {
	sess       *session.Session
	runner     Runner
	translator Translator

	selectors []components.Selector
	start     components.Button
	focus     int
	input     components.TextInput
	spinner   spinner.Model

	busy         bool
	cancel       context.CancelFunc
	errMsg       string
	translations map[int]string
	translating  bool
	// pick is the history index chosen with [ and ], or -1 to follow the
	// newest round.
	pick int
}

var _ screen.Screen = (*PracticeScreen)(nil)
var _ screen.KeyHintProvider = (*PracticeScreen)(nil)
var _ screen.StatusProvider = (*PracticeScreen)(nil)
var _ screen.Leaver = (*PracticeScreen)(nil)
var _ screen.Interrupter = (*PracticeScreen)(nil)

// New creates a PracticeScreen for the session.
func New(s *session.Session, runner Runner, translator Translator) *PracticeScreen {
	snap := s.Snapshot()

	modes := make([]string, len(session.Modes))
	for i, m := range session.Modes {
		modes[i] = m.String()
	}
	speeds := make([]string, len(audio.Speeds))
	speedIdx := 0
	for i, v := range audio.Speeds {
		speeds[i] = formatSpeed(v)
		if v == snap.Speed {
			speedIdx = i
		}
	}
	levels := make([]string, len(session.Levels))
	for i, l := range session.Levels {
		levels[i] = l.String()
	}
	voices := make([]string, len(session.Voices))
	for i, v := range session.Voices {
		voices[i] = v.String()
	}

	p := &PracticeScreen{
		sess:       s,
		runner:     runner,
		translator: translator,
		selectors: []components.Selector{
			components.NewSelector("モード", modes, indexOf(session.Modes, snap.Mode)),
			components.NewSelector("再生速度", speeds, speedIdx),
			components.NewSelector("レベル", levels, indexOf(session.Levels, snap.Level)),
			components.NewSelector("話者", voices, indexOf(session.Voices, snap.Voice)),
		},
		input:        components.NewTextInput("聞き取った英文を入力してください", 300),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.Activity)),
		translations: make(map[int]string),
		pick:         -1,
	}
	p.start = components.NewButton("開始", false, p.pressStart)
	p.syncFocus()
	return p
}

func indexOf[T comparable](opts []T, v T) int {
	for i, o := range opts {
		if o == v {
			return i
		}
	}
	return 0
}

func formatSpeed(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "x"
}

func (p *PracticeScreen) Init() tea.Cmd {
	return nil
}

func (p *PracticeScreen) Title() string {
	return "練習"
}

// Status shows the selected mode and speed in the header.
func (p *PracticeScreen) Status() string {
	snap := p.sess.Snapshot()
	return fmt.Sprintf("%s  %s", snap.Mode, formatSpeed(snap.Speed))
}

func (p *PracticeScreen) KeyHints() []layout.KeyHint {
	if p.busy {
		return []layout.KeyHint{
			{Key: "Esc", Description: "中断"},
			{Key: "t", Description: "翻訳"},
			{Key: "Ctrl+C", Description: "終了"},
		}
	}
	if p.focus == focusChat {
		return []layout.KeyHint{
			{Key: "Enter", Description: "送信"},
			{Key: "Tab", Description: "操作パネル"},
			{Key: "Esc", Description: "戻る"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "項目"},
		{Key: "←→", Description: "選択"},
		{Key: "Enter", Description: "開始"},
		{Key: "t", Description: "翻訳"},
		{Key: "[ ]", Description: "翻訳する行"},
		{Key: "Esc", Description: "戻る"},
	}
}

// Interrupt cancels a running round. It reports whether there was one.
func (p *PracticeScreen) Interrupt() bool {
	if !p.busy || p.cancel == nil {
		return false
	}
	p.cancel()
	p.sess.SetStarted(false)
	return true
}

// Leave cancels any running round.
func (p *PracticeScreen) Leave() {
	if p.cancel != nil {
		p.cancel()
	}
	p.sess.SetStarted(false)
}

func (p *PracticeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case roundDoneMsg:
		return p.handleRoundDone(msg)

	case translatedMsg:
		p.translating = false
		p.translations[msg.Index] = msg.Text
		return p, nil

	case spinner.TickMsg:
		if !p.busy && !p.translating {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.KeyPressMsg:
		return p.handleKey(msg)
	}

	if p.focus == focusChat {
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *PracticeScreen) handleKey(msg tea.KeyPressMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if p.focus == focusChat && !p.busy {
		switch key {
		case "enter":
			p.sess.SetChatMessage(p.input.Value())
			return p, p.startRound()
		case "tab", "shift+tab":
			p.focus = focusStart
			p.syncFocus()
			return p, nil
		}
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return p, cmd
	}

	switch key {
	case "t":
		return p, p.translateTarget()
	case "[":
		p.movePick(-1)
		return p, nil
	case "]":
		p.movePick(1)
		return p, nil
	}

	if p.busy {
		return p, nil
	}

	switch key {
	case "up", "k", "shift+tab":
		p.moveFocus(-1)
	case "down", "j", "tab":
		p.moveFocus(1)
	case "left", "h":
		p.changeSelection(false)
	case "right", "l":
		p.changeSelection(true)
	case "enter", "space", " ":
		if p.focus == focusStart {
			var cmd tea.Cmd
			p.start, cmd = p.start.Update(msg)
			return p, cmd
		}
		p.moveFocus(1)
	case "s":
		return p, p.pressStart()
	}
	return p, nil
}

func (p *PracticeScreen) chatOpen() bool {
	snap := p.sess.Snapshot()
	return snap.Mode == session.ModeDictation && snap.Dictation.ChatOpen
}

func (p *PracticeScreen) moveFocus(delta int) {
	last := focusStart
	if p.chatOpen() {
		last = focusChat
	}
	p.focus += delta
	if p.focus < focusMode {
		p.focus = last
	}
	if p.focus > last {
		p.focus = focusMode
	}
	p.syncFocus()
}

func (p *PracticeScreen) syncFocus() {
	for i := range p.selectors {
		p.selectors[i].Focused = i == p.focus
		p.selectors[i].Disabled = p.busy
	}
	p.start.Active = p.focus == focusStart && !p.busy
	if p.focus == focusChat {
		p.input.Model.Focus()
	} else {
		p.input.Model.Blur()
	}
}

func (p *PracticeScreen) changeSelection(forward bool) {
	if p.focus < focusMode || p.focus > focusVoice {
		return
	}
	sel := &p.selectors[p.focus]
	if forward {
		sel.Next()
	} else {
		sel.Prev()
	}

	switch p.focus {
	case focusMode:
		if p.sess.SetMode(session.Modes[sel.Selected]) {
			p.errMsg = ""
			p.input.Reset()
		}
	case focusSpeed:
		_ = p.sess.SetSpeed(audio.Speeds[sel.Selected])
	case focusLevel:
		p.sess.SetLevel(session.Levels[sel.Selected])
	case focusVoice:
		p.sess.SetVoice(session.Voices[sel.Selected])
	}
}

// pressStart toggles the session. In basic conversation a started session
// keeps recording round after round until stopped; the other modes play
// one round per press.
func (p *PracticeScreen) pressStart() tea.Cmd {
	if p.busy {
		return nil
	}
	if p.sess.Mode() == session.ModeBasic && p.sess.Started() {
		p.sess.SetStarted(false)
		return nil
	}
	p.sess.SetStarted(true)
	return p.startRound()
}

func (p *PracticeScreen) startRound() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.busy = true
	p.errMsg = ""
	p.syncFocus()

	s, runner := p.sess, p.runner
	run := func() tea.Msg {
		return roundDoneMsg{Err: runner.Run(ctx, s)}
	}
	return tea.Batch(p.spinner.Tick, run)
}

func (p *PracticeScreen) handleRoundDone(msg roundDoneMsg) (screen.Screen, tea.Cmd) {
	p.busy = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.errMsg = pr.UserMessage(msg.Err)

	snap := p.sess.Snapshot()
	switch {
	case snap.Mode == session.ModeDictation && snap.Dictation.ChatOpen:
		if msg.Err == nil {
			p.input.Reset()
		}
		p.focus = focusChat
	case p.focus == focusChat:
		p.focus = focusStart
	}
	p.syncFocus()

	if msg.Err != nil {
		if snap.Mode == session.ModeBasic {
			p.sess.SetStarted(false)
		}
		return p, nil
	}
	if snap.Mode == session.ModeBasic && snap.Started {
		return p, p.startRound()
	}
	return p, nil
}

// isEvaluation reports whether msgs[i] is a round's feedback: feedback is
// always followed by the separator.
func isEvaluation(msgs []session.Message, i int) bool {
	return msgs[i].Role == session.RoleAssistant && i+1 < len(msgs) && msgs[i+1].Role == session.RoleOther
}

// translatable reports whether msgs[i] is English worth translating. The
// feedback is already Japanese.
func translatable(msgs []session.Message, i int) bool {
	switch msgs[i].Role {
	case session.RoleUser:
		return true
	case session.RoleAssistant:
		return !isEvaluation(msgs, i)
	}
	return false
}

// defaultTarget is the message t translates when nothing is picked: the
// newest AI line, or the practice sentence when that line is feedback.
func defaultTarget(msgs []session.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != session.RoleAssistant {
			continue
		}
		if !isEvaluation(msgs, i) {
			return i
		}
		for j := i - 1; j >= 0 && msgs[j].Role != session.RoleOther; j-- {
			if msgs[j].Role == session.RoleAssistant {
				return j
			}
		}
		return -1
	}
	return -1
}

// movePick steps the picked message through the translatable history.
// Stepping past the newest one returns to following the newest round.
func (p *PracticeScreen) movePick(delta int) {
	msgs := p.sess.Messages()
	i := p.pick
	if i < 0 {
		if delta > 0 {
			return
		}
		i = len(msgs)
	}
	for i += delta; i >= 0 && i < len(msgs); i += delta {
		if translatable(msgs, i) {
			p.pick = i
			return
		}
	}
	if delta > 0 {
		p.pick = -1
	}
}

// translateTarget translates the picked message, or the default target,
// or hides its translation if already shown.
func (p *PracticeScreen) translateTarget() tea.Cmd {
	if p.translator == nil || p.translating {
		return nil
	}
	msgs := p.sess.Messages()
	idx := p.pick
	if idx < 0 || idx >= len(msgs) {
		idx = defaultTarget(msgs)
	}
	if idx < 0 {
		return nil
	}
	if _, ok := p.translations[idx]; ok {
		delete(p.translations, idx)
		return nil
	}

	p.translating = true
	text, tr := msgs[idx].Content, p.translator
	return tea.Batch(p.spinner.Tick, func() tea.Msg {
		return translatedMsg{Index: idx, Text: tr.Translate(context.Background(), text)}
	})
}

func (p *PracticeScreen) View(width, height int) string {
	snap := p.sess.Snapshot()

	panelWidth := components.PanelWidth(width, 0.36)
	historyWidth := width - panelWidth - 6
	if historyWidth < 20 {
		historyWidth = 20
	}

	bottom := p.renderBottom(snap, width)
	bodyHeight := height - lipgloss.Height(bottom) - 1
	if bodyHeight < 6 {
		bodyHeight = 6
	}

	left := components.Panel("操作パネル", p.renderControls(snap, panelWidth), panelWidth, bodyHeight-2)
	right := components.Panel("会話履歴", p.renderHistory(snap, historyWidth-2, bodyHeight-3), historyWidth, bodyHeight-2)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
	if bottom == "" {
		return body
	}
	return body + "\n" + bottom
}
