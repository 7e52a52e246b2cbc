package practice

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/eikaiwa/internal/session"
	"github.com/abhisek/eikaiwa/internal/ui/components"
	"github.com/abhisek/eikaiwa/internal/ui/theme"
)

const welcomeText = `モードと再生速度を選択し「開始」を押してください。
発話後、3秒間沈黙することで音声入力が完了します。`

func (p *PracticeScreen) renderControls(snap session.Snapshot, width int) string {
	var b strings.Builder

	for _, sel := range p.selectors {
		b.WriteString(sel.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	start := p.start
	start.Label = startLabel(snap)
	b.WriteString(start.View())
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().Foreground(theme.TextDim).Width(width).Render(snap.Mode.Description()))
	b.WriteString("\n\n")

	switch snap.Mode {
	case session.ModeShadowing:
		b.WriteString(theme.Body.Render(fmt.Sprintf("練習回数: %d", snap.Shadowing.Count)))
		b.WriteString("\n")
	case session.ModeDictation:
		b.WriteString(theme.Body.Render(fmt.Sprintf("練習回数: %d", snap.Dictation.Count)))
		b.WriteString("\n")
	}

	if mem := p.sess.Memory(); mem != nil {
		meter := components.Meter{Label: "記憶", Used: mem.TokenEstimate(), Max: mem.MaxTokens(), Width: width}
		b.WriteString(meter.View())
		b.WriteString("\n")
	}

	return b.String()
}

func startLabel(snap session.Snapshot) string {
	switch {
	case !snap.Started:
		return "開始"
	case snap.Mode == session.ModeBasic:
		return "停止"
	case snap.Mode == session.ModeDictation && snap.Dictation.ChatOpen:
		return "別の問題"
	default:
		return "次の問題"
	}
}

// renderHistory renders the newest messages that fit in height lines.
func (p *PracticeScreen) renderHistory(snap session.Snapshot, width, height int) string {
	if len(snap.Messages) == 0 {
		return theme.Hint.Width(width).Render(welcomeText)
	}

	wrap := lipgloss.NewStyle().Width(width)
	var lines []string
	pickLine := -1
	for i, m := range snap.Messages {
		marker := ""
		if i == p.pick {
			marker = theme.Selected.Render("▸ ")
			pickLine = len(lines)
		}
		var block string
		switch m.Role {
		case session.RoleUser:
			block = marker + theme.UserLabel.Render("あなた") + "\n" + wrap.Render(m.Content)
		case session.RoleAssistant:
			block = marker + theme.AssistantLabel.Render("AI") + "\n" + wrap.Render(m.Content)
		default:
			block = theme.Separator.Render(strings.Repeat("─", width))
		}
		if tr, ok := p.translations[i]; ok {
			block += "\n" + theme.Translation.Width(width).Render(tr)
		}
		lines = append(lines, strings.Split(block, "\n")...)
	}

	if height > 0 && len(lines) > height {
		start := len(lines) - height
		if pickLine >= 0 && pickLine < start {
			start = pickLine
		}
		lines = lines[start : start+height]
	}
	return strings.Join(lines, "\n")
}

// renderBottom renders the activity, error and chat lines under the panels.
func (p *PracticeScreen) renderBottom(snap session.Snapshot, width int) string {
	var parts []string

	switch {
	case p.busy:
		activity := snap.Activity
		if activity == "" {
			activity = "処理中…"
		}
		parts = append(parts, p.spinner.View()+" "+theme.Activity.Render(activity))
	case p.translating:
		parts = append(parts, p.spinner.View()+" "+theme.Activity.Render("翻訳中…"))
	}

	if p.errMsg != "" {
		parts = append(parts, theme.ErrorText.Width(width-2).Render(p.errMsg))
	}

	if snap.Mode == session.ModeDictation && snap.Dictation.ChatOpen && !p.busy {
		p.input.SetWidth(width - 2)
		parts = append(parts, p.input.View())
	}

	return strings.Join(parts, "\n")
}
