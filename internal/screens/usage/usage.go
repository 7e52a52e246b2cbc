// Package usage shows what this process spent on the language model and
// the practice rounds played so far.
package usage

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/eikaiwa/internal/llm"
	"github.com/abhisek/eikaiwa/internal/router"
	"github.com/abhisek/eikaiwa/internal/screen"
	"github.com/abhisek/eikaiwa/internal/store"
	"github.com/abhisek/eikaiwa/internal/ui/layout"
	"github.com/abhisek/eikaiwa/internal/ui/theme"
)

// roundLimit caps the rounds listed.
const roundLimit = 20

type usageLoadedMsg struct {
	Purposes []store.PurposeUsage
	Models   []store.ModelUsage
	Rounds   []store.RoundRecord
	Err      error
}

// UsageScreen lists LLM usage and recent rounds.
type UsageScreen struct {
	eventRepo store.EventRepo
	purposes  []store.PurposeUsage
	models    []store.ModelUsage
	rounds    []store.RoundRecord
	selected  int
	expanded  map[int]bool
	loaded    bool
	errMsg    string
}

var _ screen.Screen = (*UsageScreen)(nil)
var _ screen.KeyHintProvider = (*UsageScreen)(nil)

// New creates a new UsageScreen.
func New(eventRepo store.EventRepo) *UsageScreen {
	return &UsageScreen{
		eventRepo: eventRepo,
		expanded:  make(map[int]bool),
	}
}

func (s *UsageScreen) Init() tea.Cmd {
	repo := s.eventRepo
	return func() tea.Msg {
		return load(context.Background(), repo)
	}
}

// load queries everything the screen shows.
func load(ctx context.Context, repo store.EventRepo) usageLoadedMsg {
	purposes, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		return usageLoadedMsg{Err: err}
	}
	models, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		return usageLoadedMsg{Err: err}
	}
	rounds, err := repo.QueryRounds(ctx, store.QueryOpts{Limit: roundLimit})
	if err != nil {
		return usageLoadedMsg{Err: err}
	}
	return usageLoadedMsg{Purposes: purposes, Models: models, Rounds: rounds}
}

func (s *UsageScreen) Title() string {
	return "使用状況"
}

func (s *UsageScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "詳細"},
		{Key: "↑↓", Description: "移動"},
		{Key: "r", Description: "更新"},
		{Key: "Esc", Description: "戻る"},
	}
}

func (s *UsageScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case usageLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.errMsg = ""
			s.purposes = msg.Purposes
			s.models = msg.Models
			s.rounds = msg.Rounds
			if s.selected >= len(s.rounds) {
				s.selected = 0
			}
		}
		s.loaded = true
		return s, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "r":
			return s, s.Init()
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
			return s, nil
		case "down", "j":
			if s.selected < len(s.rounds)-1 {
				s.selected++
			}
			return s, nil
		case "enter":
			s.expanded[s.selected] = !s.expanded[s.selected]
			return s, nil
		}
	}
	return s, nil
}

func (s *UsageScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nエラー: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  読み込み中...")
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(Report(s.purposes, s.models))
	b.WriteString("\n")
	b.WriteString(theme.Title.Render("  最近の練習"))
	b.WriteString("\n")

	if len(s.rounds) == 0 {
		b.WriteString(theme.Hint.Render("  まだ練習していません"))
		return b.String()
	}

	for i, r := range s.rounds {
		prefix := "  "
		if i == s.selected {
			prefix = "> "
		}
		status := lipgloss.NewStyle().Foreground(theme.Success).Render("✓")
		if !r.Success {
			status = lipgloss.NewStyle().Foreground(theme.Error).Render("✗")
		}
		line := fmt.Sprintf("%s%s  %-10s #%d  %.1fs  %s",
			prefix, r.Timestamp.Format("15:04:05"), r.Mode, r.Round, float64(r.DurationMs)/1000, truncate(r.Problem, width-50))

		style := lipgloss.NewStyle().Foreground(theme.Text)
		if i == s.selected {
			style = style.Foreground(theme.Primary).Bold(true)
		}
		b.WriteString(style.Render(line) + " " + status)
		b.WriteString("\n")

		if s.expanded[i] {
			detail := lipgloss.NewStyle().Foreground(theme.TextDim).PaddingLeft(4).Width(width - 4)
			if r.Answer != "" {
				b.WriteString(detail.Render("回答: " + r.Answer))
				b.WriteString("\n")
			}
			if r.Evaluation != "" {
				b.WriteString(detail.Render(r.Evaluation))
				b.WriteString("\n")
			}
			if r.ErrorMessage != "" {
				b.WriteString(detail.Foreground(theme.Error).Render(r.ErrorMessage))
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// Report renders the usage tables as plain text, for the screen and for
// the summary printed on exit.
func Report(purposes []store.PurposeUsage, models []store.ModelUsage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "  %-14s %6s %10s %10s %10s\n", "purpose", "calls", "input", "output", "avg ms")
	for _, p := range purposes {
		fmt.Fprintf(&b, "  %-14s %6d %10d %10d %10d\n", p.Purpose, p.Calls, p.InputTokens, p.OutputTokens, p.AvgLatencyMs)
	}
	if len(purposes) == 0 {
		b.WriteString("  (no LLM calls yet)\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "  %-28s %6s %10s %10s %10s\n", "model", "calls", "input", "output", "cost")
	var total float64
	for _, m := range models {
		cost := "-"
		if c := llm.LookupCost(m.Model); c != nil {
			usd := c.Cost(m.InputTokens, m.OutputTokens)
			total += usd
			cost = fmt.Sprintf("$%.4f", usd)
		}
		fmt.Fprintf(&b, "  %-28s %6d %10d %10d %10s\n", m.Model, m.Calls, m.InputTokens, m.OutputTokens, cost)
	}
	if len(models) > 0 {
		fmt.Fprintf(&b, "  %-28s %6s %10s %10s %10s\n", "total", "", "", "", fmt.Sprintf("$%.4f", total))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if n < 10 {
		n = 10
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
