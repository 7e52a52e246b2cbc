// Package conversation runs LLM exchanges that remember what was said: a
// Chain pairs a fixed system instruction with a token-bounded Memory that
// folds old turns into a running summary.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/abhisek/eikaiwa/internal/llm"
)

// charsPerToken is the rough English characters-per-token ratio used for
// budgeting without a tokenizer.
const charsPerToken = 4

// DefaultMaxTokens is the memory budget when none is configured.
const DefaultMaxTokens = 1000

// Summariser folds turns into an existing summary.
type Summariser interface {
	Summarise(ctx context.Context, previous string, turns []llm.Message) (string, error)
}

// Memory keeps recent turns verbatim and a summary of everything older.
// The budget is soft: it is checked after each exchange is added. All
// methods are safe for concurrent use.
type Memory struct {
	maxTokens  int
	summariser Summariser
	logger     *slog.Logger

	mu      sync.Mutex
	turns   []llm.Message
	summary string
	tokens  int
	folded  int
	dropped int
}

// NewMemory creates a Memory. A nil summariser drops the oldest turns
// instead of summarising them.
func NewMemory(maxTokens int, summariser Summariser) *Memory {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Memory{
		maxTokens:  maxTokens,
		summariser: summariser,
		logger:     slog.Default().With("component", "memory"),
	}
}

// Messages returns the summary, if any, as a system message followed by the
// retained turns in order.
func (m *Memory) Messages() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]llm.Message, 0, len(m.turns)+1)
	if m.summary != "" {
		out = append(out, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Summary of the conversation so far: " + m.summary,
		})
	}
	return append(out, m.turns...)
}

// Add records an exchange and prunes the oldest turns once the estimate
// exceeds the budget. Pruned turns are summarised; if that fails they are
// dropped and the failure is only logged.
func (m *Memory) Add(ctx context.Context, msgs ...llm.Message) {
	m.mu.Lock()
	for _, msg := range msgs {
		m.turns = append(m.turns, msg)
		m.tokens += estimateTokens(msg.Content)
	}

	var pruned []llm.Message
	for m.tokens > m.maxTokens && len(m.turns) > 1 {
		oldest := m.turns[0]
		m.turns = m.turns[1:]
		m.tokens -= estimateTokens(oldest.Content)
		pruned = append(pruned, oldest)
	}
	previous := m.summary
	m.mu.Unlock()

	if len(pruned) == 0 {
		return
	}

	var summary string
	var err error
	if m.summariser != nil {
		summary, err = m.summariser.Summarise(ctx, previous, pruned)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summariser == nil || err != nil {
		if err != nil {
			m.logger.Warn("summarising conversation failed, dropping oldest turns", "turns", len(pruned), "error", err)
		}
		m.dropped += len(pruned)
		return
	}
	m.tokens += estimateTokens(summary) - estimateTokens(m.summary)
	m.summary = summary
	m.folded += len(pruned)
}

// TokenEstimate returns the estimated size of the summary and turns.
func (m *Memory) TokenEstimate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

// MaxTokens returns the budget.
func (m *Memory) MaxTokens() int { return m.maxTokens }

// Stats reports how many turns were summarised and how many dropped.
func (m *Memory) Stats() (folded, dropped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.folded, m.dropped
}

// Reset forgets everything.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	m.summary = ""
	m.tokens = 0
}

func estimateTokens(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && s != "" {
		n = 1
	}
	return n
}

const summaryPrompt = `Progressively summarise an English practice conversation between a learner and a tutor.
You are given the current summary and new lines of conversation. Return a new summary that
adds the new lines to the current one. Keep topics discussed, facts the learner shared about
themselves and recurring mistakes. Answer with the summary only.`

// LLMSummariser summarises with a language model.
type LLMSummariser struct {
	provider llm.Provider
}

// NewLLMSummariser creates an LLMSummariser.
func NewLLMSummariser(p llm.Provider) *LLMSummariser {
	return &LLMSummariser{provider: p}
}

func (s *LLMSummariser) Summarise(ctx context.Context, previous string, turns []llm.Message) (string, error) {
	var sb strings.Builder
	sb.WriteString("Current summary:\n")
	if previous == "" {
		sb.WriteString("(none)\n")
	} else {
		sb.WriteString(previous)
		sb.WriteString("\n")
	}
	sb.WriteString("\nNew lines of conversation:\n")
	for _, t := range turns {
		speaker := "Learner"
		if t.Role == llm.RoleAssistant {
			speaker = "Tutor"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, t.Content)
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, llm.PurposeSummary), llm.Request{
		System:      summaryPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("summarise: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("summarise: empty summary")
	}
	return text, nil
}
