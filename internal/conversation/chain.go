package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abhisek/eikaiwa/internal/llm"
)

// ErrEmptyReply is returned when the model answers with nothing.
var ErrEmptyReply = errors.New("language model returned an empty reply")

// Chain sends input to a model under a fixed system instruction, with the
// history held in its Memory, and remembers the exchange.
type Chain struct {
	provider    llm.Provider
	system      string
	memory      *Memory
	purpose     string
	temperature float64
	maxTokens   int
	schema      *llm.Schema
	field       string
}

// Option configures a Chain.
type Option func(*Chain)

// WithPurpose sets the label recorded with each request.
func WithPurpose(purpose string) Option {
	return func(c *Chain) { c.purpose = purpose }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Chain) { c.temperature = t }
}

// WithMaxTokens caps reply length.
func WithMaxTokens(n int) Option {
	return func(c *Chain) { c.maxTokens = n }
}

// WithSchema asks for structured output and makes Predict return the
// named string field of the validated object.
func WithSchema(schema *llm.Schema, field string) Option {
	return func(c *Chain) {
		c.schema = schema
		c.field = field
	}
}

// NewChain creates a Chain. A nil memory gets a fresh one with the default
// budget and no summariser.
func NewChain(p llm.Provider, system string, memory *Memory, opts ...Option) *Chain {
	if memory == nil {
		memory = NewMemory(DefaultMaxTokens, nil)
	}
	c := &Chain{
		provider:    p,
		system:      system,
		memory:      memory,
		purpose:     llm.PurposeConversation,
		temperature: 0.5,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// System returns the chain's fixed instruction.
func (c *Chain) System() string { return c.system }

// Memory returns the chain's memory.
func (c *Chain) Memory() *Memory { return c.memory }

// Predict sends input with the remembered history and returns the reply.
// Nothing is remembered when the call fails.
func (c *Chain) Predict(ctx context.Context, input string) (string, error) {
	msgs := append(c.memory.Messages(), llm.Message{Role: llm.RoleUser, Content: input})

	resp, err := c.provider.Generate(llm.WithPurpose(ctx, c.purpose), llm.Request{
		System:      c.system,
		Messages:    msgs,
		Schema:      c.schema,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}

	reply, err := c.extract(resp)
	if err != nil {
		return "", err
	}

	c.memory.Add(context.WithoutCancel(ctx),
		llm.Message{Role: llm.RoleUser, Content: input},
		llm.Message{Role: llm.RoleAssistant, Content: reply},
	)
	return reply, nil
}

func (c *Chain) extract(resp *llm.Response) (string, error) {
	if c.schema == nil {
		if text := resp.Text(); text != "" {
			return text, nil
		}
		return "", ErrEmptyReply
	}

	var obj map[string]any
	if err := json.Unmarshal(resp.Content, &obj); err != nil {
		return "", &llm.ErrInvalidResponse{Content: resp.Content, Err: err}
	}
	s, _ := obj[c.field].(string)
	if s == "" {
		return "", &llm.ErrInvalidResponse{
			Content: resp.Content,
			Err:     fmt.Errorf("field %q missing or empty", c.field),
		}
	}
	return s, nil
}
