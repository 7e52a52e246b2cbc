package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/eikaiwa/internal/llm"
)

func TestChain_PredictRemembersExchange(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockText("Hi! How was your weekend?"),
		llm.MockText("Hiking sounds great. Where did you go?"),
	)
	chain := NewChain(mock, "You are a tutor.", nil, WithTemperature(0.5))

	reply, err := chain.Predict(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if reply != "Hi! How was your weekend?" {
		t.Fatalf("unexpected reply %q", reply)
	}

	if _, err := chain.Predict(context.Background(), "I goed hiking."); err != nil {
		t.Fatalf("Predict: %v", err)
	}

	req := mock.LastCall()
	if req.System != "You are a tutor." || req.Temperature != 0.5 {
		t.Fatalf("unexpected request %+v", req)
	}
	if len(req.Messages) != 3 {
		t.Fatalf("expected history + input, got %d messages", len(req.Messages))
	}
	if req.Messages[0].Content != "Hello" || req.Messages[1].Role != llm.RoleAssistant || req.Messages[2].Content != "I goed hiking." {
		t.Fatalf("unexpected messages %+v", req.Messages)
	}
	if got := len(chain.Memory().Messages()); got != 4 {
		t.Fatalf("expected 4 remembered turns, got %d", got)
	}
}

func TestChain_FailedCallIsNotRemembered(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}},
		llm.MockText("   "),
	)
	chain := NewChain(mock, "sys", nil)

	_, err := chain.Predict(context.Background(), "Hello")
	var unavail *llm.ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if _, err := chain.Predict(context.Background(), "Hello"); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
	if n := len(chain.Memory().Messages()); n != 0 {
		t.Fatalf("expected empty memory, got %d turns", n)
	}
}

func TestChain_PurposeLabel(t *testing.T) {
	repo := &purposeRecorder{inner: llm.NewMockProvider(llm.MockText("ok"))}
	chain := NewChain(repo, "sys", nil, WithPurpose(llm.PurposeEvaluation))
	if _, err := chain.Predict(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if repo.purpose != llm.PurposeEvaluation {
		t.Fatalf("purpose = %q", repo.purpose)
	}
}

type purposeRecorder struct {
	inner   llm.Provider
	purpose string
}

func (p *purposeRecorder) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.purpose = llm.PurposeFrom(ctx)
	return p.inner.Generate(ctx, req)
}

func (p *purposeRecorder) ModelID() string { return "recorder" }

func TestChain_Schema(t *testing.T) {
	schema := &llm.Schema{Name: "practice-sentence", Definition: map[string]any{"type": "object"}}
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`{"sentence":"Could you keep it down a little?"}`)},
		llm.MockResponse{Content: json.RawMessage(`{"sentence":""}`)},
	)
	chain := NewChain(mock, "sys", nil, WithSchema(schema, "sentence"))

	got, err := chain.Predict(context.Background(), "next")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != "Could you keep it down a little?" {
		t.Fatalf("unexpected sentence %q", got)
	}
	if mock.LastCall().Schema != schema {
		t.Fatal("schema not sent")
	}

	_, err = chain.Predict(context.Background(), "next")
	var inv *llm.ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestMemory_SummarisesOldestTurns(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("The learner likes hiking."))
	mem := NewMemory(10, NewLLMSummariser(mock))

	long := strings.Repeat("a", 24) // 6 tokens
	mem.Add(context.Background(),
		llm.Message{Role: llm.RoleUser, Content: long},
		llm.Message{Role: llm.RoleAssistant, Content: long},
	)

	msgs := mem.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected summary + 1 turn, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != llm.RoleSystem || !strings.Contains(msgs[0].Content, "The learner likes hiking.") {
		t.Fatalf("unexpected summary message %+v", msgs[0])
	}
	if msgs[1].Role != llm.RoleAssistant {
		t.Fatalf("expected newest turn kept, got %+v", msgs[1])
	}
	if folded, dropped := mem.Stats(); folded != 1 || dropped != 0 {
		t.Fatalf("folded=%d dropped=%d", folded, dropped)
	}

	req := mock.LastCall()
	if !strings.Contains(req.Messages[0].Content, "Learner: "+long) {
		t.Fatalf("summariser input missing pruned turn: %q", req.Messages[0].Content)
	}
}

func TestMemory_SummaryFailureDropsTurns(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("boom")})
	mem := NewMemory(5, NewLLMSummariser(mock))

	mem.Add(context.Background(),
		llm.Message{Role: llm.RoleUser, Content: strings.Repeat("b", 16)},
		llm.Message{Role: llm.RoleAssistant, Content: strings.Repeat("c", 16)},
	)

	msgs := mem.Messages()
	if len(msgs) != 1 || msgs[0].Role != llm.RoleAssistant {
		t.Fatalf("expected only the newest turn, got %+v", msgs)
	}
	if _, dropped := mem.Stats(); dropped != 1 {
		t.Fatalf("expected 1 dropped turn, got %d", dropped)
	}
	if mem.TokenEstimate() != 4 {
		t.Fatalf("token estimate = %d, want 4", mem.TokenEstimate())
	}
}

func TestMemory_UnderBudgetKeepsEverything(t *testing.T) {
	mem := NewMemory(0, nil)
	mem.Add(context.Background(), llm.Message{Role: llm.RoleUser, Content: "short"})
	if len(mem.Messages()) != 1 {
		t.Fatal("expected the turn to be kept")
	}
	mem.Reset()
	if len(mem.Messages()) != 0 || mem.TokenEstimate() != 0 {
		t.Fatal("reset should clear memory")
	}
}
