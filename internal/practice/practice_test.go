package practice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/abhisek/eikaiwa/internal/audio"
	"github.com/abhisek/eikaiwa/internal/llm"
	"github.com/abhisek/eikaiwa/internal/observe"
	"github.com/abhisek/eikaiwa/internal/session"
	"github.com/abhisek/eikaiwa/internal/speech"
	"github.com/abhisek/eikaiwa/internal/store"
)

type fakeRecorder struct {
	errs  []error
	calls int
}

func (r *fakeRecorder) Record(ctx context.Context) (string, error) {
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("audio_input_%d.wav", r.calls), nil
}

type fakeTranscriber struct {
	texts []string
	paths []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	if len(f.texts) == 0 {
		return "", speech.ErrEmptyAudio
	}
	text := f.texts[0]
	f.texts = f.texts[1:]
	return text, nil
}

type fakeSpeaker struct {
	mu       sync.Mutex
	synthErr error
	spoken   []string
	voices []string
	speeds []float64
	played []string
}

func (f *fakeSpeaker) Synthesize(_ context.Context, text, voice string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	f.voices = append(f.voices, voice)
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return []byte("mp3:" + text), nil
}

func (f *fakeSpeaker) SaveMP3AsWAV(_ context.Context, mp3 []byte, dst string) error {
	if !strings.HasPrefix(string(mp3), "mp3:") {
		return errors.New("not mp3")
	}
	return nil
}

func (f *fakeSpeaker) Play(_ context.Context, path string, speed float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, path)
	f.speeds = append(f.speeds, speed)
	return nil
}

type harness struct {
	handlers    *Handlers
	mock        *llm.MockProvider
	recorder    *fakeRecorder
	transcriber *fakeTranscriber
	speaker     *fakeSpeaker
	events      store.EventRepo
}

func newHarness(t *testing.T, texts []string, responses ...llm.MockResponse) *harness {
	t.Helper()
	return newHarnessWithTemperature(t, 0.5, texts, responses...)
}

func newHarnessWithTemperature(t *testing.T, temperature float64, texts []string, responses ...llm.MockResponse) *harness {
	t.Helper()
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	h := &harness{
		mock:        llm.NewMockProvider(responses...),
		recorder:    &fakeRecorder{},
		transcriber: &fakeTranscriber{texts: texts},
		speaker:     &fakeSpeaker{},
		events:      st.EventRepo(),
	}
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	h.handlers = New(Deps{
		Recorder:    h.recorder,
		Transcriber: h.transcriber,
		Synthesizer: h.speaker,
		Transcoder:  h.speaker,
		Player:      h.speaker,
		LLM:         h.mock,
		Events:      h.events,
		Metrics:     metrics,
		OutputPath:  func(time.Time) string { return "out.wav" },
		Now:         func() time.Time { return now },
		Temperature: temperature,
	})
	return h
}

func problemJSON(s string) llm.MockResponse {
	b, _ := json.Marshal(map[string]string{"sentence": s})
	return llm.MockResponse{Content: b}
}

func (h *harness) rounds(t *testing.T) []store.RoundRecord {
	t.Helper()
	rounds, err := h.events.QueryRounds(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatalf("query rounds: %v", err)
	}
	return rounds
}

func TestBasic_RepliesAndSpeaks(t *testing.T) {
	h := newHarness(t, []string{"I goed to the park yesterday."}, llm.MockText("Oh, you went to the park! What did you do there?"))
	s := session.New(nil)
	s.SetVoice(session.VoiceMale)
	if err := s.SetSpeed(0.8); err != nil {
		t.Fatal(err)
	}

	if err := h.handlers.Run(context.Background(), s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].Role != session.RoleUser || msgs[1].Role != session.RoleAssistant {
		t.Fatalf("unexpected history %+v", msgs)
	}
	if msgs[1].Content != "Oh, you went to the park! What did you do there?" {
		t.Fatalf("unexpected reply %q", msgs[1].Content)
	}
	if len(h.speaker.spoken) != 1 || h.speaker.voices[0] != "onyx" || h.speaker.speeds[0] != 0.8 {
		t.Fatalf("unexpected playback spoken=%v voices=%v speeds=%v", h.speaker.spoken, h.speaker.voices, h.speaker.speeds)
	}
	if s.State() != session.StateIdle {
		t.Fatalf("expected idle after round, got %s", s.State())
	}

	call := h.mock.LastCall()
	if call.System != basicConversationPrompt || call.Temperature != 0.5 {
		t.Fatalf("unexpected request system=%q temperature=%v", call.System, call.Temperature)
	}

	rounds := h.rounds(t)
	if len(rounds) != 1 || !rounds[0].Success || rounds[0].Mode != "basic" {
		t.Fatalf("unexpected rounds %+v", rounds)
	}
}

func TestBasic_NoAudioSkipsTranscription(t *testing.T) {
	h := newHarness(t, nil)
	h.recorder.errs = []error{audio.ErrNoAudio}
	s := session.New(nil)

	err := h.handlers.Basic(context.Background(), s)
	if !errors.Is(err, audio.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
	if len(h.transcriber.paths) != 0 {
		t.Fatalf("transcription must not run, got %v", h.transcriber.paths)
	}
	if h.mock.CallCount() != 0 {
		t.Fatal("no LLM call expected")
	}
	if s.State() != session.StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
	if got := UserMessage(err); got != "音声が検出されませんでした。マイクの設定を確認してください。" {
		t.Fatalf("unexpected user message %q", got)
	}

	rounds := h.rounds(t)
	if len(rounds) != 1 || rounds[0].Success || rounds[0].ErrorMessage == "" {
		t.Fatalf("expected one failed round, got %+v", rounds)
	}
}

func TestBasic_ShortAnswerRejected(t *testing.T) {
	h := newHarness(t, []string{" a "})
	s := session.New(nil)

	if err := h.handlers.Basic(context.Background(), s); !errors.Is(err, ErrAnswerTooShort) {
		t.Fatalf("expected ErrAnswerTooShort, got %v", err)
	}
	if h.mock.CallCount() != 0 {
		t.Fatal("no LLM call expected")
	}
}

func TestBasic_ZeroTemperatureIsKept(t *testing.T) {
	h := newHarnessWithTemperature(t, 0, []string{"Good morning!"}, llm.MockText("Morning!"))
	s := session.New(nil)

	if err := h.handlers.Basic(context.Background(), s); err != nil {
		t.Fatalf("Basic: %v", err)
	}
	if got := h.mock.LastCall().Temperature; got != 0 {
		t.Fatalf("expected temperature 0, got %v", got)
	}
}

func TestBasic_SpeechFailureLeavesHistoryEmpty(t *testing.T) {
	h := newHarness(t, []string{"Hello there, how are you?"}, llm.MockText("I'm fine."))
	h.speaker.synthErr = errors.New("tts 400")
	s := session.New(nil)

	err := h.handlers.Basic(context.Background(), s)
	if err == nil || !strings.Contains(err.Error(), "tts 400") {
		t.Fatalf("expected the synthesis error, got %v", err)
	}
	if msgs := s.Messages(); len(msgs) != 0 {
		t.Fatalf("a failed round must not touch the history, got %+v", msgs)
	}
	if len(h.speaker.played) != 0 {
		t.Fatalf("nothing should play, got %v", h.speaker.played)
	}
	if s.State() != session.StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
}

func TestShadowing_FirstRound(t *testing.T) {
	const problem = "Could you send me the report by Friday afternoon, if that works for you?"
	h := newHarness(t,
		[]string{"Could you send me the report by Friday afternoon?"},
		problemJSON(problem),
		llm.MockText("【評価】\n✓ 前半は正確です。"),
	)
	s := session.New(nil)
	s.SetMode(session.ModeShadowing)

	if got := s.Shadowing().Count; got != 0 {
		t.Fatalf("expected count 0, got %d", got)
	}
	if err := h.handlers.Run(context.Background(), s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	p := s.Shadowing()
	if p.Count != 1 || !p.Active || p.AudioInputPending || p.FirstRun || p.EvaluationFirst {
		t.Fatalf("unexpected progress %+v", p)
	}
	if s.Problem() != problem {
		t.Fatalf("unexpected problem %q", s.Problem())
	}

	msgs := s.Messages()
	want := []session.Role{session.RoleAssistant, session.RoleUser, session.RoleAssistant, session.RoleOther}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %+v", len(want), msgs)
	}
	for i, r := range want {
		if msgs[i].Role != r {
			t.Fatalf("message %d: role %s, want %s", i, msgs[i].Role, r)
		}
	}
	if len(h.speaker.spoken) != 1 || h.speaker.spoken[0] != problem {
		t.Fatalf("expected the problem to be spoken, got %v", h.speaker.spoken)
	}

	eval := h.mock.LastCall()
	if !strings.Contains(eval.System, problem) {
		t.Fatalf("evaluation system prompt should carry the problem, got %q", eval.System)
	}
	if s.State() != session.StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
}

func TestShadowing_FailedRecordingResumesAtRecording(t *testing.T) {
	h := newHarness(t,
		[]string{"See you at the station."},
		problemJSON("See you at the station at seven, and don't forget your umbrella."),
		llm.MockText("評価"),
	)
	h.recorder.errs = []error{audio.ErrNoAudio}
	s := session.New(nil)
	s.SetMode(session.ModeShadowing)

	if err := h.handlers.Shadowing(context.Background(), s); !errors.Is(err, audio.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
	if !s.Shadowing().AudioInputPending {
		t.Fatal("capture should still be pending")
	}
	if s.State() != session.StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}

	if err := h.handlers.Shadowing(context.Background(), s); err != nil {
		t.Fatalf("second round: %v", err)
	}
	if len(h.speaker.spoken) != 1 {
		t.Fatalf("the problem must not be replayed, spoken %v", h.speaker.spoken)
	}
	if h.mock.CallCount() != 2 {
		t.Fatalf("expected problem + evaluation calls, got %d", h.mock.CallCount())
	}
	if got := s.Shadowing().Count; got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}
}

func TestDictation_EndToEnd(t *testing.T) {
	const problem = "I'm running a bit late, so please start the meeting without me."
	h := newHarness(t, nil,
		problemJSON(problem),
		llm.MockText("【評価】\n△ 'a bit' が抜けています。"),
	)
	s := session.New(nil)
	s.SetMode(session.ModeDictation)
	ctx := context.Background()

	if err := h.handlers.Run(ctx, s); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	d := s.Dictation()
	if !d.ChatOpen || d.Active || d.Count != 0 {
		t.Fatalf("expected open gate, got %+v", d)
	}
	if s.State() != session.StateDictationAwaitingText || s.Problem() != problem {
		t.Fatalf("unexpected state %s problem %q", s.State(), s.Problem())
	}
	if len(s.Messages()) != 0 {
		t.Fatal("history should be empty until the answer is evaluated")
	}

	if err := h.handlers.Run(ctx, s); !errors.Is(err, ErrEmptyChatMessage) {
		t.Fatalf("expected ErrEmptyChatMessage, got %v", err)
	}

	s.SetChatMessage("I'm running late, so please start the meeting without me.")
	if err := h.handlers.Run(ctx, s); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	d = s.Dictation()
	if d.ChatOpen || !d.Active || d.Count != 1 || d.ChatMessage != "" {
		t.Fatalf("unexpected progress %+v", d)
	}
	if got := len(s.Messages()); got != 4 {
		t.Fatalf("expected 4 messages, got %d", got)
	}
	if s.State() != session.StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
	if len(h.recorder.errs) != 0 || h.recorder.calls != 0 {
		t.Fatal("dictation must not record")
	}

	rounds := h.rounds(t)
	if len(rounds) != 1 || rounds[0].Problem != problem || rounds[0].Round != 1 {
		t.Fatalf("unexpected rounds %+v", rounds)
	}
}

func TestDictation_EvaluationFailureKeepsGateOpen(t *testing.T) {
	h := newHarness(t, nil,
		problemJSON("Thanks so much for helping me move last weekend, I owe you one."),
		llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}},
		llm.MockText("評価"),
	)
	s := session.New(nil)
	s.SetMode(session.ModeDictation)
	ctx := context.Background()

	if err := h.handlers.Dictation(ctx, s); err != nil {
		t.Fatal(err)
	}
	s.SetChatMessage("Thanks for helping me move.")

	err := h.handlers.Dictation(ctx, s)
	var rl *llm.ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if !s.Dictation().ChatOpen || s.State() != session.StateDictationAwaitingText {
		t.Fatalf("gate should stay open, state %s", s.State())
	}
	if len(s.Messages()) != 0 {
		t.Fatal("failed evaluation must not touch the history")
	}

	if err := h.handlers.Dictation(ctx, s); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.Dictation().Count != 1 {
		t.Fatalf("expected count 1, got %d", s.Dictation().Count)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness(t, nil, llm.MockText("never"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.recorder.errs = []error{context.Canceled}

	s := session.New(nil)
	err := h.handlers.Run(ctx, s)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if UserMessage(err) != "" {
		t.Fatal("cancellation should not produce a user message")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"too short audio", fmt.Errorf("transcribing answer: %w", &speech.ErrAudioTooShort{Duration: 50 * time.Millisecond}),
			"録音時間が短すぎます（0.05秒）。最低0.1秒以上の音声を録音してください。"},
		{"empty audio", speech.ErrEmptyAudio, "音声ファイルが空です。もう一度録音してください。"},
		{"transcode", &audio.TranscodeError{Src: "a", Dst: "b", Err: errors.New("exit status 1")},
			"ffmpegによる変換中にエラーが発生しました: exit status 1"},
		{"other", errors.New("boom"), "エラーが発生しました: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Fatalf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
