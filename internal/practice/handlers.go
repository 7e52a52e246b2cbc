// Package practice runs the rounds of the three practice modes against an
// explicit session: basic conversation, shadowing and dictation.
package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abhisek/eikaiwa/internal/conversation"
	"github.com/abhisek/eikaiwa/internal/llm"
	"github.com/abhisek/eikaiwa/internal/observe"
	"github.com/abhisek/eikaiwa/internal/session"
	"github.com/abhisek/eikaiwa/internal/speech"
	"github.com/abhisek/eikaiwa/internal/store"
)

// Recorder captures one spoken answer and returns the WAV path.
type Recorder interface {
	Record(ctx context.Context) (string, error)
}

// Transcoder turns synthesized MP3 bytes into a playable WAV file.
type Transcoder interface {
	SaveMP3AsWAV(ctx context.Context, mp3 []byte, dst string) error
}

// Player plays a WAV file at a speed and removes it.
type Player interface {
	Play(ctx context.Context, path string, speed float64) error
}

// Deps are the collaborators of Handlers.
type Deps struct {
	Recorder    Recorder
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Transcoder  Transcoder
	Player      Player
	LLM         llm.Provider

	// Events receives one record per round. Optional.
	Events store.EventRepo
	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics

	// OutputPath names the WAV file for synthesized speech.
	OutputPath  func(time.Time) string
	Now         func() time.Time
	// Temperature is sent as is; zero is a valid setting.
	Temperature float64
	Logger      *slog.Logger
}

// Handlers implement the practice modes.
type Handlers struct {
	deps    Deps
	metrics *observe.Metrics
	logger  *slog.Logger
}

// New creates Handlers.
func New(deps Deps) *Handlers {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.OutputPath == nil {
		deps.OutputPath = func(t time.Time) string {
			return fmt.Sprintf("audio_output_%s.wav", t.Format("20060102150405"))
		}
	}
	m := deps.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{deps: deps, metrics: m, logger: logger.With("component", "practice")}
}

// Run plays one round of the session's selected mode.
func (h *Handlers) Run(ctx context.Context, s *session.Session) error {
	switch m := s.Mode(); m {
	case session.ModeBasic:
		return h.Basic(ctx, s)
	case session.ModeShadowing:
		return h.Shadowing(ctx, s)
	case session.ModeDictation:
		return h.Dictation(ctx, s)
	default:
		return fmt.Errorf("unknown mode %v", m)
	}
}

// round collects what gets recorded about one round.
type round struct {
	start time.Time
	data  store.RoundEventData
}

func (h *Handlers) begin(s *session.Session, mode session.Mode, n int) *round {
	return &round{
		start: h.deps.Now(),
		data:  store.RoundEventData{SessionID: s.ID, Mode: mode.Key(), Round: n},
	}
}

// finish records the round and clears the session's activity line.
func (h *Handlers) finish(ctx context.Context, s *session.Session, r *round, err error) {
	s.SetActivity("")

	r.data.Success = err == nil
	if err != nil {
		r.data.ErrorMessage = err.Error()
	}
	r.data.DurationMs = h.deps.Now().Sub(r.start).Milliseconds()

	ctx = context.WithoutCancel(ctx)
	h.metrics.RecordRound(ctx, r.data.Mode, err)

	switch {
	case err == nil:
		h.logger.Info("round finished", "mode", r.data.Mode, "round", r.data.Round, "duration_ms", r.data.DurationMs)
	case errors.Is(err, context.Canceled):
		h.logger.Debug("round cancelled", "mode", r.data.Mode)
	default:
		h.logger.Warn("round failed", "mode", r.data.Mode, "round", r.data.Round, "error", err)
	}

	if h.deps.Events == nil {
		return
	}
	if logErr := h.deps.Events.AppendRound(ctx, r.data); logErr != nil {
		h.logger.Warn("failed to record round event", "error", logErr)
	}
}

// toIdle returns the session to idle after a failed round. A failure
// after an earlier one already reset the state is not an error.
func toIdle(s *session.Session) {
	if s.State() != session.StateIdle {
		_ = s.Transition(session.StateIdle)
	}
}

// Basic records the learner, replies through the conversation chain and
// speaks the reply.
func (h *Handlers) Basic(ctx context.Context, s *session.Session) (err error) {
	r := h.begin(s, session.ModeBasic, 0)
	defer func() { h.finish(ctx, s, r, err) }()

	if err := s.Transition(session.StateBasicConversation); err != nil {
		return err
	}
	defer toIdle(s)

	text, err := h.listen(ctx, s)
	if err != nil {
		return err
	}
	r.data.Answer = text

	chains := s.Chains()
	if chains.Conversation == nil {
		chains.Conversation = conversation.NewChain(h.deps.LLM, basicConversationPrompt, s.Memory(),
			conversation.WithPurpose(llm.PurposeConversation),
			conversation.WithTemperature(h.deps.Temperature))
	}

	s.SetActivity("返答を生成中…")
	done := h.metrics.TimeStage(ctx, observe.StageReply)
	reply, err := chains.Conversation.Predict(ctx, text)
	done(err)
	if err != nil {
		return fmt.Errorf("generating reply: %w", err)
	}
	r.data.Evaluation = reply

	if err := h.speak(ctx, s, reply); err != nil {
		return err
	}
	s.Append(
		session.Message{Role: session.RoleUser, Content: text},
		session.Message{Role: session.RoleAssistant, Content: reply},
	)
	return nil
}

// Shadowing plays a generated sentence, records the learner repeating it
// and evaluates the attempt. A round whose recording failed resumes at
// the recording step.
func (h *Handlers) Shadowing(ctx context.Context, s *session.Session) (err error) {
	progress := s.Shadowing()
	r := h.begin(s, session.ModeShadowing, progress.Count+1)
	defer func() { h.finish(ctx, s, r, err) }()

	chains := s.Chains()
	if progress.FirstRun || chains.ShadowingProblem == nil {
		chains.ShadowingProblem = h.problemChain(s)
		s.UpdateShadowing(func(p *session.ShadowingProgress) { p.FirstRun = false })
	}

	if !progress.AudioInputPending {
		if err := s.Transition(session.StateShadowingAwaitingProblem); err != nil {
			return err
		}
		defer toIdle(s)

		problem, err := h.problem(ctx, s, chains.ShadowingProblem)
		if err != nil {
			return err
		}
		r.data.Problem = problem
		s.UpdateShadowing(func(p *session.ShadowingProgress) { p.AudioInputPending = true })
		if err := s.Transition(session.StateShadowingAwaitingSpeech); err != nil {
			return err
		}
	} else {
		if err := s.Transition(session.StateShadowingAwaitingSpeech); err != nil {
			return err
		}
		defer toIdle(s)
		r.data.Problem = s.Problem()
	}

	answer, err := h.listen(ctx, s)
	if err != nil {
		return err
	}
	s.UpdateShadowing(func(p *session.ShadowingProgress) { p.AudioInputPending = false })
	r.data.Answer = answer

	if err := s.Transition(session.StateShadowingEvaluating); err != nil {
		return err
	}
	s.Append(
		session.Message{Role: session.RoleAssistant, Content: r.data.Problem},
		session.Message{Role: session.RoleUser, Content: answer},
	)

	if progress.EvaluationFirst || chains.ShadowingEvaluation == nil {
		chains.ShadowingEvaluation = h.evaluationChain(s, r.data.Problem, answer)
		s.UpdateShadowing(func(p *session.ShadowingProgress) { p.EvaluationFirst = false })
	}
	evaluation, err := h.evaluate(ctx, s, chains.ShadowingEvaluation, r.data.Problem, answer)
	if err != nil {
		return err
	}
	r.data.Evaluation = evaluation

	s.Append(session.Message{Role: session.RoleAssistant, Content: evaluation}, session.Separator)
	s.UpdateShadowing(func(p *session.ShadowingProgress) {
		p.Active = true
		p.Count++
	})
	return nil
}

// Dictation alternates between two invocations. With the chat gate closed
// it plays a new sentence and opens the gate; with the gate open it
// evaluates the typed answer and closes it again.
func (h *Handlers) Dictation(ctx context.Context, s *session.Session) error {
	progress := s.Dictation()
	if progress.ChatOpen && s.State() == session.StateDictationAwaitingText {
		return h.dictationAnswer(ctx, s, progress)
	}
	return h.dictationProblem(ctx, s, progress)
}

func (h *Handlers) dictationProblem(ctx context.Context, s *session.Session, progress session.DictationProgress) (err error) {
	r := h.begin(s, session.ModeDictation, progress.Count+1)
	defer func() {
		// Only failures are rounds worth recording here; the round is
		// recorded once the answer is evaluated.
		if err != nil {
			h.finish(ctx, s, r, err)
		} else {
			s.SetActivity("")
		}
	}()

	chains := s.Chains()
	if progress.FirstRun || chains.DictationProblem == nil {
		chains.DictationProblem = h.problemChain(s)
		s.UpdateDictation(func(d *session.DictationProgress) { d.FirstRun = false })
	}

	if err := s.Transition(session.StateDictationAwaitingProblem); err != nil {
		return err
	}

	problem, err := h.problem(ctx, s, chains.DictationProblem)
	if err != nil {
		toIdle(s)
		return err
	}
	r.data.Problem = problem

	s.UpdateDictation(func(d *session.DictationProgress) {
		d.ChatOpen = true
		d.Active = false
		d.ChatMessage = ""
	})
	return s.Transition(session.StateDictationAwaitingText)
}

func (h *Handlers) dictationAnswer(ctx context.Context, s *session.Session, progress session.DictationProgress) (err error) {
	answer := strings.TrimSpace(progress.ChatMessage)
	if answer == "" {
		return ErrEmptyChatMessage
	}
	if utf8.RuneCountInString(answer) < MinAnswerLength {
		return ErrAnswerTooShort
	}

	r := h.begin(s, session.ModeDictation, progress.Count+1)
	r.data.Problem = s.Problem()
	r.data.Answer = answer
	defer func() { h.finish(ctx, s, r, err) }()

	if err := s.Transition(session.StateDictationEvaluating); err != nil {
		return err
	}

	chains := s.Chains()
	if progress.EvaluationFirst || chains.DictationEvaluation == nil {
		chains.DictationEvaluation = h.evaluationChain(s, r.data.Problem, answer)
		s.UpdateDictation(func(d *session.DictationProgress) { d.EvaluationFirst = false })
	}
	evaluation, err := h.evaluate(ctx, s, chains.DictationEvaluation, r.data.Problem, answer)
	if err != nil {
		// Keep the gate open so the same answer can be submitted again.
		_ = s.Transition(session.StateDictationAwaitingText)
		return err
	}
	r.data.Evaluation = evaluation

	s.Append(
		session.Message{Role: session.RoleAssistant, Content: r.data.Problem},
		session.Message{Role: session.RoleUser, Content: answer},
		session.Message{Role: session.RoleAssistant, Content: evaluation},
		session.Separator,
	)
	s.UpdateDictation(func(d *session.DictationProgress) {
		d.Active = true
		d.ChatMessage = ""
		d.Count++
		d.ChatOpen = false
	})
	return s.Transition(session.StateIdle)
}

func (h *Handlers) problemChain(s *session.Session) *conversation.Chain {
	return conversation.NewChain(h.deps.LLM, createProblemPrompt, s.Memory(),
		conversation.WithPurpose(llm.PurposeProblem),
		conversation.WithTemperature(h.deps.Temperature),
		conversation.WithSchema(problemSchema, "sentence"))
}

func (h *Handlers) evaluationChain(s *session.Session, problem, answer string) *conversation.Chain {
	return conversation.NewChain(h.deps.LLM, evaluationSystem(problem, answer), s.Memory(),
		conversation.WithPurpose(llm.PurposeEvaluation),
		conversation.WithTemperature(h.deps.Temperature))
}

// problem generates a sentence, stores it on the session and speaks it.
func (h *Handlers) problem(ctx context.Context, s *session.Session, chain *conversation.Chain) (string, error) {
	s.SetActivity("問題を生成中…")
	done := h.metrics.TimeStage(ctx, observe.StageProblem)
	problem, err := chain.Predict(ctx, problemInput)
	done(err)
	if err != nil {
		return "", fmt.Errorf("generating problem: %w", err)
	}
	s.SetProblem(problem)

	if err := h.speak(ctx, s, problem); err != nil {
		return "", err
	}
	return problem, nil
}

func (h *Handlers) evaluate(ctx context.Context, s *session.Session, chain *conversation.Chain, problem, answer string) (string, error) {
	s.SetActivity("評価中…")
	done := h.metrics.TimeStage(ctx, observe.StageEvaluate)
	evaluation, err := chain.Predict(ctx, evaluationInput(problem, answer))
	done(err)
	if err != nil {
		return "", fmt.Errorf("evaluating answer: %w", err)
	}
	return evaluation, nil
}

// listen records and transcribes one answer.
func (h *Handlers) listen(ctx context.Context, s *session.Session) (string, error) {
	s.SetActivity("録音中… 話し終えたら3秒間お待ちください")
	done := h.metrics.TimeStage(ctx, observe.StageRecord)
	path, err := h.deps.Recorder.Record(ctx)
	done(err)
	if err != nil {
		return "", fmt.Errorf("recording answer: %w", err)
	}

	s.SetActivity("音声を認識中…")
	done = h.metrics.TimeStage(ctx, observe.StageTranscribe)
	text, err := h.deps.Transcriber.Transcribe(ctx, path)
	done(err)
	if err != nil {
		return "", fmt.Errorf("transcribing answer: %w", err)
	}

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinAnswerLength {
		return "", ErrAnswerTooShort
	}
	return text, nil
}

// speak synthesizes text in the session's voice and plays it at the
// session's speed.
func (h *Handlers) speak(ctx context.Context, s *session.Session, text string) error {
	s.SetActivity("音声を生成中…")
	done := h.metrics.TimeStage(ctx, observe.StageSynthesize)
	mp3, err := h.deps.Synthesizer.Synthesize(ctx, text, s.Voice().TTSVoice())
	done(err)
	if err != nil {
		return fmt.Errorf("synthesizing speech: %w", err)
	}

	out := h.deps.OutputPath(h.deps.Now())
	done = h.metrics.TimeStage(ctx, observe.StageTranscode)
	err = h.deps.Transcoder.SaveMP3AsWAV(ctx, mp3, out)
	done(err)
	if err != nil {
		return fmt.Errorf("converting speech: %w", err)
	}

	s.SetActivity("音声を再生中…")
	done = h.metrics.TimeStage(ctx, observe.StagePlay)
	err = h.deps.Player.Play(ctx, out, s.Speed())
	done(err)
	if err != nil {
		return fmt.Errorf("playing speech: %w", err)
	}
	return nil
}
