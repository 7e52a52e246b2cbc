// Package session holds the state of one practice session: the message
// history, the learner's selections, the current round's state and each
// mode's progress. A Session is an explicit value handed to the mode
// handlers and the UI; there is no package-level state.
package session

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/eikaiwa/internal/audio"
	"github.com/abhisek/eikaiwa/internal/conversation"
)

// Role identifies who a Message is from.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleOther     Role = "other" // separator after an evaluation
)

// Message is one entry of the visible history.
type Message struct {
	Role    Role
	Content string
}

// Separator ends an evaluated round in the history.
var Separator = Message{Role: RoleOther}

// ShadowingProgress tracks the shadowing mode.
type ShadowingProgress struct {
	Active            bool // a round has been evaluated; offer the next one
	Count             int
	FirstRun          bool // problem chain not built yet
	EvaluationFirst   bool // evaluation chain not built yet
	AudioInputPending bool // the sentence was played, recording still owed
}

// DictationProgress tracks the dictation mode.
type DictationProgress struct {
	Active          bool
	Count           int
	FirstRun        bool
	EvaluationFirst bool
	ChatMessage     string // typed answer awaiting evaluation
	ChatOpen        bool   // the chat input accepts an answer
}

// Chains are the LLM conversations a session owns. They are built lazily
// by the handlers, once per session.
type Chains struct {
	Conversation        *conversation.Chain
	ShadowingProblem    *conversation.Chain
	ShadowingEvaluation *conversation.Chain
	DictationProblem    *conversation.Chain
	DictationEvaluation *conversation.Chain
}

// Session is safe for concurrent use: a running round mutates it while the
// UI reads Snapshots.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	messages  []Message
	mode      Mode
	prevMode  Mode
	speed     float64
	level     Level
	voice     Voice
	started   bool
	state     State
	shadowing ShadowingProgress
	dictation DictationProgress
	problem   string
	activity  string
	chains    Chains
	memory    *conversation.Memory
}

// New creates a session in basic conversation mode at normal speed. The
// memory is shared by every chain the session builds.
func New(memory *conversation.Memory) *Session {
	if memory == nil {
		memory = conversation.NewMemory(conversation.DefaultMaxTokens, nil)
	}
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		mode:      ModeBasic,
		prevMode:  ModeBasic,
		speed:     audio.DefaultSpeed,
		level:     LevelBeginner,
		voice:     VoiceFemale,
		state:     StateIdle,
		shadowing: ShadowingProgress{FirstRun: true, EvaluationFirst: true},
		dictation: DictationProgress{FirstRun: true, EvaluationFirst: true},
		memory:    memory,
	}
}

// Snapshot is a copy of the session for rendering.
type Snapshot struct {
	ID        string
	Messages  []Message
	Mode      Mode
	Speed     float64
	Level     Level
	Voice     Voice
	Started   bool
	State     State
	Shadowing ShadowingProgress
	Dictation DictationProgress
	Problem   string
	Activity  string
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:        s.ID,
		Messages:  slices.Clone(s.messages),
		Mode:      s.mode,
		Speed:     s.speed,
		Level:     s.level,
		Voice:     s.voice,
		Started:   s.started,
		State:     s.state,
		Shadowing: s.shadowing,
		Dictation: s.dictation,
		Problem:   s.problem,
		Activity:  s.activity,
	}
}

// Messages returns a copy of the history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Append adds messages to the end of the history.
func (s *Session) Append(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

// State returns the current round state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves to the given state if the table allows it.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state, to)
	}
	s.state = to
	return nil
}

// Mode returns the selected mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode selects a mode. Changing mode stops the session, closes the chat
// input, returns to idle and resets the newly selected mode's count and
// the other modes' active flags. It reports whether the mode changed.
func (s *Session) SetMode(m Mode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prevMode = s.mode
	s.mode = m
	if m == s.prevMode {
		return false
	}

	s.started = false
	s.dictation.ChatOpen = false
	s.state = StateIdle

	switch m {
	case ModeBasic:
		s.dictation.Active = false
		s.shadowing.Active = false
	case ModeShadowing:
		s.dictation.Active = false
		s.shadowing.Count = 0
		// Another mode may have replaced the problem a pending capture was for.
		s.shadowing.AudioInputPending = false
	case ModeDictation:
		s.shadowing.Active = false
		s.dictation.Count = 0
	}
	return true
}

// Speed returns the playback speed.
func (s *Session) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// SetSpeed selects one of audio.Speeds.
func (s *Session) SetSpeed(v float64) error {
	if !audio.ValidSpeed(v) {
		return fmt.Errorf("unsupported playback speed %v", v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = v
	return nil
}

// SetLevel records the learner's level.
func (s *Session) SetLevel(l Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = l
}

// Voice returns the selected speaker.
func (s *Session) Voice() Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// SetVoice selects the speaker.
func (s *Session) SetVoice(v Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = v
}

// Started reports whether the learner pressed start in the current mode.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// SetStarted sets the start toggle.
func (s *Session) SetStarted(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = v
}

// Problem returns the current practice sentence.
func (s *Session) Problem() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.problem
}

// SetProblem replaces the current practice sentence.
func (s *Session) SetProblem(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.problem = p
}

// SetActivity describes what the running round is doing, for display.
func (s *Session) SetActivity(a string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = a
}

// Shadowing returns the shadowing progress.
func (s *Session) Shadowing() ShadowingProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shadowing
}

// UpdateShadowing applies fn to the shadowing progress under the lock.
func (s *Session) UpdateShadowing(fn func(*ShadowingProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.shadowing)
}

// Dictation returns the dictation progress.
func (s *Session) Dictation() DictationProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dictation
}

// UpdateDictation applies fn to the dictation progress under the lock.
func (s *Session) UpdateDictation(fn func(*DictationProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.dictation)
}

// SetChatMessage stores the typed dictation answer.
func (s *Session) SetChatMessage(msg string) {
	s.UpdateDictation(func(d *DictationProgress) { d.ChatMessage = msg })
}

// Memory returns the conversation memory shared by the session's chains.
func (s *Session) Memory() *conversation.Memory {
	return s.memory
}

// Chains returns the session's chains. Only the running round may modify
// them.
func (s *Session) Chains() *Chains {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &s.chains
}
