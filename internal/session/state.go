package session

import (
	"errors"
	"fmt"
	"slices"
)

// ErrIllegalTransition is returned when a state change is not in the
// transition table.
var ErrIllegalTransition = errors.New("illegal state transition")

// State is where the session is within a practice round.
type State int

const (
	StateIdle                     State = iota // no round running
	StateBasicConversation                     // recording, replying, speaking
	StateShadowingAwaitingProblem              // generating and playing a sentence
	StateShadowingAwaitingSpeech               // recording the learner's repetition
	StateShadowingEvaluating                   // comparing sentence and repetition
	StateDictationAwaitingProblem              // generating and playing a sentence
	StateDictationAwaitingText                 // chat input open for the typed answer
	StateDictationEvaluating                   // comparing sentence and typed answer
)

var stateNames = map[State]string{
	StateIdle:                     "idle",
	StateBasicConversation:        "basic_conversation",
	StateShadowingAwaitingProblem: "shadowing_awaiting_problem",
	StateShadowingAwaitingSpeech:  "shadowing_awaiting_speech",
	StateShadowingEvaluating:      "shadowing_evaluating",
	StateDictationAwaitingProblem: "dictation_awaiting_problem",
	StateDictationAwaitingText:    "dictation_awaiting_text",
	StateDictationEvaluating:      "dictation_evaluating",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the states reachable from each state. Every
// in-round state can fall back to idle when a round fails or is cancelled;
// a failed dictation evaluation returns to the open chat input instead.
var transitions = map[State][]State{
	StateIdle: {
		StateBasicConversation,
		StateShadowingAwaitingProblem,
		StateShadowingAwaitingSpeech,
		StateDictationAwaitingProblem,
	},
	StateBasicConversation:        {StateIdle},
	StateShadowingAwaitingProblem: {StateShadowingAwaitingSpeech, StateIdle},
	StateShadowingAwaitingSpeech:  {StateShadowingEvaluating, StateIdle},
	StateShadowingEvaluating:      {StateIdle},
	StateDictationAwaitingProblem: {StateDictationAwaitingText, StateIdle},
	StateDictationAwaitingText:    {StateDictationEvaluating, StateIdle},
	StateDictationEvaluating:      {StateIdle, StateDictationAwaitingText},
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Busy reports whether a round is in flight in s. The open dictation chat
// input is a resting state, not a running round.
func (s State) Busy() bool {
	return s != StateIdle && s != StateDictationAwaitingText
}
