package session

import "slices"

// Mode is a practice mode. Exactly one is selected at a time.
type Mode int

const (
	ModeBasic     Mode = iota // free voice conversation
	ModeShadowing             // repeat a spoken sentence aloud
	ModeDictation             // type a spoken sentence
)

// Modes lists the selectable modes in display order.
var Modes = []Mode{ModeBasic, ModeShadowing, ModeDictation}

var modeLabels = map[Mode]string{
	ModeBasic:     "日常英会話",
	ModeShadowing: "シャドーイング",
	ModeDictation: "ディクテーション",
}

var modeDescriptions = map[Mode]string{
	ModeBasic:     "AIと音声会話を行い、適宜文法添削を受けることができます。",
	ModeShadowing: "AIがランダムな英文を読み上げ、それを真似て発話。AIが照合・評価を行います。",
	ModeDictation: "AIがランダムな英文を読み上げ、チャット欄に入力。AIが照合・評価を行います。",
}

func (m Mode) String() string {
	if s, ok := modeLabels[m]; ok {
		return s
	}
	return "unknown"
}

// Key is the ASCII name used in events and metric labels.
func (m Mode) Key() string {
	switch m {
	case ModeBasic:
		return "basic"
	case ModeShadowing:
		return "shadowing"
	case ModeDictation:
		return "dictation"
	}
	return "unknown"
}

// Description is the one-line explanation shown to the learner.
func (m Mode) Description() string {
	return modeDescriptions[m]
}

// ParseMode resolves a mode by its label.
func ParseMode(label string) (Mode, bool) {
	for m, l := range modeLabels {
		if l == label {
			return m, true
		}
	}
	return 0, false
}

// Level is the learner's self-reported English level. It is collected and
// shown but no prompt depends on it yet.
type Level int

const (
	LevelBeginner Level = iota
	LevelIntermediate
	LevelAdvanced
)

// Levels lists the selectable levels in display order.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

func (l Level) String() string {
	switch l {
	case LevelBeginner:
		return "初級者"
	case LevelIntermediate:
		return "中級者"
	case LevelAdvanced:
		return "上級者"
	}
	return "unknown"
}

// Voice is the speaker used for synthesized speech.
type Voice int

const (
	VoiceFemale Voice = iota
	VoiceMale
)

// Voices lists the selectable voices in display order.
var Voices = []Voice{VoiceMale, VoiceFemale}

func (v Voice) String() string {
	if v == VoiceMale {
		return "男性"
	}
	return "女性"
}

// TTSVoice is the synthesis voice name for v.
func (v Voice) TTSVoice() string {
	if v == VoiceMale {
		return "onyx"
	}
	return "nova"
}

// Next returns the element after cur in opts, wrapping around. An element
// not in opts yields the first one.
func Next[T comparable](opts []T, cur T) T {
	i := slices.Index(opts, cur)
	return opts[(i+1)%len(opts)]
}

// Prev returns the element before cur in opts, wrapping around.
func Prev[T comparable](opts []T, cur T) T {
	i := slices.Index(opts, cur)
	if i <= 0 {
		return opts[len(opts)-1]
	}
	return opts[i-1]
}
