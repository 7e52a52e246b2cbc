package practice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/abhisek/eikaiwa/internal/audio"
	"github.com/abhisek/eikaiwa/internal/llm"
	"github.com/abhisek/eikaiwa/internal/speech"
)

// MinAnswerLength is the shortest answer, in characters after trimming,
// that is worth evaluating.
const MinAnswerLength = 2

var (
	// ErrAnswerTooShort is returned for a transcribed or typed answer below
	// MinAnswerLength.
	ErrAnswerTooShort = errors.New("answer too short")

	// ErrEmptyChatMessage is returned when dictation is submitted with an
	// empty chat input.
	ErrEmptyChatMessage = errors.New("empty dictation answer")
)

// UserMessage turns a round error into the message shown to the learner.
// A cancelled round yields "".
func UserMessage(err error) string {
	if err == nil || errors.Is(err, context.Canceled) {
		return ""
	}

	var (
		tooShort  *speech.ErrAudioTooShort
		transcode *audio.TranscodeError
		rateLimit *llm.ErrRateLimit
		invalid   *llm.ErrInvalidResponse
	)
	switch {
	case errors.Is(err, audio.ErrNoAudio):
		return "音声が検出されませんでした。マイクの設定を確認してください。"
	case errors.Is(err, speech.ErrEmptyAudio):
		return "音声ファイルが空です。もう一度録音してください。"
	case errors.As(err, &tooShort):
		if tooShort.Duration > 0 {
			return fmt.Sprintf("録音時間が短すぎます（%.2f秒）。最低0.1秒以上の音声を録音してください。", tooShort.Duration.Seconds())
		}
		return "録音時間が短すぎます。最低0.1秒以上の音声を録音してください。"
	case errors.Is(err, fs.ErrNotExist):
		return "音声ファイルが見つかりません。"
	case errors.Is(err, ErrAnswerTooShort):
		return "回答を認識できませんでした。もう一度はっきりと話すか入力してください。"
	case errors.Is(err, ErrEmptyChatMessage):
		return "聞き取った英文をチャット欄に入力して送信してください。"
	case errors.As(err, &transcode):
		return fmt.Sprintf("ffmpegによる変換中にエラーが発生しました: %v", transcode.Err)
	case errors.Is(err, context.DeadlineExceeded):
		return "処理がタイムアウトしました。もう一度お試しください。"
	case errors.As(err, &rateLimit):
		return "APIのレート制限に達しました。しばらく待ってから再度お試しください。"
	case errors.As(err, &invalid):
		return "AIの応答を解釈できませんでした。もう一度お試しください。"
	}
	return fmt.Sprintf("エラーが発生しました: %v", err)
}
