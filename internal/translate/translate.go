// Package translate renders English practice text into Japanese.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/eikaiwa/internal/llm"
)

const instruction = "You are a translator. Translate the following text into natural Japanese. Reply with the translation only."

// errorPrefix starts every failure message shown in place of a translation.
const errorPrefix = "翻訳中にエラーが発生しました: "

var errEmptyInput = errors.New("翻訳するテキストがありません")

// Translator turns English text into Japanese.
type Translator struct {
	provider llm.Provider
}

// New creates a Translator.
func New(p llm.Provider) *Translator {
	return &Translator{provider: p}
}

// Translate returns the Japanese rendering of text. It never fails: any
// error, including empty input or an empty reply, comes back as a
// readable message so the result is never empty.
func (t *Translator) Translate(ctx context.Context, text string) string {
	out, err := t.translate(ctx, text)
	if err != nil {
		return errorPrefix + err.Error()
	}
	return out
}

// IsError reports whether s is a failure message from Translate.
func IsError(s string) bool {
	return strings.HasPrefix(s, errorPrefix)
}

func (t *Translator) translate(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", errEmptyInput
	}
	resp, err := t.provider.Generate(llm.WithPurpose(ctx, llm.PurposeTranslation), llm.Request{
		System:      instruction,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: text}},
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	out := resp.Text()
	if out == "" {
		return "", fmt.Errorf("empty reply from %s", t.provider.ModelID())
	}
	return out, nil
}
