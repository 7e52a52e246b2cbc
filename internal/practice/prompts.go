package practice

import (
	"fmt"

	"github.com/abhisek/eikaiwa/internal/llm"
)

const basicConversationPrompt = `You are a conversational English tutor. Engage in a natural and free-flowing conversation with the user. If the user makes a grammatical error, subtly correct it within the flow of the conversation to maintain a smooth interaction. Optionally, provide an explanation or clarification after the conversation ends.`

const createProblemPrompt = `Generate 1 sentence that reflect natural English used in daily conversations, workplace, and social settings:
- Casual conversational expressions
- Polite business language
- Friendly phrases used among friends
- Sentences with situational nuances and emotions
- Expressions reflecting cultural and regional contexts

Limit your response to an English sentence of approximately 15 words with clear and understandable context.
Do not repeat a sentence you have already given.`

// problemInput asks the problem chain for its next sentence.
const problemInput = "Give me the next sentence."

const evaluationPrompt = `あなたは英語学習の専門家です。
以下の「LLMによる問題文」と「ユーザーによる回答文」を比較し、分析してください：

【LLMによる問題文】
問題文：%s

【ユーザーによる回答文】
回答文：%s

【分析項目】
1. 単語の正確性
    - 誤った単語: 例) "I goed to the park." → "goed" は "went" に修正
    - 抜け落ちた単語: 例) "She happy." → "is" が抜けている
    - 追加された単語: 例) "I went to to the park." → "to" が余分
2. 文法的な正確性
    - 例) "He don't like it." → "He doesn't like it."
3. 文の完成度
    - 例) "Because it was raining." → 文が不完全
4. 文脈の一貫性と自然さ
    - 例) "I ate breakfast at 10 PM." → 文脈的に不自然
5. 発音やアクセントの影響（必要に応じて）
    - 例) "tree" と "three" の発音の違い

フィードバックは以下のフォーマットで日本語で提供してください：

【評価】
✓ 正確に再現できた部分
△ 改善が必要な部分
✗ 誤りがあった部分

【具体的な修正例】
- 誤り: "I goed to the park."
- 修正: "I went to the park."
- コメント: "過去形 'goed' は誤りで、正しくは 'went' です。"`

// evaluationSystem builds the evaluation instruction around the pair the
// chain is first created with.
func evaluationSystem(problem, answer string) string {
	return fmt.Sprintf(evaluationPrompt, problem, answer)
}

// evaluationInput is sent on every evaluation so later rounds are judged
// on their own pair rather than the one the chain was seeded with.
func evaluationInput(problem, answer string) string {
	return fmt.Sprintf("問題文：%s\n回答文：%s\n\nこの組み合わせを上記の形式で評価してください。", problem, answer)
}

// problemSchema asks for the sentence as structured output.
var problemSchema = &llm.Schema{
	Name:        "practice-sentence",
	Description: "One natural English sentence of about 15 words for listening practice",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sentence": map[string]any{
				"type":        "string",
				"description": "The practice sentence in English",
			},
		},
		"required":             []any{"sentence"},
		"additionalProperties": false,
	},
}
