package scoring

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Judge decides whether a free-form answer matches the reference. Verdicts
// are one of "correct", "partially correct", or "incorrect".
type Judge interface {
	Judge(ctx context.Context, question, reference, answer string) (string, error)
}

const judgePrompt = `Help a teacher to grade the answer of a student given a question. Keep in mind that the student may use different phrasing or wording to answer the question. The goal is to evaluate whether the answer is semantically equivalent to the reference answer.

question: %s
reference answer: %s
all the string 'N/A' that you see is a special sequence that means 'not achievable'
student answer: %s

Conclude the judgement by "correct", "incorrect", or "partially correct". Reply with one of those three words only.`

// OpenAIJudge grades answers with a chat-completion model.
type OpenAIJudge struct {
	client *openai.Client
	model  string
}

// NewOpenAIJudge creates a judge. An empty baseURL targets the public API;
// an empty model falls back to gpt-4o.
func NewOpenAIJudge(apiKey, baseURL, model string) *OpenAIJudge {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIJudge{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

var _ Judge = (*OpenAIJudge)(nil)

// Judge submits the grading prompt and returns the model's verdict verbatim.
func (j *OpenAIJudge) Judge(ctx context.Context, question, reference, answer string) (string, error) {
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       j.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(judgePrompt, question, reference, answer),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("judge completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("judge returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
