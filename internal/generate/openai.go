package generate

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates answers via the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI provider. An empty model selects the default.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClient(apiKey), model: model}
}

// NewOpenAIWithBaseURL creates a provider pointing at a custom API base URL (for testing).
func NewOpenAIWithBaseURL(apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

// Name implements Generator.
func (o *OpenAI) Name() string { return "openai" }

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
