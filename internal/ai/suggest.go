package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	suggestSystemPrompt = "You are an expert productivity assistant."
	suggestUserPrompt   = "You are an expert productivity assistant. Based on the following context, suggest 3 actionable, specific, and creative tasks for the user.\nContext: %s"

	suggestMaxTokens   = 200
	suggestTemperature = 0.7
)

// Suggester asks an OpenAI chat model for task ideas.
type Suggester struct {
	model llms.Model
}

// NewSuggester builds an OpenAI-backed suggester. An empty apiKey yields a
// suggester whose calls fail with ErrMissingCredentials.
func NewSuggester(apiKey, modelName string) (*Suggester, error) {
	if apiKey == "" {
		return &Suggester{}, nil
	}
	model, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return &Suggester{model: model}, nil
}

// NewSuggesterWithModel wraps an existing model.
func NewSuggesterWithModel(model llms.Model) *Suggester {
	return &Suggester{model: model}
}

// Suggest returns the model's trimmed answer for the given context.
func (s *Suggester) Suggest(ctx context.Context, taskContext string) (string, error) {
	if s == nil || s.model == nil {
		return "", ErrMissingCredentials
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, suggestSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(suggestUserPrompt, taskContext)),
	}
	resp, err := s.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(suggestMaxTokens),
		llms.WithTemperature(suggestTemperature),
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("ai: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
