package agent

import (
	"context"

	"github.com/BaSui01/agenthub/llm"
	"github.com/BaSui01/agenthub/types"
)

// ProviderSummarizer condenses conversation history with a chat model.
// It implements memory.Summarizer.
type ProviderSummarizer struct {
	provider llm.Provider
	model    string
}

// NewProviderSummarizer creates a summarizer backed by the given provider.
func NewProviderSummarizer(provider llm.Provider, model string) *ProviderSummarizer {
	return &ProviderSummarizer{provider: provider, model: model}
}

// Summarize asks the model to condense text under the given instruction.
func (s *ProviderSummarizer) Summarize(ctx context.Context, prompt, text string) (string, error) {
	resp, err := s.provider.Completion(ctx, &llm.ChatRequest{
		Model: s.model,
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: prompt},
			{Role: types.RoleUser, Content: text},
		},
		Temperature: 0.2,
		MaxTokens:   512,
	})
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}
