package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/config"
	"github.com/BaSui01/agenthub/types"
)

func TestFactoryDefaults(t *testing.T) {
	defaults := config.DefaultLLMConfig()
	defaults.APIKey = "sk-default"

	tests := []struct {
		name     string
		llm      types.LLMConfig
		wantName string
		wantURL  string
	}{
		{
			name:     "groq default url",
			llm:      types.LLMConfig{Provider: types.ProviderGroq},
			wantName: "groq",
			wantURL:  GroqBaseURL,
		},
		{
			name:     "openai default url",
			llm:      types.LLMConfig{Provider: types.ProviderOpenAI},
			wantName: "openai",
			wantURL:  OpenAIBaseURL,
		},
		{
			name:     "local default url",
			llm:      types.LLMConfig{Provider: types.ProviderLocal},
			wantName: "local",
			wantURL:  LocalBaseURL,
		},
		{
			name: "explicit base url wins",
			llm: types.LLMConfig{
				Provider: types.ProviderOpenAICompatible,
				BaseURL:  "https://gateway.internal/v1",
			},
			wantName: "openai_compatible",
			wantURL:  "https://gateway.internal/v1",
		},
		{
			name:     "empty provider falls back to service default",
			llm:      types.LLMConfig{},
			wantName: "groq",
			wantURL:  GroqBaseURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.llm, defaults, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())

			compat, ok := p.(*OpenAICompatProvider)
			require.True(t, ok)
			assert.Equal(t, tt.wantURL, compat.cfg.BaseURL)
			assert.Equal(t, "sk-default", compat.cfg.APIKey)
		})
	}
}

func TestFactoryRejectsBadConfig(t *testing.T) {
	defaults := config.DefaultLLMConfig()

	_, err := New(types.LLMConfig{Provider: types.ProviderOpenAICompatible}, defaults, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))

	_, err = New(types.LLMConfig{Provider: "bedrock"}, defaults, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}

func TestFactoryAgentOverrides(t *testing.T) {
	defaults := config.DefaultLLMConfig()
	defaults.APIKey = "sk-default"

	p, err := New(types.LLMConfig{
		Provider: types.ProviderGroq,
		APIKey:   "sk-agent",
		BaseURL:  "https://proxy.internal/openai/v1",
	}, defaults, zap.NewNop())
	require.NoError(t, err)

	compat := p.(*OpenAICompatProvider)
	assert.Equal(t, "sk-agent", compat.cfg.APIKey)
	assert.Equal(t, "https://proxy.internal/openai/v1", compat.cfg.BaseURL)
}
