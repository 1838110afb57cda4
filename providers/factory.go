package providers

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/config"
	"github.com/BaSui01/agenthub/llm"
	"github.com/BaSui01/agenthub/types"
)

// Default API roots per provider family.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
	LocalBaseURL  = "http://localhost:11434/v1"
)

// New builds a provider for an agent's LLM configuration. Fields the agent
// leaves empty fall back to the service-level defaults.
func New(agentLLM types.LLMConfig, defaults config.LLMConfig, logger *zap.Logger) (llm.Provider, error) {
	provider := agentLLM.Provider
	if provider == "" {
		provider = types.LLMProvider(defaults.DefaultProvider)
	}

	apiKey := agentLLM.APIKey
	if apiKey == "" {
		apiKey = defaults.APIKey
	}

	baseURL := agentLLM.BaseURL
	if baseURL == "" {
		baseURL = defaults.BaseURL
	}

	switch provider {
	case types.ProviderGroq:
		if baseURL == "" {
			baseURL = GroqBaseURL
		}
	case types.ProviderOpenAI:
		if baseURL == "" {
			baseURL = OpenAIBaseURL
		}
	case types.ProviderLocal:
		if baseURL == "" {
			baseURL = LocalBaseURL
		}
	case types.ProviderOpenAICompatible:
		if baseURL == "" {
			return nil, types.NewError(types.ErrInvalidRequest,
				"openai_compatible provider requires a base_url")
		}
	default:
		return nil, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("unknown llm provider: %s", provider))
	}

	return NewOpenAICompat(Config{
		Name:       string(provider),
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Timeout:    defaults.Timeout,
		MaxRetries: defaults.MaxRetries,
	}, logger), nil
}
