package types

import (
	"fmt"
	"strings"
	"time"
)

// AgentType selects the execution strategy for an agent.
type AgentType string

const (
	AgentTypeReAct          AgentType = "react"
	AgentTypeConversational AgentType = "conversational"
	AgentTypeToolCalling    AgentType = "tool_calling"
	AgentTypePlanning       AgentType = "planning"
)

// LLMProvider identifies the chat backend family.
type LLMProvider string

const (
	ProviderGroq             LLMProvider = "groq"
	ProviderOpenAI           LLMProvider = "openai"
	ProviderOpenAICompatible LLMProvider = "openai_compatible"
	ProviderLocal            LLMProvider = "local"
)

// ToolType classifies tools available to agents.
type ToolType string

const (
	ToolTypeCalculator  ToolType = "calculator"
	ToolTypeHTTPRequest ToolType = "http_request"
	ToolTypeFileReader  ToolType = "file_reader"
	ToolTypeMCP         ToolType = "mcp"
	ToolTypeCustom      ToolType = "custom"
)

// MemoryType selects the memory policy for an agent.
type MemoryType string

const (
	MemoryNone    MemoryType = "none"
	MemoryBuffer  MemoryType = "buffer"
	MemorySummary MemoryType = "summary"
)

// LLMConfig configures the language model backend of an agent.
type LLMConfig struct {
	Provider    LLMProvider `json:"provider" yaml:"provider"`
	Model       string      `json:"model" yaml:"model"`
	APIKey      string      `json:"api_key,omitempty" yaml:"api_key"`
	BaseURL     string      `json:"base_url,omitempty" yaml:"base_url"`
	Temperature float32     `json:"temperature" yaml:"temperature"`
	MaxTokens   int         `json:"max_tokens" yaml:"max_tokens"`
	TopP        float32     `json:"top_p" yaml:"top_p"`
}

// DefaultLLMConfig returns the default model configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    ProviderGroq,
		Model:       "llama3-8b-8192",
		Temperature: 0.7,
		MaxTokens:   1024,
		TopP:        0.9,
	}
}

// ToolConfig configures a single tool available to an agent.
type ToolConfig struct {
	Name        string         `json:"name" yaml:"name"`
	Type        ToolType       `json:"type" yaml:"type"`
	Description string         `json:"description" yaml:"description"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	Config      map[string]any `json:"config,omitempty" yaml:"config"`

	// MCP-backed tools reference a registered server and a remote tool name.
	MCPServer   string `json:"mcp_server,omitempty" yaml:"mcp_server"`
	MCPToolName string `json:"mcp_tool_name,omitempty" yaml:"mcp_tool_name"`
}

// MemoryConfig configures the memory policy of an agent.
type MemoryConfig struct {
	Type          MemoryType `json:"type" yaml:"type"`
	MaxTokens     int        `json:"max_tokens" yaml:"max_tokens"`
	SummaryPrompt string     `json:"summary_prompt,omitempty" yaml:"summary_prompt"`
}

// DefaultMemoryConfig returns the default buffer memory configuration.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{Type: MemoryBuffer, MaxTokens: 2000}
}

// AgentConfig is the full configuration of a stored agent.
type AgentConfig struct {
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description" yaml:"description"`
	AgentType     AgentType      `json:"agent_type" yaml:"agent_type"`
	LLM           LLMConfig      `json:"llm" yaml:"llm"`
	SystemPrompt  string         `json:"system_prompt" yaml:"system_prompt"`
	Tools         []ToolConfig   `json:"tools" yaml:"tools"`
	MCPServers    []string       `json:"mcp_servers,omitempty" yaml:"mcp_servers"`
	Memory        MemoryConfig   `json:"memory" yaml:"memory"`
	MaxIterations int            `json:"max_iterations" yaml:"max_iterations"`
	Timeout       time.Duration  `json:"timeout" yaml:"timeout"`
	Metadata      map[string]any `json:"metadata,omitempty" yaml:"metadata"`
}

// DefaultAgentConfig returns a minimal usable agent configuration.
func DefaultAgentConfig(name string) AgentConfig {
	return AgentConfig{
		Name:          name,
		Description:   "Default conversational agent with basic tools",
		AgentType:     AgentTypeReAct,
		LLM:           DefaultLLMConfig(),
		SystemPrompt:  "You are a helpful AI assistant. Use the available tools to help the user with their requests.",
		Tools: []ToolConfig{
			{
				Name:        "calculator",
				Type:        ToolTypeCalculator,
				Description: "Perform mathematical calculations",
				Enabled:     true,
			},
		},
		Memory:        DefaultMemoryConfig(),
		MaxIterations: 10,
		Timeout:       5 * time.Minute,
	}
}

// Validate checks the agent configuration for internal consistency.
func (c *AgentConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewError(ErrInvalidRequest, "agent name is required")
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		return NewError(ErrInvalidRequest, "system prompt cannot be empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return NewError(ErrInvalidRequest, "temperature must be between 0 and 2")
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		return NewError(ErrInvalidRequest, "top_p must be between 0 and 1")
	}
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		return NewError(ErrInvalidRequest, "max_tokens must be between 1 and 8192")
	}
	if c.MaxIterations < 1 || c.MaxIterations > 50 {
		return NewError(ErrInvalidRequest, "max_iterations must be between 1 and 50")
	}
	if c.Timeout < 30*time.Second || c.Timeout > 30*time.Minute {
		return NewError(ErrInvalidRequest, "timeout must be between 30s and 30m")
	}
	if c.Memory.Type != "" && c.Memory.Type != MemoryNone {
		if c.Memory.MaxTokens < 100 || c.Memory.MaxTokens > 10000 {
			return NewError(ErrInvalidRequest, "memory max_tokens must be between 100 and 10000")
		}
	}

	seen := make(map[string]struct{}, len(c.Tools))
	for _, tool := range c.Tools {
		if _, dup := seen[tool.Name]; dup {
			return NewError(ErrInvalidRequest, fmt.Sprintf("duplicate tool name: %s", tool.Name))
		}
		seen[tool.Name] = struct{}{}
	}

	return nil
}

// ExpandEnv substitutes ${VAR} references in the string fields of the
// configuration. Unknown variables are left verbatim.
func (c *AgentConfig) ExpandEnv() {
	c.SystemPrompt = ExpandEnvString(c.SystemPrompt)
	c.LLM.APIKey = ExpandEnvString(c.LLM.APIKey)
	c.LLM.BaseURL = ExpandEnvString(c.LLM.BaseURL)
	for i := range c.Tools {
		for k, v := range c.Tools[i].Config {
			if s, ok := v.(string); ok {
				c.Tools[i].Config[k] = ExpandEnvString(s)
			}
		}
	}
}
