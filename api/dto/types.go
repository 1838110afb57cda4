package dto

import (
	"time"

	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Agent DTOs
// =============================================================================

// AgentSummary is the list-view projection of an agent.
type AgentSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	AgentType   types.AgentType `json:"agent_type"`
	Provider    string          `json:"provider"`
	Model       string          `json:"model"`
	Tools       int             `json:"tools"`
	MCPServers  []string        `json:"mcp_servers,omitempty"`
	Memory      string          `json:"memory"`
}

// DuplicateRequest copies an existing agent under a new name.
type DuplicateRequest struct {
	Source  string `json:"source"`
	NewName string `json:"new_name"`
}

// =============================================================================
// Execution DTOs
// =============================================================================

// ExecuteRequest runs one agent turn.
type ExecuteRequest struct {
	Input string `json:"input"`
}

// ExecuteResponse reports the outcome of one agent turn.
type ExecuteResponse struct {
	ExecutionID string                 `json:"execution_id"`
	AgentName   string                 `json:"agent_name"`
	Output      string                 `json:"output,omitempty"`
	Success     bool                   `json:"success"`
	Error       string                 `json:"error,omitempty"`
	Iterations  int                    `json:"iterations"`
	Tokens      int                    `json:"tokens"`
	ToolCalls   []types.ToolCallRecord `json:"tool_calls,omitempty"`
	DurationMs  float64                `json:"duration_ms"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
}

// NewExecuteResponse projects an execution record into the API shape.
func NewExecuteResponse(exec *types.Execution) ExecuteResponse {
	return ExecuteResponse{
		ExecutionID: exec.ID,
		AgentName:   exec.AgentName,
		Output:      exec.Output,
		Success:     exec.Success,
		Error:       exec.Error,
		Iterations:  exec.Iterations,
		Tokens:      exec.Tokens,
		ToolCalls:   exec.ToolCalls,
		DurationMs:  float64(exec.Duration()) / float64(time.Millisecond),
		StartedAt:   exec.StartedAt,
		FinishedAt:  exec.FinishedAt,
	}
}

// =============================================================================
// Tool DTOs
// =============================================================================

// ToolInfo describes one invokable tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"` // builtin or mcp
	Server      string `json:"server,omitempty"`
}

// ToolExecuteRequest invokes a builtin tool directly.
type ToolExecuteRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// ToolExecuteResult reports a direct tool invocation. Tool failures are
// carried in the body, not as HTTP errors.
type ToolExecuteResult struct {
	Tool       string  `json:"tool"`
	Success    bool    `json:"success"`
	Result     string  `json:"result,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// =============================================================================
// Memory DTOs
// =============================================================================

// MemoryQueryRequest fetches stored conversation turns.
type MemoryQueryRequest struct {
	Limit  int    `json:"limit,omitempty"`
	Search string `json:"search,omitempty"`
}

// MemoryClearRequest wipes an agent's memory. Confirm must be true.
type MemoryClearRequest struct {
	Confirm bool `json:"confirm"`
}

// =============================================================================
// MCP DTOs
// =============================================================================

// ToolCallRequest proxies a tool invocation to an MCP server.
type ToolCallRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// ToolCallResponse wraps the proxied result.
type ToolCallResponse struct {
	Server string `json:"server"`
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// =============================================================================
// Service DTOs
// =============================================================================

// VersionInfo reports build identification.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}
