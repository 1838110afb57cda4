package api

import (
	"github.com/BaSui01/agenthub/api/dto"
	"github.com/BaSui01/agenthub/types"
)

// The DTO definitions live in api/dto so that api/handlers can share them
// without importing this package (which imports api/handlers for the router).
// The aliases below keep the api package's exported surface unchanged.

// =============================================================================
// Agent DTOs
// =============================================================================

// AgentSummary is the list-view projection of an agent.
type AgentSummary = dto.AgentSummary

// DuplicateRequest copies an existing agent under a new name.
type DuplicateRequest = dto.DuplicateRequest

// =============================================================================
// Execution DTOs
// =============================================================================

// ExecuteRequest runs one agent turn.
type ExecuteRequest = dto.ExecuteRequest

// ExecuteResponse reports the outcome of one agent turn.
type ExecuteResponse = dto.ExecuteResponse

// NewExecuteResponse projects an execution record into the API shape.
func NewExecuteResponse(exec *types.Execution) ExecuteResponse {
	return dto.NewExecuteResponse(exec)
}

// =============================================================================
// Tool DTOs
// =============================================================================

// ToolInfo describes one invokable tool.
type ToolInfo = dto.ToolInfo

// ToolExecuteRequest invokes a builtin tool directly.
type ToolExecuteRequest = dto.ToolExecuteRequest

// ToolExecuteResult reports a direct tool invocation. Tool failures are
// carried in the body, not as HTTP errors.
type ToolExecuteResult = dto.ToolExecuteResult

// =============================================================================
// Memory DTOs
// =============================================================================

// MemoryQueryRequest fetches stored conversation turns.
type MemoryQueryRequest = dto.MemoryQueryRequest

// MemoryClearRequest wipes an agent's memory. Confirm must be true.
type MemoryClearRequest = dto.MemoryClearRequest

// =============================================================================
// MCP DTOs
// =============================================================================

// ToolCallRequest proxies a tool invocation to an MCP server.
type ToolCallRequest = dto.ToolCallRequest

// ToolCallResponse wraps the proxied result.
type ToolCallResponse = dto.ToolCallResponse

// =============================================================================
// Service DTOs
// =============================================================================

// VersionInfo reports build identification.
type VersionInfo = dto.VersionInfo
