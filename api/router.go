package api

import (
	"net/http"

	"github.com/BaSui01/agenthub/api/handlers"
)

// Handlers bundles the mounted handler set. History may be nil when
// execution history is disabled.
type Handlers struct {
	Health  *handlers.HealthHandler
	Agents  *handlers.AgentHandler
	Execute *handlers.ExecuteHandler
	Tools   *handlers.ToolsHandler
	Memory  *handlers.MemoryHandler
	MCP     *handlers.MCPHandler
	History *handlers.HistoryHandler

	Version   string
	GitCommit string
	BuildTime string
}

// NewRouter mounts all routes on a ServeMux using method patterns.
func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	// service endpoints
	mux.HandleFunc("GET /health", h.Health.HandleHealth)
	mux.HandleFunc("GET /healthz", h.Health.HandleHealth)
	mux.HandleFunc("GET /ready", h.Health.HandleReady)
	mux.HandleFunc("GET /version", h.Health.HandleVersion(h.Version, h.GitCommit, h.BuildTime))

	// agents
	mux.HandleFunc("GET /api/v1/agents", h.Agents.HandleList)
	mux.HandleFunc("POST /api/v1/agents", h.Agents.HandleCreate)
	mux.HandleFunc("POST /api/v1/agents/duplicate", h.Agents.HandleDuplicate)
	mux.HandleFunc("POST /api/v1/agents/reload", h.Agents.HandleReload)
	mux.HandleFunc("GET /api/v1/agents/{name}", h.Agents.HandleGet)
	mux.HandleFunc("PUT /api/v1/agents/{name}", h.Agents.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/agents/{name}", h.Agents.HandleDelete)
	mux.HandleFunc("GET /api/v1/agents/{name}/metrics", h.Agents.HandleMetrics)

	// execution
	mux.HandleFunc("POST /api/v1/agents/{name}/execute", h.Execute.HandleExecute)
	mux.HandleFunc("POST /api/v1/agents/{name}/execute/stream", h.Execute.HandleExecuteStream)
	mux.HandleFunc("GET /api/v1/agents/{name}/execute/ws", h.Execute.HandleExecuteWS)
	mux.HandleFunc("GET /api/v1/executions", h.Execute.HandleListExecutions)
	mux.HandleFunc("DELETE /api/v1/executions/{id}", h.Execute.HandleCancelExecution)

	// tools
	mux.HandleFunc("GET /api/v1/tools", h.Tools.HandleList)
	mux.HandleFunc("POST /api/v1/tools/{name}/execute", h.Tools.HandleExecute)

	// memory
	mux.HandleFunc("POST /api/v1/agents/{name}/memory/query", h.Memory.HandleQuery)
	mux.HandleFunc("POST /api/v1/agents/{name}/memory/clear", h.Memory.HandleClear)
	mux.HandleFunc("GET /api/v1/agents/{name}/memory/stats", h.Memory.HandleStats)

	// mcp
	mux.HandleFunc("GET /api/v1/mcp/servers", h.MCP.HandleList)
	mux.HandleFunc("POST /api/v1/mcp/servers", h.MCP.HandleCreate)
	mux.HandleFunc("POST /api/v1/mcp/reload", h.MCP.HandleReload)
	mux.HandleFunc("GET /api/v1/mcp/servers/{name}", h.MCP.HandleGet)
	mux.HandleFunc("PUT /api/v1/mcp/servers/{name}", h.MCP.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/mcp/servers/{name}", h.MCP.HandleDelete)
	mux.HandleFunc("POST /api/v1/mcp/servers/{name}/start", h.MCP.HandleStart)
	mux.HandleFunc("POST /api/v1/mcp/servers/{name}/stop", h.MCP.HandleStop)
	mux.HandleFunc("POST /api/v1/mcp/servers/{name}/restart", h.MCP.HandleRestart)
	mux.HandleFunc("POST /api/v1/mcp/servers/{name}/discover", h.MCP.HandleDiscover)
	mux.HandleFunc("GET /api/v1/mcp/servers/{name}/health", h.MCP.HandleHealth)
	mux.HandleFunc("GET /api/v1/mcp/servers/{name}/tools", h.MCP.HandleListTools)
	mux.HandleFunc("POST /api/v1/mcp/servers/{name}/tools/{tool}/call", h.MCP.HandleCallTool)
	mux.HandleFunc("GET /api/v1/mcp/servers/{name}/resources", h.MCP.HandleResources)

	// history
	if h.History != nil {
		mux.HandleFunc("GET /api/v1/history", h.History.HandleList)
	}

	return mux
}
