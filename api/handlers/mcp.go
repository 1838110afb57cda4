package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	api "github.com/BaSui01/agenthub/api/dto"
	"github.com/BaSui01/agenthub/mcp"
	"github.com/BaSui01/agenthub/store"
	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// MCP server management
// =============================================================================

// MCPHandler serves the MCP server registry and proxied operations.
type MCPHandler struct {
	servers *store.ServerStore
	manager *mcp.Manager
	logger  *zap.Logger
}

// NewMCPHandler creates the MCP management handler.
func NewMCPHandler(servers *store.ServerStore, manager *mcp.Manager, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		servers: servers,
		manager: manager,
		logger:  logger.With(zap.String("handler", "mcp")),
	}
}

// HandleList serves GET /api/v1/mcp/servers.
func (h *MCPHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.manager.StatusAll())
}

// HandleCreate serves POST /api/v1/mcp/servers.
func (h *MCPHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg types.MCPServerConfig
	if err := DecodeJSONBody(w, r, &cfg, h.logger); err != nil {
		return
	}
	if err := h.servers.Create(cfg); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	state, err := h.manager.Status(cfg.Name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteCreated(w, state)
}

// HandleGet serves GET /api/v1/mcp/servers/{name}: the stored config
// plus the runtime state.
func (h *MCPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cfg, err := h.servers.Get(name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	state, err := h.manager.Status(name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]any{"config": cfg, "state": state})
}

// HandleUpdate serves PUT /api/v1/mcp/servers/{name}. A running server
// is stopped before the definition is replaced.
func (h *MCPHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var cfg types.MCPServerConfig
	if err := DecodeJSONBody(w, r, &cfg, h.logger); err != nil {
		return
	}
	if err := h.manager.Remove(r.Context(), name); err != nil {
		if types.GetErrorCode(err) != types.ErrServerNotFound {
			WriteError(w, err, h.logger)
			return
		}
	}
	if err := h.servers.Update(name, cfg); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	state, err := h.manager.Status(name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, state)
}

// HandleDelete serves DELETE /api/v1/mcp/servers/{name}. A running
// server is stopped first.
func (h *MCPHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.manager.Remove(r.Context(), name); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if err := h.servers.Delete(name); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"deleted": name})
}

// HandleStart serves POST /api/v1/mcp/servers/{name}/start.
func (h *MCPHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.manager.Start)
}

// HandleStop serves POST /api/v1/mcp/servers/{name}/stop.
func (h *MCPHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.manager.Stop)
}

// HandleRestart serves POST /api/v1/mcp/servers/{name}/restart.
func (h *MCPHandler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.manager.Restart)
}

func (h *MCPHandler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, name string) error) {
	name := r.PathValue("name")
	if err := op(r.Context(), name); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	state, err := h.manager.Status(name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, state)
}

// HandleHealth serves GET /api/v1/mcp/servers/{name}/health. The server
// is probed on demand rather than reporting the cached status.
func (h *MCPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.HealthCheck(r.Context(), r.PathValue("name"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]any{
		"name":              state.Name,
		"status":            state.Status,
		"healthy":           state.Status == types.StatusRunning,
		"error":             state.Error,
		"last_health_check": state.LastHealthCheck,
	})
}

// HandleDiscover serves POST /api/v1/mcp/servers/{name}/discover:
// refreshes and returns the server's tool and resource inventory.
func (h *MCPHandler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	tools, err := h.manager.ListServerTools(r.Context(), name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	resources, err := h.manager.ListServerResources(r.Context(), name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]any{"tools": tools, "resources": resources})
}

// HandleListTools serves GET /api/v1/mcp/servers/{name}/tools.
func (h *MCPHandler) HandleListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.manager.ListServerTools(r.Context(), r.PathValue("name"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, tools)
}

// HandleCallTool serves POST /api/v1/mcp/servers/{name}/tools/{tool}/call.
func (h *MCPHandler) HandleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	tool := r.PathValue("tool")
	var req api.ToolCallRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	result, err := h.manager.CallTool(r.Context(), name, tool, req.Arguments)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.ToolCallResponse{Server: name, Tool: tool, Result: result})
}

// HandleResources serves GET /api/v1/mcp/servers/{name}/resources.
// Without a uri parameter it lists resources, with one it fetches it.
func (h *MCPHandler) HandleResources(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if uri := r.URL.Query().Get("uri"); uri != "" {
		content, err := h.manager.ReadResource(r.Context(), name, uri)
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
		WriteSuccess(w, map[string]any{"uri": uri, "content": content})
		return
	}
	resources, err := h.manager.ListServerResources(r.Context(), name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, resources)
}

// HandleReload serves POST /api/v1/mcp/reload.
func (h *MCPHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Reload(r.Context()); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]int{"servers": len(h.servers.List())})
}
