package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/agent"
	api "github.com/BaSui01/agenthub/api/dto"
)

// =============================================================================
// Tools
// =============================================================================

// ToolsHandler serves tool discovery and direct invocation of builtin
// tools. mcpTools supplies the remote inventory; nil disables it.
type ToolsHandler struct {
	builtin  []agent.Tool
	mcpTools func() []api.ToolInfo
	logger   *zap.Logger
}

// NewToolsHandler creates the tools handler.
func NewToolsHandler(mcpTools func() []api.ToolInfo, logger *zap.Logger) *ToolsHandler {
	return &ToolsHandler{
		builtin:  agent.DefaultToolset(),
		mcpTools: mcpTools,
		logger:   logger.With(zap.String("handler", "tools")),
	}
}

// HandleList serves GET /api/v1/tools.
func (h *ToolsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	infos := make([]api.ToolInfo, 0, len(h.builtin))
	for _, t := range h.builtin {
		schema := t.Schema()
		infos = append(infos, api.ToolInfo{
			Name:        schema.Name,
			Description: schema.Description,
			Source:      "builtin",
		})
	}
	if h.mcpTools != nil {
		infos = append(infos, h.mcpTools()...)
	}
	WriteSuccess(w, infos)
}

// HandleExecute serves POST /api/v1/tools/{name}/execute. Tool failures
// including unknown tools are reported in the result body, not as HTTP
// errors.
func (h *ToolsHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req api.ToolExecuteRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result := api.ToolExecuteResult{Tool: name}
	start := time.Now()

	tool := h.findBuiltin(name)
	if tool == nil {
		result.Error = "tool not found: " + name
	} else if out, err := tool.Execute(r.Context(), req.Arguments); err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
		result.Result = out
	}
	result.DurationMs = float64(time.Since(start)) / float64(time.Millisecond)

	WriteSuccess(w, result)
}

func (h *ToolsHandler) findBuiltin(name string) agent.Tool {
	for _, t := range h.builtin {
		if t.Name() == name {
			return t
		}
	}
	return nil
}
