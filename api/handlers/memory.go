package handlers

import (
	"net/http"

	"go.uber.org/zap"

	api "github.com/BaSui01/agenthub/api/dto"
	"github.com/BaSui01/agenthub/memory"
	"github.com/BaSui01/agenthub/store"
	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Memory
// =============================================================================

// MemoryHandler serves conversation memory inspection and clearing.
type MemoryHandler struct {
	agents *store.AgentStore
	memory *memory.Manager
	logger *zap.Logger
}

// NewMemoryHandler creates the memory handler.
func NewMemoryHandler(agents *store.AgentStore, mgr *memory.Manager, logger *zap.Logger) *MemoryHandler {
	return &MemoryHandler{
		agents: agents,
		memory: mgr,
		logger: logger.With(zap.String("handler", "memory")),
	}
}

// HandleQuery serves POST /api/v1/agents/{name}/memory/query.
func (h *MemoryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.requireAgent(w, name) {
		return
	}

	var req api.MemoryQueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Limit < 0 {
		WriteError(w, types.NewError(types.ErrInvalidRequest,
			"limit must not be negative"), h.logger)
		return
	}

	entries, err := h.memory.Query(r.Context(), name, req.Limit, req.Search)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, entries)
}

// HandleClear serves POST /api/v1/agents/{name}/memory/clear. The body
// must carry confirm=true.
func (h *MemoryHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.requireAgent(w, name) {
		return
	}

	var req api.MemoryClearRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if !req.Confirm {
		WriteError(w, types.NewError(types.ErrInvalidRequest,
			"clearing memory requires confirm=true"), h.logger)
		return
	}

	if err := h.memory.Clear(r.Context(), name); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"cleared": name})
}

// HandleStats serves GET /api/v1/agents/{name}/memory/stats.
func (h *MemoryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.requireAgent(w, name) {
		return
	}

	stats, err := h.memory.GetStats(r.Context(), name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, stats)
}

func (h *MemoryHandler) requireAgent(w http.ResponseWriter, name string) bool {
	if h.agents.Exists(name) {
		return true
	}
	WriteError(w, types.NewError(types.ErrAgentNotFound,
		"agent not found: "+name), h.logger)
	return false
}
