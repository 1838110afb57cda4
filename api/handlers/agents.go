package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	api "github.com/BaSui01/agenthub/api/dto"
	"github.com/BaSui01/agenthub/store"
	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Agent CRUD
// =============================================================================

// AgentHandler serves agent definition management.
type AgentHandler struct {
	agents  *store.AgentStore
	metrics *store.MetricsStore
	logger  *zap.Logger
}

// NewAgentHandler creates the agent management handler.
func NewAgentHandler(agents *store.AgentStore, metrics *store.MetricsStore, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		agents:  agents,
		metrics: metrics,
		logger:  logger.With(zap.String("handler", "agents")),
	}
}

// HandleList serves GET /api/v1/agents. With ?names_only=true only the
// agent names are returned.
func (h *AgentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	agents := h.agents.List()

	if r.URL.Query().Get("names_only") == "true" {
		names := make([]string, 0, len(agents))
		for _, a := range agents {
			names = append(names, a.Name)
		}
		WriteSuccess(w, names)
		return
	}

	summaries := make([]api.AgentSummary, 0, len(agents))
	for _, a := range agents {
		summaries = append(summaries, summarize(a))
	}
	WriteSuccess(w, summaries)
}

// HandleCreate serves POST /api/v1/agents.
func (h *AgentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg types.AgentConfig
	if err := DecodeJSONBody(w, r, &cfg, h.logger); err != nil {
		return
	}
	applyAgentDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if err := h.agents.Create(cfg); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteCreated(w, summarize(cfg))
}

// HandleGet serves GET /api/v1/agents/{name}.
func (h *AgentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.agents.Get(r.PathValue("name"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, cfg)
}

// HandleUpdate serves PUT /api/v1/agents/{name}.
func (h *AgentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var cfg types.AgentConfig
	if err := DecodeJSONBody(w, r, &cfg, h.logger); err != nil {
		return
	}
	cfg.Name = name
	applyAgentDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if err := h.agents.Update(name, cfg); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, summarize(cfg))
}

// HandleDelete serves DELETE /api/v1/agents/{name}. The default agent
// is protected; its metrics are removed along with the definition.
func (h *AgentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.agents.Delete(name); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if err := h.metrics.Reset(name); err != nil {
		h.logger.Warn("failed to drop metrics for deleted agent",
			zap.String("agent", name), zap.Error(err))
	}
	WriteSuccess(w, map[string]string{"deleted": name})
}

// HandleDuplicate serves POST /api/v1/agents/duplicate.
func (h *AgentHandler) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	var req api.DuplicateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Source) == "" || strings.TrimSpace(req.NewName) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest,
			"source and new_name are required"), h.logger)
		return
	}
	cfg, err := h.agents.Duplicate(req.Source, req.NewName)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteCreated(w, summarize(cfg))
}

// HandleReload serves POST /api/v1/agents/reload.
func (h *AgentHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.agents.Reload(); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]int{"agents": len(h.agents.List())})
}

// HandleMetrics serves GET /api/v1/agents/{name}/metrics.
func (h *AgentHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.agents.Exists(name) {
		WriteError(w, types.NewError(types.ErrAgentNotFound,
			"agent not found: "+name), h.logger)
		return
	}
	WriteSuccess(w, h.metrics.Get(name))
}

// applyAgentDefaults fills zero-valued tuning fields so sparse agent
// definitions validate.
func applyAgentDefaults(cfg *types.AgentConfig) {
	def := types.DefaultAgentConfig(cfg.Name)
	if cfg.AgentType == "" {
		cfg.AgentType = def.AgentType
	}
	if cfg.LLM.Provider == "" && cfg.LLM.Model == "" {
		cfg.LLM = def.LLM
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if cfg.LLM.TopP == 0 {
		cfg.LLM.TopP = def.LLM.TopP
	}
	if cfg.Memory.Type == "" {
		cfg.Memory = def.Memory
	}
	if cfg.Memory.Type != types.MemoryNone && cfg.Memory.MaxTokens == 0 {
		cfg.Memory.MaxTokens = def.Memory.MaxTokens
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
}

func summarize(cfg types.AgentConfig) api.AgentSummary {
	memory := string(cfg.Memory.Type)
	if memory == "" {
		memory = string(types.MemoryNone)
	}
	return api.AgentSummary{
		Name:        cfg.Name,
		Description: cfg.Description,
		AgentType:   cfg.AgentType,
		Provider:    string(cfg.LLM.Provider),
		Model:       cfg.LLM.Model,
		Tools:       len(cfg.Tools),
		MCPServers:  cfg.MCPServers,
		Memory:      memory,
	}
}
