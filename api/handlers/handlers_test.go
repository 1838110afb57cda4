package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/agent"
	"github.com/BaSui01/agenthub/api"
	"github.com/BaSui01/agenthub/api/handlers"
	"github.com/BaSui01/agenthub/config"
	"github.com/BaSui01/agenthub/llm"
	"github.com/BaSui01/agenthub/mcp"
	"github.com/BaSui01/agenthub/memory"
	"github.com/BaSui01/agenthub/store"
	"github.com/BaSui01/agenthub/types"
)

// fakeProvider replays canned responses.
type fakeProvider struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	chunks    []llm.StreamChunk
	err       error
}

func (p *fakeProvider) Completion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return nil, types.NewError(types.ErrInternalError, "no canned response")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *fakeProvider) Stream(context.Context, *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan llm.StreamChunk, len(p.chunks))
	for _, c := range p.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (p *fakeProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func assistantReply(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model: "m",
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      types.Message{Role: types.RoleAssistant, Content: content},
		}},
		Usage: llm.ChatUsage{TotalTokens: 10},
	}
}

// fixture assembles the full router over real stores in a temp dir.
type fixture struct {
	mux      *http.ServeMux
	provider *fakeProvider
	agents   *store.AgentStore
	servers  *store.ServerStore
	manager  *mcp.Manager
	memory   *memory.Manager
	metrics  *store.MetricsStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	agents, err := store.NewAgentStore(filepath.Join(dir, "agents.json"), logger)
	require.NoError(t, err)
	servers, err := store.NewServerStore(filepath.Join(dir, "servers.json"), logger)
	require.NoError(t, err)
	metrics, err := store.NewMetricsStore(filepath.Join(dir, "metrics.json"), logger)
	require.NoError(t, err)
	memStore, err := memory.NewFileStore(filepath.Join(dir, "memory"), logger)
	require.NoError(t, err)
	memMgr := memory.NewManager(memStore, nil, logger)

	manager := mcp.NewManager(servers, config.DefaultMCPConfig(), "test", logger)
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	provider := &fakeProvider{}
	executor := agent.NewExecutor(agent.Options{
		Agents:  agents,
		Memory:  memMgr,
		Metrics: metrics,
		Bridge:  manager,
		Providers: func(types.LLMConfig) (llm.Provider, error) {
			return provider, nil
		},
		Logger: logger,
	})

	mcpTools := func() []api.ToolInfo {
		tools := manager.AllTools()
		infos := make([]api.ToolInfo, 0, len(tools))
		for _, tool := range tools {
			infos = append(infos, api.ToolInfo{
				Name:        tool.Name,
				Description: tool.Description,
				Source:      "mcp",
				Server:      tool.Server,
			})
		}
		return infos
	}

	mux := api.NewRouter(api.Handlers{
		Health:  handlers.NewHealthHandler(logger),
		Agents:  handlers.NewAgentHandler(agents, metrics, logger),
		Execute: handlers.NewExecuteHandler(executor, logger),
		Tools:   handlers.NewToolsHandler(mcpTools, logger),
		Memory:  handlers.NewMemoryHandler(agents, memMgr, logger),
		MCP:     handlers.NewMCPHandler(servers, manager, logger),
		Version: "test",
	})

	return &fixture{
		mux:      mux,
		provider: provider,
		agents:   agents,
		servers:  servers,
		manager:  manager,
		memory:   memMgr,
		metrics:  metrics,
	}
}

// doJSON performs a request against the router and decodes the envelope.
func (f *fixture) doJSON(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, handlers.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	var envelope handlers.Response
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	}
	return rec, envelope
}

// dataAs re-decodes the envelope data into dst.
func dataAs(t *testing.T, envelope handlers.Response, dst any) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

// newFakeMCPServer serves the REST surface of an HTTP MCP tool server.
func newFakeMCPServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tools": []map[string]any{
				{"name": "echo", "description": "Echo the arguments"},
			},
		})
	})
	mux.HandleFunc("GET /resources", func(w http.ResponseWriter, r *http.Request) {
		if uri := r.URL.Query().Get("uri"); uri != "" {
			json.NewEncoder(w).Encode(map[string]any{
				"uri":     uri,
				"content": "resource body",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"resources": []map[string]any{
				{"uri": "doc://readme", "name": "readme"},
			},
		})
	})
	mux.HandleFunc("POST /tools/{name}", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Arguments map[string]any `json:"arguments"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"tool":   r.PathValue("name"),
			"result": req.Arguments,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// registerRunningServer stores and starts an HTTP MCP server definition.
func (f *fixture) registerRunningServer(t *testing.T, name, baseURL string) {
	t.Helper()
	require.NoError(t, f.servers.Create(types.MCPServerConfig{
		Name:      name,
		Transport: types.TransportHTTP,
		BaseURL:   baseURL,
		Enabled:   true,
	}))
	require.NoError(t, f.manager.Start(context.Background(), name))
}
