package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agenthub/types"
)

// fakeRESTServer implements the REST surface an http MCP server exposes.
func fakeRESTServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tools": []map[string]any{
				{"name": "search", "description": "Search documents"},
			},
		})
	})
	mux.HandleFunc("POST /tools/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") != "search" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var req struct {
			Arguments map[string]any `json:"arguments"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(map[string]any{"query": req.Arguments["query"], "hits": 2})
	})
	mux.HandleFunc("GET /resources", func(w http.ResponseWriter, r *http.Request) {
		if uri := r.URL.Query().Get("uri"); uri != "" {
			json.NewEncoder(w).Encode(map[string]any{
				"uri":      uri,
				"contents": "guide text",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"resources": []map[string]any{
				{"uri": "doc://guide", "name": "guide"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProxyEndpoints(t *testing.T) {
	srv := fakeRESTServer(t)
	proxy := NewHTTPProxy(srv.URL, 5*time.Second)
	ctx := context.Background()

	require.NoError(t, proxy.Health(ctx))

	tools, err := proxy.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)

	result, err := proxy.CallTool(ctx, "search", map[string]any{"query": "mcp"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "mcp", "hits": float64(2)}, result)

	resources, err := proxy.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "doc://guide", resources[0].URI)

	content, err := proxy.ReadResource(ctx, "doc://guide")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"uri": "doc://guide", "contents": "guide text"}, content)
}

func TestHTTPProxyToolNotFound(t *testing.T) {
	srv := fakeRESTServer(t)
	proxy := NewHTTPProxy(srv.URL, 5*time.Second)

	_, err := proxy.CallTool(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrToolNotFound, types.GetErrorCode(err))
}

func TestHTTPProxyUnreachable(t *testing.T) {
	proxy := NewHTTPProxy("http://127.0.0.1:1", time.Second)

	err := proxy.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrServerNotRunning, types.GetErrorCode(err))

	_, err = proxy.CallTool(context.Background(), "search", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrServerNotRunning, types.GetErrorCode(err))
}

func TestHTTPProxyUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	proxy := NewHTTPProxy(srv.URL, time.Second)
	_, err := proxy.CallTool(context.Background(), "search", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "500")
}
