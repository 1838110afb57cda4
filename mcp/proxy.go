package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/BaSui01/agenthub/internal/tlsutil"
	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// HTTP proxy client
// =============================================================================

// HTTPProxy talks to an externally managed MCP server over its REST surface:
//
//	GET  {base}/health
//	GET  {base}/tools
//	POST {base}/tools/{name}   {"arguments": {...}}
//	GET  {base}/resources
//	GET  {base}/resources?uri=...
type HTTPProxy struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProxy creates a proxy client for the given base URL.
func NewHTTPProxy(baseURL string, timeout time.Duration) *HTTPProxy {
	return &HTTPProxy{
		baseURL: baseURL,
		client:  tlsutil.NewClient(tlsutil.Options{Timeout: timeout}),
	}
}

// Health probes the server's health endpoint.
func (p *HTTPProxy) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrServerNotRunning, "health check failed").WithCause(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return types.NewError(types.ErrServerNotRunning,
			fmt.Sprintf("health check returned status %d", resp.StatusCode))
	}
	return nil
}

// ListTools fetches the tools advertised by the server.
func (p *HTTPProxy) ListTools(ctx context.Context) ([]types.MCPTool, error) {
	var payload struct {
		Tools []types.MCPTool `json:"tools"`
	}
	if err := p.getJSON(ctx, p.baseURL+"/tools", &payload); err != nil {
		return nil, err
	}
	return payload.Tools, nil
}

// CallTool invokes a named tool with arguments.
func (p *HTTPProxy) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	body, err := json.Marshal(map[string]any{"arguments": args})
	if err != nil {
		return nil, err
	}

	endpoint := p.baseURL + "/tools/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, types.NewError(types.ErrToolNotFound,
			fmt.Sprintf("tool not found: %s", name))
	default:
		return nil, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("tool call returned status %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	var result any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			// non-JSON bodies pass through as text
			return string(data), nil
		}
	}
	return result, nil
}

// ListResources fetches the resources advertised by the server.
func (p *HTTPProxy) ListResources(ctx context.Context) ([]types.MCPResource, error) {
	var payload struct {
		Resources []types.MCPResource `json:"resources"`
	}
	if err := p.getJSON(ctx, p.baseURL+"/resources", &payload); err != nil {
		return nil, err
	}
	return payload.Resources, nil
}

// ReadResource fetches the content of a resource by URI. The resources
// endpoint serves the listing without a uri parameter and the content
// with one.
func (p *HTTPProxy) ReadResource(ctx context.Context, uri string) (any, error) {
	endpoint := p.baseURL + "/resources?uri=" + url.QueryEscape(uri)
	var result any
	if err := p.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *HTTPProxy) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("request returned status %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func mapTransportError(err error) error {
	if ctxErr := contextError(err); ctxErr != nil {
		return ctxErr
	}
	return types.NewError(types.ErrServerNotRunning, "mcp server unreachable").WithCause(err)
}

func contextError(err error) error {
	if err == nil {
		return nil
	}
	if ue, ok := err.(*url.Error); ok && ue.Timeout() {
		return types.NewError(types.ErrTimeout, "mcp request timed out").WithCause(err).WithRetryable(true)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
