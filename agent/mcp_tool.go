package agent

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// MCP tool adapter
// =============================================================================

// defaultMCPSchema accepts arbitrary arguments when the server does not
// advertise an input schema.
var defaultMCPSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// invalidFuncNameChars covers characters disallowed in model function
// names. Remote tool names may use dots or slashes.
var invalidFuncNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// mcpTool exposes one remote MCP tool to the model. The advertised name
// is "<server>__<tool>" so calls route back to the right server.
type mcpTool struct {
	bridge ToolBridge
	server string
	remote types.MCPTool
	name   string
}

func newMCPTool(bridge ToolBridge, server string, remote types.MCPTool) *mcpTool {
	name := invalidFuncNameChars.ReplaceAllString(server, "_") +
		"__" + invalidFuncNameChars.ReplaceAllString(remote.Name, "_")
	return &mcpTool{bridge: bridge, server: server, remote: remote, name: name}
}

func (t *mcpTool) Name() string { return t.name }

func (t *mcpTool) Schema() types.ToolSchema {
	params := defaultMCPSchema
	if len(t.remote.InputSchema) > 0 {
		if data, err := json.Marshal(t.remote.InputSchema); err == nil {
			params = data
		}
	}
	desc := t.remote.Description
	if desc == "" {
		desc = "Tool " + t.remote.Name + " on MCP server " + t.server
	}
	return types.ToolSchema{Name: t.name, Description: desc, Parameters: params}
}

func (t *mcpTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.bridge.CallTool(ctx, t.server, t.remote.Name, args)
	if err != nil {
		return "", err
	}
	return renderToolResult(result), nil
}

// renderToolResult turns an arbitrary tool result into text for the model.
func renderToolResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.RawMessage:
		return string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
