package agent

import (
	"context"
	"fmt"

	"github.com/BaSui01/agenthub/types"
)

// Tool is one callable capability exposed to the model.
type Tool interface {
	// Name is the function name advertised to the model.
	Name() string
	// Schema describes the tool as a JSON Schema function definition.
	Schema() types.ToolSchema
	// Execute runs the tool and returns a textual result for the model.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolBridge proxies calls to MCP servers. The mcp.Manager satisfies it.
type ToolBridge interface {
	CallTool(ctx context.Context, server, tool string, args map[string]any) (any, error)
	ListServerTools(ctx context.Context, server string) ([]types.MCPTool, error)
}

// DefaultToolset returns the builtin tools with default settings. The
// direct tool execution API serves these.
func DefaultToolset() []Tool {
	return []Tool{
		newCalculatorTool(),
		newHTTPRequestTool(types.ToolConfig{Name: "http_request", Type: types.ToolTypeHTTPRequest}),
		newFileReaderTool(types.ToolConfig{Name: "file_reader", Type: types.ToolTypeFileReader}),
	}
}

// buildTools assembles the tool set of an agent: enabled builtin tools
// from the config plus every tool advertised by the agent's MCP servers.
func buildTools(ctx context.Context, cfg types.AgentConfig, bridge ToolBridge) ([]Tool, error) {
	var tools []Tool
	for _, tc := range cfg.Tools {
		if !tc.Enabled {
			continue
		}
		switch tc.Type {
		case types.ToolTypeCalculator:
			tools = append(tools, newCalculatorTool())
		case types.ToolTypeHTTPRequest:
			tools = append(tools, newHTTPRequestTool(tc))
		case types.ToolTypeFileReader:
			tools = append(tools, newFileReaderTool(tc))
		case types.ToolTypeMCP:
			if bridge == nil {
				return nil, types.NewError(types.ErrInvalidRequest,
					fmt.Sprintf("tool %s requires an mcp server", tc.Name))
			}
			tools = append(tools, newMCPTool(bridge, tc.MCPServer, types.MCPTool{
				Name:        tc.MCPToolName,
				Description: tc.Description,
			}))
		case types.ToolTypeCustom:
			// custom tools are registered by the embedding application
		default:
			return nil, types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("unknown tool type: %s", tc.Type))
		}
	}

	if bridge != nil {
		for _, server := range cfg.MCPServers {
			remote, err := bridge.ListServerTools(ctx, server)
			if err != nil {
				return nil, err
			}
			for _, rt := range remote {
				tools = append(tools, newMCPTool(bridge, server, rt))
			}
		}
	}
	return tools, nil
}

// toolSchemas extracts the schemas passed to the model.
func toolSchemas(tools []Tool) []types.ToolSchema {
	if len(tools) == 0 {
		return nil
	}
	schemas := make([]types.ToolSchema, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, t.Schema())
	}
	return schemas
}

// findTool resolves a tool by its advertised name.
func findTool(tools []Tool, name string) (Tool, error) {
	for _, t := range tools {
		if t.Name() == name {
			return t, nil
		}
	}
	return nil, types.NewError(types.ErrToolNotFound,
		fmt.Sprintf("tool not found: %s", name))
}
