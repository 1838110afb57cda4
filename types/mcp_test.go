package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MCPServerConfig
		wantErr string
	}{
		{
			name: "valid stdio server",
			cfg: MCPServerConfig{
				Name:      "files",
				Transport: TransportStdio,
				Command:   "mcp-files",
				Args:      []string{"--root", "/data"},
			},
		},
		{
			name: "valid http server with port",
			cfg: MCPServerConfig{
				Name:      "search",
				Transport: TransportHTTP,
				Port:      8900,
			},
		},
		{
			name: "valid streamable http with base url",
			cfg: MCPServerConfig{
				Name:      "kb",
				Transport: TransportStreamableHTTP,
				BaseURL:   "https://kb.internal:9443/mcp",
			},
		},
		{
			name: "valid sse server",
			cfg: MCPServerConfig{
				Name:      "events",
				Transport: TransportSSE,
				Port:      8901,
			},
		},
		{
			name:    "missing name",
			cfg:     MCPServerConfig{Transport: TransportStdio, Command: "x"},
			wantErr: "server name is required",
		},
		{
			name:    "stdio without command",
			cfg:     MCPServerConfig{Name: "files", Transport: TransportStdio},
			wantErr: "stdio transport requires a command",
		},
		{
			name:    "http without endpoint",
			cfg:     MCPServerConfig{Name: "search", Transport: TransportHTTP},
			wantErr: "http transport requires base_url or port",
		},
		{
			name:    "unknown transport",
			cfg:     MCPServerConfig{Name: "x", Transport: "grpc"},
			wantErr: "unsupported transport: grpc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMCPServerConfigURL(t *testing.T) {
	withBase := MCPServerConfig{BaseURL: "https://tools.example.com/mcp/"}
	assert.Equal(t, "https://tools.example.com/mcp", withBase.URL())

	withPort := MCPServerConfig{Port: 8900}
	assert.Equal(t, "http://localhost:8900", withPort.URL())

	withHost := MCPServerConfig{Host: "10.0.0.5", Port: 8901}
	assert.Equal(t, "http://10.0.0.5:8901", withHost.URL())
}

func TestMCPServerConfigExpandEnv(t *testing.T) {
	t.Setenv("MCP_DATA_DIR", "/srv/data")

	cfg := MCPServerConfig{
		Name:      "files",
		Transport: TransportStdio,
		Command:   "mcp-files",
		Args:      []string{"--root", "${MCP_DATA_DIR}"},
		Env:       map[string]string{"DATA": "${MCP_DATA_DIR}", "OTHER": "${MCP_UNSET}"},
	}
	cfg.ExpandEnv()

	assert.Equal(t, "/srv/data", cfg.Args[1])
	assert.Equal(t, "/srv/data", cfg.Env["DATA"])
	assert.Equal(t, "${MCP_UNSET}", cfg.Env["OTHER"])
}
