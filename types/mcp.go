package types

import (
	"fmt"
	"strings"
	"time"
)

// Transport identifies how the service talks to an MCP tool server.
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportHTTP           Transport = "http"
	TransportStreamableHTTP Transport = "streamable-http"
	TransportSSE            Transport = "sse"
)

// ServerStatus is the lifecycle state of a registered MCP server.
type ServerStatus string

const (
	StatusStopped  ServerStatus = "stopped"
	StatusStarting ServerStatus = "starting"
	StatusRunning  ServerStatus = "running"
	StatusError    ServerStatus = "error"
	StatusUnknown  ServerStatus = "unknown"
)

// MCPServerConfig is the stored definition of an MCP tool server.
//
// Stdio servers are spawned as subprocesses; the remaining transports
// are externally managed endpoints reached over REST.
type MCPServerConfig struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Transport   Transport         `json:"transport" yaml:"transport"`
	Command     string            `json:"command,omitempty" yaml:"command"`
	Args        []string          `json:"args,omitempty" yaml:"args"`
	Env         map[string]string `json:"env,omitempty" yaml:"env"`
	Host        string            `json:"host,omitempty" yaml:"host"`
	Port        int               `json:"port,omitempty" yaml:"port"`
	BaseURL     string            `json:"base_url,omitempty" yaml:"base_url"`
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	AutoStart   bool              `json:"auto_start" yaml:"auto_start"`
	Timeout     time.Duration     `json:"timeout" yaml:"timeout"`
	Metadata    map[string]any    `json:"metadata,omitempty" yaml:"metadata"`
}

// URL returns the base URL for HTTP transports. An explicit BaseURL wins,
// otherwise one is assembled from Host and Port.
func (c *MCPServerConfig) URL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// Validate checks the server configuration for internal consistency.
func (c *MCPServerConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewError(ErrInvalidRequest, "server name is required")
	}
	switch c.Transport {
	case TransportStdio:
		if strings.TrimSpace(c.Command) == "" {
			return NewError(ErrInvalidRequest, "stdio transport requires a command")
		}
	case TransportHTTP, TransportStreamableHTTP, TransportSSE:
		if c.BaseURL == "" && c.Port == 0 {
			return NewError(ErrInvalidRequest, "http transport requires base_url or port")
		}
		if c.Port < 0 || c.Port > 65535 {
			return NewError(ErrInvalidRequest, "port must be between 0 and 65535")
		}
	default:
		return NewError(ErrInvalidRequest, fmt.Sprintf("unsupported transport: %s", c.Transport))
	}
	if c.Timeout < 0 {
		return NewError(ErrInvalidRequest, "timeout cannot be negative")
	}
	return nil
}

// ExpandEnv substitutes ${VAR} references in the env map and command line.
func (c *MCPServerConfig) ExpandEnv() {
	c.Command = ExpandEnvString(c.Command)
	c.BaseURL = ExpandEnvString(c.BaseURL)
	for i := range c.Args {
		c.Args[i] = ExpandEnvString(c.Args[i])
	}
	for k, v := range c.Env {
		c.Env[k] = ExpandEnvString(v)
	}
}

// MCPTool describes a tool advertised by a running MCP server.
type MCPTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Server      string         `json:"server,omitempty"`
}

// MCPResource describes a resource advertised by a running MCP server.
type MCPResource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	Server      string `json:"server,omitempty"`
}

// ServerState is a point-in-time snapshot of a managed server.
type ServerState struct {
	Name            string       `json:"name"`
	Status          ServerStatus `json:"status"`
	Transport       Transport    `json:"transport"`
	Enabled         bool         `json:"enabled"`
	PID             int          `json:"pid,omitempty"`
	URL             string       `json:"url,omitempty"`
	Error           string       `json:"error,omitempty"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
	LastHealthCheck *time.Time   `json:"last_health_check,omitempty"`
	Tools           int          `json:"tools"`
	Resources       int          `json:"resources"`
}
