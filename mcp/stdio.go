package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Stdio transport (Content-Length framing)
// =============================================================================

// StdioTransport frames JSON-RPC messages with Content-Length headers
// over a reader/writer pair, usually a child process's stdout/stdin.
type StdioTransport struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
}

// NewStdioTransport creates a framed transport over reader and writer.
func NewStdioTransport(reader io.Reader, writer io.Writer) *StdioTransport {
	return &StdioTransport{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// Send writes one framed message.
func (t *StdioTransport) Send(msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := t.writer.Write([]byte(header)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// Receive blocks until one framed message arrives.
func (t *StdioTransport) Receive() (*Message, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if line == "\r\n" || line == "\n" {
			break
		}
		if _, err := fmt.Sscanf(line, "Content-Length: %d", &contentLength); err == nil {
			continue
		}
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// =============================================================================
// Stdio client
// =============================================================================

// StdioClient speaks JSON-RPC 2.0 to an MCP server over a stdio transport.
// A background reader loop correlates responses to in-flight requests by ID.
type StdioClient struct {
	transport *StdioTransport

	nextID    int64
	pending   map[int64]chan *Message
	pendingMu sync.Mutex

	closed chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// NewStdioClient creates a client over the child process pipes and starts
// the reader loop.
func NewStdioClient(stdout io.Reader, stdin io.Writer, logger *zap.Logger) *StdioClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &StdioClient{
		transport: NewStdioTransport(stdout, stdin),
		pending:   make(map[int64]chan *Message),
		closed:    make(chan struct{}),
		logger:    logger,
	}
	go c.readLoop()
	return c
}

// readLoop dispatches incoming messages until the pipe closes.
func (c *StdioClient) readLoop() {
	defer c.Close()
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			if err != io.EOF {
				c.logger.Debug("stdio read ended", zap.Error(err))
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *StdioClient) dispatch(msg *Message) {
	if msg.ID == nil {
		// notifications are logged and dropped
		c.logger.Debug("mcp notification", zap.String("method", msg.Method))
		return
	}
	var id int64
	switch v := msg.ID.(type) {
	case float64:
		id = int64(v)
	case int64:
		id = v
	default:
		return
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	c.pendingMu.Unlock()
	if ok {
		ch <- msg
	}
}

// Close terminates the client. In-flight calls fail with a closed error.
func (c *StdioClient) Close() {
	c.once.Do(func() { close(c.closed) })
}

// call sends one request and waits for its response.
func (c *StdioClient) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)

	respChan := make(chan *Message, 1)
	c.pendingMu.Lock()
	c.pending[id] = respChan
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	// the pipe write blocks when the subprocess stops reading stdin, so
	// it runs aside the select to keep ctx deadlines effective
	sendErr := make(chan error, 1)
	go func() {
		sendErr <- c.transport.Send(NewRequest(id, method, params))
	}()

	select {
	case <-ctx.Done():
		return nil, types.NewError(types.ErrTimeout,
			fmt.Sprintf("mcp call timed out: %s", method)).WithCause(ctx.Err())
	case <-c.closed:
		return nil, types.NewError(types.ErrServerNotRunning, "mcp server connection closed")
	case err := <-sendErr:
		if err != nil {
			return nil, types.NewError(types.ErrUpstreamError, "failed to send mcp request").WithCause(err)
		}
	}

	select {
	case <-ctx.Done():
		return nil, types.NewError(types.ErrTimeout,
			fmt.Sprintf("mcp call timed out: %s", method)).WithCause(ctx.Err())
	case <-c.closed:
		return nil, types.NewError(types.ErrServerNotRunning, "mcp server connection closed")
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, types.NewError(types.ErrUpstreamError,
				fmt.Sprintf("mcp error %d: %s", resp.Error.Code, resp.Error.Message))
		}
		return resp.Result, nil
	}
}

// Initialize performs the MCP handshake.
func (c *StdioClient) Initialize(ctx context.Context, clientName, clientVersion string) (*InitializeResult, error) {
	result, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
		"capabilities": map[string]any{},
	})
	if err != nil {
		return nil, err
	}

	var init InitializeResult
	if len(result) > 0 {
		if err := json.Unmarshal(result, &init); err != nil {
			return nil, fmt.Errorf("failed to parse initialize result: %w", err)
		}
	}

	// the handshake completes with a notification
	if err := c.transport.Send(NewNotification("notifications/initialized", nil)); err != nil {
		return nil, err
	}
	return &init, nil
}

// ListTools returns the tools advertised by the server.
func (c *StdioClient) ListTools(ctx context.Context) ([]types.MCPTool, error) {
	result, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var list toolListResult
	if len(result) > 0 {
		if err := json.Unmarshal(result, &list); err != nil {
			return nil, fmt.Errorf("failed to parse tools: %w", err)
		}
	}
	tools := make([]types.MCPTool, 0, len(list.Tools))
	for _, t := range list.Tools {
		tools = append(tools, types.MCPTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return tools, nil
}

// CallTool invokes a named tool with arguments.
func (c *StdioClient) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	result, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	var out any
	if len(result) > 0 {
		if err := json.Unmarshal(result, &out); err != nil {
			return nil, fmt.Errorf("failed to parse tool result: %w", err)
		}
	}
	return out, nil
}

// ListResources returns the resources advertised by the server.
func (c *StdioClient) ListResources(ctx context.Context) ([]types.MCPResource, error) {
	result, err := c.call(ctx, "resources/list", nil)
	if err != nil {
		return nil, err
	}
	var list resourceListResult
	if len(result) > 0 {
		if err := json.Unmarshal(result, &list); err != nil {
			return nil, fmt.Errorf("failed to parse resources: %w", err)
		}
	}
	resources := make([]types.MCPResource, 0, len(list.Resources))
	for _, r := range list.Resources {
		resources = append(resources, types.MCPResource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MimeType:    r.MimeType,
		})
	}
	return resources, nil
}

// ReadResource fetches the content of a resource by URI.
func (c *StdioClient) ReadResource(ctx context.Context, uri string) (any, error) {
	result, err := c.call(ctx, "resources/read", map[string]any{"uri": uri})
	if err != nil {
		return nil, err
	}
	var out any
	if len(result) > 0 {
		if err := json.Unmarshal(result, &out); err != nil {
			return nil, fmt.Errorf("failed to parse resource: %w", err)
		}
	}
	return out, nil
}
