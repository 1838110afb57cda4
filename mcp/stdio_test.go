package mcp

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeServer answers JSON-RPC requests over a pair of pipes the way a
// stdio MCP server would.
func fakeServer(t *testing.T) (clientStdout io.Reader, clientStdin io.Writer, done chan struct{}) {
	t.Helper()
	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()
	done = make(chan struct{})

	transport := NewStdioTransport(serverIn, serverOut)
	go func() {
		defer close(done)
		for {
			msg, err := transport.Receive()
			if err != nil {
				return
			}
			if msg.ID == nil {
				continue
			}
			var result any
			switch msg.Method {
			case "initialize":
				result = InitializeResult{
					ProtocolVersion: ProtocolVersion,
					ServerInfo:      ServerInfo{Name: "fake", Version: "0.1.0"},
					Capabilities: Capabilities{
						Tools: map[string]any{},
					},
				}
			case "tools/list":
				result = toolListResult{Tools: []toolDescriptor{
					{Name: "echo", Description: "Echo input back"},
				}}
			case "tools/call":
				args, _ := msg.Params["arguments"].(map[string]any)
				result = map[string]any{"echoed": args["text"]}
			case "resources/list":
				result = resourceListResult{Resources: []resourceDescriptor{
					{URI: "file:///readme", Name: "readme", MimeType: "text/plain"},
				}}
			case "resources/read":
				result = map[string]any{"contents": "hello"}
			default:
				_ = transport.Send(&Message{
					JSONRPC: "2.0", ID: msg.ID,
					Error: &RPCError{Code: CodeMethodNotFound, Message: "unknown method"},
				})
				continue
			}
			raw, err := json.Marshal(result)
			if err != nil {
				continue
			}
			_ = transport.Send(&Message{JSONRPC: "2.0", ID: msg.ID, Result: raw})
		}
	}()

	t.Cleanup(func() {
		clientOut.Close()
		serverOut.Close()
	})
	return clientIn, clientOut, done
}

func TestStdioClientHandshakeAndCalls(t *testing.T) {
	stdout, stdin, _ := fakeServer(t)
	client := NewStdioClient(stdout, stdin, zap.NewNop())
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	init, err := client.Initialize(ctx, "agenthub", "test")
	require.NoError(t, err)
	assert.Equal(t, "fake", init.ServerInfo.Name)
	assert.Equal(t, ProtocolVersion, init.ProtocolVersion)

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	result, err := client.CallTool(ctx, "echo", map[string]any{"text": "ping"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echoed": "ping"}, result)

	resources, err := client.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "file:///readme", resources[0].URI)

	content, err := client.ReadResource(ctx, "file:///readme")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"contents": "hello"}, content)
}

func TestStdioClientServerError(t *testing.T) {
	stdout, stdin, _ := fakeServer(t)
	client := NewStdioClient(stdout, stdin, zap.NewNop())
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.call(ctx, "prompts/list", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown method")
}

func TestStdioClientContextTimeout(t *testing.T) {
	// a server that never answers
	_, clientOut := io.Pipe()
	clientIn, _ := io.Pipe()
	t.Cleanup(func() { clientOut.Close() })

	client := NewStdioClient(clientIn, clientOut, zap.NewNop())
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.call(ctx, "tools/list", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestStdioTransportFraming(t *testing.T) {
	r, w := io.Pipe()
	sender := NewStdioTransport(nil, w)
	receiver := NewStdioTransport(r, nil)

	go func() {
		_ = sender.Send(NewRequest(int64(7), "tools/list", map[string]any{"cursor": "a"}))
	}()

	msg, err := receiver.Receive()
	require.NoError(t, err)
	assert.Equal(t, "2.0", msg.JSONRPC)
	assert.Equal(t, float64(7), msg.ID)
	assert.Equal(t, "tools/list", msg.Method)
	assert.Equal(t, "a", msg.Params["cursor"])
}
