package agent

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/llm"
	"github.com/BaSui01/agenthub/memory"
	"github.com/BaSui01/agenthub/store"
	"github.com/BaSui01/agenthub/types"
)

// scriptedProvider replays canned responses and records requests.
type scriptedProvider struct {
	mu         sync.Mutex
	responses  []*llm.ChatResponse
	chunks     []llm.StreamChunk
	err        error
	blockOnCtx bool
	requests   []*llm.ChatRequest
}

func (p *scriptedProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return nil, types.NewError(types.ErrInternalError, "no scripted response")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.blockOnCtx {
		ch := make(chan llm.StreamChunk, 1)
		go func() {
			<-ctx.Done()
			ch <- llm.StreamChunk{Err: types.NewError(types.ErrTimeout, "model stalled").WithCause(ctx.Err())}
			close(ch)
		}()
		return ch, nil
	}
	ch := make(chan llm.StreamChunk, len(p.chunks))
	for _, c := range p.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func textResponse(content string, tokens int) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model: "m",
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      types.Message{Role: types.RoleAssistant, Content: content},
		}},
		Usage: llm.ChatUsage{TotalTokens: tokens},
	}
}

func toolCallResponse(id, tool, args string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model: "m",
		Choices: []llm.ChatChoice{{
			FinishReason: "tool_calls",
			Message: types.Message{
				Role: types.RoleAssistant,
				ToolCalls: []types.ToolCall{
					{ID: id, Name: tool, Arguments: json.RawMessage(args)},
				},
			},
		}},
		Usage: llm.ChatUsage{TotalTokens: 10},
	}
}

type recordingObserver struct {
	mu         sync.Mutex
	executions int
	toolCalls  int
}

func (o *recordingObserver) ObserveExecution(string, bool, time.Duration, int) {
	o.mu.Lock()
	o.executions++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveToolCall(string, string, bool, time.Duration) {
	o.mu.Lock()
	o.toolCalls++
	o.mu.Unlock()
}

type testHarness struct {
	executor *Executor
	provider *scriptedProvider
	memory   *memory.Manager
	metrics  *store.MetricsStore
	observer *recordingObserver
}

func newTestHarness(t *testing.T, cfg types.AgentConfig) *testHarness {
	t.Helper()
	dir := t.TempDir()

	agents, err := store.NewAgentStore(filepath.Join(dir, "agents.json"), zap.NewNop())
	require.NoError(t, err)
	if cfg.Name != "" && cfg.Name != store.DefaultAgentName {
		require.NoError(t, agents.Create(cfg))
	}

	metrics, err := store.NewMetricsStore(filepath.Join(dir, "metrics.json"), zap.NewNop())
	require.NoError(t, err)

	memStore, err := memory.NewFileStore(filepath.Join(dir, "memory"), zap.NewNop())
	require.NoError(t, err)
	memMgr := memory.NewManager(memStore, nil, zap.NewNop())

	provider := &scriptedProvider{}
	observer := &recordingObserver{}
	executor := NewExecutor(Options{
		Agents:  agents,
		Memory:  memMgr,
		Metrics: metrics,
		Providers: func(types.LLMConfig) (llm.Provider, error) {
			return provider, nil
		},
		Observer: observer,
		Logger:   zap.NewNop(),
	})
	return &testHarness{
		executor: executor,
		provider: provider,
		memory:   memMgr,
		metrics:  metrics,
		observer: observer,
	}
}

func chatAgent(name string) types.AgentConfig {
	cfg := types.DefaultAgentConfig(name)
	cfg.Tools = nil
	return cfg
}

func calculatorAgent(name string) types.AgentConfig {
	return types.DefaultAgentConfig(name)
}

func TestExecutePlainAnswer(t *testing.T) {
	h := newTestHarness(t, chatAgent("chat"))
	h.provider.responses = []*llm.ChatResponse{textResponse("Hello there", 21)}

	exec, err := h.executor.Execute(context.Background(), "chat", "hi")
	require.NoError(t, err)
	assert.True(t, exec.Success)
	assert.Equal(t, "Hello there", exec.Output)
	assert.Equal(t, 1, exec.Iterations)
	assert.Equal(t, 21, exec.Tokens)
	assert.Empty(t, exec.ToolCalls)
	assert.NotEmpty(t, exec.ID)

	// system prompt first, user input last
	require.Len(t, h.provider.requests, 1)
	msgs := h.provider.requests[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Equal(t, types.RoleUser, msgs[1].Role)
	assert.Equal(t, "hi", msgs[1].Content)

	entries, err := h.memory.History(context.Background(), "chat", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.RoleUser, entries[0].Role)
	assert.Equal(t, types.RoleAssistant, entries[1].Role)

	m := h.metrics.Get("chat")
	assert.Equal(t, int64(1), m.TotalExecutions)
	assert.Equal(t, int64(1), m.SuccessCount)
	assert.Equal(t, 1, h.observer.executions)
}

func TestExecuteToolLoop(t *testing.T) {
	h := newTestHarness(t, calculatorAgent("calc"))
	h.provider.responses = []*llm.ChatResponse{
		toolCallResponse("call_1", "calculator", `{"expression":"6*7"}`),
		textResponse("The answer is 42", 30),
	}

	exec, err := h.executor.Execute(context.Background(), "calc", "what is 6*7?")
	require.NoError(t, err)
	assert.True(t, exec.Success)
	assert.Equal(t, "The answer is 42", exec.Output)
	assert.Equal(t, 2, exec.Iterations)
	require.Len(t, exec.ToolCalls, 1)
	assert.Equal(t, "calculator", exec.ToolCalls[0].Name)
	assert.Equal(t, "42", exec.ToolCalls[0].Result)

	// the second request carries the assistant tool call and its result
	require.Len(t, h.provider.requests, 2)
	assert.NotEmpty(t, h.provider.requests[0].Tools)
	msgs := h.provider.requests[1].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, types.RoleTool, last.Role)
	assert.Equal(t, "42", last.Content)
	assert.Equal(t, "call_1", last.ToolCallID)

	assert.Equal(t, 1, h.observer.toolCalls)
	m := h.metrics.Get("calc")
	assert.Equal(t, int64(1), m.TotalToolCalls)
}

func TestExecuteToolFailureFeedsModel(t *testing.T) {
	h := newTestHarness(t, calculatorAgent("calc"))
	h.provider.responses = []*llm.ChatResponse{
		toolCallResponse("call_1", "calculator", `{"expression":"1/0"}`),
		textResponse("That division is undefined", 12),
	}

	exec, err := h.executor.Execute(context.Background(), "calc", "compute 1/0")
	require.NoError(t, err)
	assert.True(t, exec.Success)
	require.Len(t, exec.ToolCalls, 1)
	assert.Contains(t, exec.ToolCalls[0].Error, "division by zero")

	msgs := h.provider.requests[1].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, types.RoleTool, last.Role)
	assert.Contains(t, last.Content, "Error:")
}

func TestExecuteIterationLimit(t *testing.T) {
	cfg := calculatorAgent("calc")
	cfg.MaxIterations = 2
	h := newTestHarness(t, cfg)
	h.provider.responses = []*llm.ChatResponse{
		toolCallResponse("call_1", "calculator", `{"expression":"1+1"}`),
		toolCallResponse("call_2", "calculator", `{"expression":"2+2"}`),
	}

	exec, err := h.executor.Execute(context.Background(), "calc", "loop forever")
	require.Error(t, err)
	assert.Equal(t, types.ErrExecutionFailed, types.GetErrorCode(err))
	assert.False(t, exec.Success)
	assert.Equal(t, 2, exec.Iterations)
	assert.Len(t, exec.ToolCalls, 2)

	m := h.metrics.Get("calc")
	assert.Equal(t, int64(1), m.FailureCount)
}

func TestExecuteUnknownAgent(t *testing.T) {
	h := newTestHarness(t, types.AgentConfig{})

	exec, err := h.executor.Execute(context.Background(), "ghost", "hi")
	require.Error(t, err)
	assert.Equal(t, types.ErrAgentNotFound, types.GetErrorCode(err))
	assert.False(t, exec.Success)
	assert.NotEmpty(t, exec.Error)
}

func TestExecuteConversationalSkipsTools(t *testing.T) {
	cfg := calculatorAgent("talker")
	cfg.AgentType = types.AgentTypeConversational
	h := newTestHarness(t, cfg)
	h.provider.responses = []*llm.ChatResponse{textResponse("just chatting", 5)}

	_, err := h.executor.Execute(context.Background(), "talker", "hello")
	require.NoError(t, err)
	require.Len(t, h.provider.requests, 1)
	assert.Empty(t, h.provider.requests[0].Tools)
}

func TestExecuteMemoryCarriesOver(t *testing.T) {
	h := newTestHarness(t, chatAgent("chat"))
	h.provider.responses = []*llm.ChatResponse{
		textResponse("nice to meet you, Ada", 10),
		textResponse("your name is Ada", 10),
	}

	_, err := h.executor.Execute(context.Background(), "chat", "my name is Ada")
	require.NoError(t, err)
	_, err = h.executor.Execute(context.Background(), "chat", "what is my name?")
	require.NoError(t, err)

	// second request includes the first turn from memory
	msgs := h.provider.requests[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "my name is Ada", msgs[1].Content)
	assert.Equal(t, "nice to meet you, Ada", msgs[2].Content)
}

func TestCancelActiveExecution(t *testing.T) {
	h := newTestHarness(t, chatAgent("chat"))
	assert.False(t, h.executor.Cancel("nope"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.executor.track("exec-1", cancel)
	assert.Contains(t, h.executor.ActiveExecutions(), "exec-1")

	assert.True(t, h.executor.Cancel("exec-1"))
	<-ctx.Done()
	assert.Empty(t, h.executor.ActiveExecutions())
}

func TestExecuteStreamDirect(t *testing.T) {
	h := newTestHarness(t, chatAgent("chat"))
	h.provider.chunks = []llm.StreamChunk{
		{Delta: types.Message{Role: types.RoleAssistant, Content: "Hel"}},
		{Delta: types.Message{Content: "lo"}},
		{FinishReason: "stop", Usage: &llm.ChatUsage{TotalTokens: 7}},
	}

	events, err := h.executor.ExecuteStream(context.Background(), "chat", "hi")
	require.NoError(t, err)

	var content string
	var done *types.Execution
	for ev := range events {
		switch ev.Type {
		case EventChunk:
			content += ev.Content
		case EventDone:
			done = ev.Execution
		case EventError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}
	assert.Equal(t, "Hello", content)
	require.NotNil(t, done)
	assert.Equal(t, "Hello", done.Output)
	assert.Equal(t, 7, done.Tokens)

	entries, err := h.memory.History(context.Background(), "chat", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestExecuteStreamBufferedWithTools(t *testing.T) {
	h := newTestHarness(t, calculatorAgent("calc"))
	h.provider.responses = []*llm.ChatResponse{
		toolCallResponse("call_1", "calculator", `{"expression":"6*7"}`),
		textResponse("The answer is 42", 20),
	}

	events, err := h.executor.ExecuteStream(context.Background(), "calc", "what is 6*7?")
	require.NoError(t, err)

	var content string
	var toolEvents int
	var done *types.Execution
	for ev := range events {
		switch ev.Type {
		case EventChunk:
			content += ev.Content
		case EventToolCall:
			toolEvents++
			assert.Equal(t, "calculator", ev.ToolCall.Name)
		case EventDone:
			done = ev.Execution
		case EventError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}
	assert.Equal(t, "The answer is 42", content)
	assert.Equal(t, 1, toolEvents)
	require.NotNil(t, done)
	require.Len(t, done.ToolCalls, 1)
}

func TestExecuteStreamError(t *testing.T) {
	h := newTestHarness(t, chatAgent("chat"))
	h.provider.err = types.NewError(types.ErrUpstreamError, "backend down")

	events, err := h.executor.ExecuteStream(context.Background(), "chat", "hi")
	require.NoError(t, err)

	var sawError bool
	for ev := range events {
		if ev.Type == EventError {
			sawError = true
			assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(ev.Err))
		}
	}
	assert.True(t, sawError)
}

func TestExecuteStreamTimeoutDeliversError(t *testing.T) {
	cfg := chatAgent("slow")
	cfg.Timeout = 50 * time.Millisecond
	h := newTestHarness(t, cfg)
	h.provider.blockOnCtx = true

	events, err := h.executor.ExecuteStream(context.Background(), "slow", "hi")
	require.NoError(t, err)

	var sawError bool
	for ev := range events {
		if ev.Type == EventError {
			sawError = true
			assert.Equal(t, types.ErrTimeout, types.GetErrorCode(ev.Err))
		}
	}
	assert.True(t, sawError, "a timed-out run must still emit its error event")
}

func TestExecuteStreamUnknownAgent(t *testing.T) {
	h := newTestHarness(t, types.AgentConfig{})
	_, err := h.executor.ExecuteStream(context.Background(), "ghost", "hi")
	require.Error(t, err)
	assert.Equal(t, types.ErrAgentNotFound, types.GetErrorCode(err))
}
