package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/llm"
	"github.com/BaSui01/agenthub/memory"
	"github.com/BaSui01/agenthub/store"
	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Executor
// =============================================================================

// ProviderFactory builds the chat backend for an agent's LLM config.
type ProviderFactory func(agentLLM types.LLMConfig) (llm.Provider, error)

// HistoryRecorder persists finished executions. Optional.
type HistoryRecorder interface {
	RecordExecution(ctx context.Context, exec *types.Execution) error
}

// ExecutionObserver receives execution and tool-call telemetry. Optional.
type ExecutionObserver interface {
	ObserveExecution(agent string, success bool, duration time.Duration, tokens int)
	ObserveToolCall(agent, tool string, success bool, duration time.Duration)
}

// Options wires an Executor's collaborators.
type Options struct {
	Agents    *store.AgentStore
	Memory    *memory.Manager
	Metrics   *store.MetricsStore
	Bridge    ToolBridge
	Providers ProviderFactory
	History   HistoryRecorder
	Observer  ExecutionObserver
	Logger    *zap.Logger
}

// Executor runs stored agents: it assembles the conversation, drives
// the tool-calling loop, and records memory, metrics, and history.
type Executor struct {
	agents    *store.AgentStore
	memory    *memory.Manager
	metrics   *store.MetricsStore
	bridge    ToolBridge
	providers ProviderFactory
	history   HistoryRecorder
	observer  ExecutionObserver
	logger    *zap.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewExecutor creates an executor from its collaborators.
func NewExecutor(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		agents:    opts.Agents,
		memory:    opts.Memory,
		metrics:   opts.Metrics,
		bridge:    opts.Bridge,
		providers: opts.Providers,
		history:   opts.History,
		observer:  opts.Observer,
		logger:    logger.With(zap.String("component", "executor")),
		active:    make(map[string]context.CancelFunc),
	}
}

// Execute runs one agent turn to completion and returns its record.
// The returned Execution is populated even when err is non-nil.
func (e *Executor) Execute(ctx context.Context, agentName, input string) (*types.Execution, error) {
	exec := &types.Execution{
		ID:        uuid.NewString(),
		AgentName: agentName,
		Input:     input,
		StartedAt: time.Now().UTC(),
	}

	cfg, err := e.agents.Get(agentName)
	if err != nil {
		exec.FinishedAt = time.Now().UTC()
		exec.Error = err.Error()
		return exec, err
	}
	cfg.ExpandEnv()

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	e.track(exec.ID, cancel)
	defer e.untrack(exec.ID)

	output, err := e.run(runCtx, cfg, input, exec, nil)
	e.finish(runCtx, cfg, exec, input, output, err)
	return exec, err
}

// Cancel aborts a running execution. It reports whether the execution
// was active.
func (e *Executor) Cancel(executionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, ok := e.active[executionID]
	if ok {
		cancel()
		delete(e.active, executionID)
	}
	return ok
}

// ActiveExecutions returns the IDs of executions currently in flight.
func (e *Executor) ActiveExecutions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

func (e *Executor) track(id string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.active[id] = cancel
	e.mu.Unlock()
}

func (e *Executor) untrack(id string) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
}

// run drives the completion loop. When emit is non-nil, tool calls are
// reported through it as they happen.
func (e *Executor) run(ctx context.Context, cfg types.AgentConfig, input string, exec *types.Execution, emit func(StreamEvent)) (string, error) {
	provider, err := e.providers(cfg.LLM)
	if err != nil {
		return "", err
	}

	tools, err := buildTools(ctx, cfg, e.bridge)
	if err != nil {
		return "", err
	}

	messages, err := e.assembleMessages(ctx, cfg, input)
	if err != nil {
		return "", err
	}

	schemas := toolSchemas(tools)
	if cfg.AgentType == types.AgentTypeConversational {
		schemas = nil
	}

	for exec.Iterations = 1; exec.Iterations <= cfg.MaxIterations; exec.Iterations++ {
		resp, err := provider.Completion(ctx, &llm.ChatRequest{
			Model:       cfg.LLM.Model,
			Messages:    messages,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			TopP:        cfg.LLM.TopP,
			Tools:       schemas,
		})
		if err != nil {
			return "", err
		}
		exec.Tokens += resp.Usage.TotalTokens

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			return resp.Content(), nil
		}

		messages = append(messages, types.Message{
			Role:      types.RoleAssistant,
			Content:   resp.Content(),
			ToolCalls: calls,
		})
		for _, call := range calls {
			record := e.dispatchToolCall(ctx, cfg, tools, call)
			exec.ToolCalls = append(exec.ToolCalls, record)
			if emit != nil {
				emit(StreamEvent{Type: EventToolCall, ToolCall: &record})
			}
			content := record.Result
			if record.Error != "" {
				content = "Error: " + record.Error
			}
			messages = append(messages, types.Message{
				Role:       types.RoleTool,
				Content:    content,
				Name:       call.Name,
				ToolCallID: call.ID,
			})
		}
	}
	exec.Iterations = cfg.MaxIterations

	return "", types.NewError(types.ErrExecutionFailed,
		fmt.Sprintf("agent did not produce a final answer within %d iterations", cfg.MaxIterations))
}

// assembleMessages builds the model context: system prompt, prior
// memory, then the new user input.
func (e *Executor) assembleMessages(ctx context.Context, cfg types.AgentConfig, input string) ([]types.Message, error) {
	messages := []types.Message{{Role: types.RoleSystem, Content: cfg.SystemPrompt}}
	if e.memory != nil {
		prior, err := e.memory.Load(ctx, cfg)
		if err != nil {
			return nil, err
		}
		messages = append(messages, prior...)
	}
	return append(messages, types.Message{Role: types.RoleUser, Content: input}), nil
}

// dispatchToolCall executes one model-requested tool call and records
// its outcome. Tool failures become results, not execution failures,
// so the model can react to them.
func (e *Executor) dispatchToolCall(ctx context.Context, cfg types.AgentConfig, tools []Tool, call types.ToolCall) types.ToolCallRecord {
	record := types.ToolCallRecord{
		Name:      call.Name,
		Arguments: string(call.Arguments),
		StartedAt: time.Now().UTC(),
	}

	result, err := e.executeTool(ctx, tools, call)
	record.FinishedAt = time.Now().UTC()
	record.Duration = record.FinishedAt.Sub(record.StartedAt)
	if err != nil {
		record.Error = err.Error()
	} else {
		record.Result = result
	}

	if mt, ok := toolByName(tools, call.Name).(*mcpTool); ok {
		record.MCPServer = mt.server
	}

	if e.observer != nil {
		e.observer.ObserveToolCall(cfg.Name, call.Name, err == nil, record.Duration)
	}
	e.logger.Debug("tool call finished",
		zap.String("agent", cfg.Name),
		zap.String("tool", call.Name),
		zap.Bool("success", err == nil),
		zap.Duration("duration", record.Duration))
	return record
}

func (e *Executor) executeTool(ctx context.Context, tools []Tool, call types.ToolCall) (string, error) {
	tool, err := findTool(tools, call.Name)
	if err != nil {
		return "", err
	}
	args := make(map[string]any)
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return "", types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("invalid arguments for tool %s", call.Name)).WithCause(err)
		}
	}
	return tool.Execute(ctx, args)
}

func toolByName(tools []Tool, name string) Tool {
	for _, t := range tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// finish records the outcome in memory, metrics, and history.
func (e *Executor) finish(ctx context.Context, cfg types.AgentConfig, exec *types.Execution, input, output string, runErr error) {
	exec.FinishedAt = time.Now().UTC()
	exec.Output = output
	exec.Success = runErr == nil
	if runErr != nil {
		exec.Error = runErr.Error()
	}

	// memory and bookkeeping survive request cancellation
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if runErr == nil && e.memory != nil {
		if err := e.memory.Record(bgCtx, cfg, types.RoleUser, input); err != nil {
			e.logger.Warn("recording user turn failed", zap.String("agent", cfg.Name), zap.Error(err))
		}
		if err := e.memory.Record(bgCtx, cfg, types.RoleAssistant, output); err != nil {
			e.logger.Warn("recording assistant turn failed", zap.String("agent", cfg.Name), zap.Error(err))
		}
	}

	if e.metrics != nil {
		durationMs := float64(exec.Duration()) / float64(time.Millisecond)
		if err := e.metrics.Record(cfg.Name, durationMs, exec.Tokens, len(exec.ToolCalls), runErr); err != nil {
			e.logger.Warn("recording metrics failed", zap.String("agent", cfg.Name), zap.Error(err))
		}
	}

	if e.observer != nil {
		e.observer.ObserveExecution(cfg.Name, runErr == nil, exec.Duration(), exec.Tokens)
	}

	if e.history != nil {
		if err := e.history.RecordExecution(bgCtx, exec); err != nil {
			e.logger.Warn("recording history failed", zap.String("agent", cfg.Name), zap.Error(err))
		}
	}

	e.logger.Info("execution finished",
		zap.String("agent", cfg.Name),
		zap.String("execution_id", exec.ID),
		zap.Bool("success", exec.Success),
		zap.Int("iterations", exec.Iterations),
		zap.Int("tokens", exec.Tokens),
		zap.Int("tool_calls", len(exec.ToolCalls)),
		zap.Duration("duration", exec.Duration()))
}
