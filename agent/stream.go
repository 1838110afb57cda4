package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/agenthub/llm"
	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Streaming execution
// =============================================================================

// EventType classifies streamed execution events.
type EventType string

const (
	EventChunk    EventType = "chunk"
	EventToolCall EventType = "tool_call"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// StreamEvent is one incremental event from a streamed execution.
type StreamEvent struct {
	Type      EventType             `json:"type"`
	Content   string                `json:"content,omitempty"`
	ToolCall  *types.ToolCallRecord `json:"tool_call,omitempty"`
	Execution *types.Execution      `json:"execution,omitempty"`
	Err       error                 `json:"-"`
}

// ExecuteStream runs one agent turn, delivering output incrementally.
// Agents without tools stream model deltas as they arrive; tool-calling
// agents run the full loop and then chunk the final answer word by
// word. The channel closes after a done or error event.
func (e *Executor) ExecuteStream(ctx context.Context, agentName, input string) (<-chan StreamEvent, error) {
	cfg, err := e.agents.Get(agentName)
	if err != nil {
		return nil, err
	}
	cfg.ExpandEnv()

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)

		exec := &types.Execution{
			ID:        uuid.NewString(),
			AgentName: agentName,
			Input:     input,
			StartedAt: time.Now().UTC(),
		}

		runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		e.track(exec.ID, cancel)
		defer e.untrack(exec.ID)

		var output string
		var runErr error
		if streamable(cfg) {
			output, runErr = e.streamDirect(runCtx, cfg, input, exec, events)
		} else {
			output, runErr = e.streamBuffered(runCtx, cfg, input, exec, events)
		}

		e.finish(runCtx, cfg, exec, input, output, runErr)
		// terminal events go out on the caller's context, not the run
		// context, so a timed-out run still reports its error
		if runErr != nil {
			sendEvent(ctx, events, StreamEvent{Type: EventError, Content: runErr.Error(), Err: runErr})
			return
		}
		sendEvent(ctx, events, StreamEvent{Type: EventDone, Execution: exec})
	}()
	return events, nil
}

// streamable reports whether the agent can stream model deltas
// directly. Any enabled tool or MCP server forces the buffered path.
func streamable(cfg types.AgentConfig) bool {
	if cfg.AgentType == types.AgentTypeConversational {
		return true
	}
	if len(cfg.MCPServers) > 0 {
		return false
	}
	for _, tc := range cfg.Tools {
		if tc.Enabled {
			return false
		}
	}
	return true
}

// streamDirect forwards provider deltas to the caller as they arrive.
func (e *Executor) streamDirect(ctx context.Context, cfg types.AgentConfig, input string, exec *types.Execution, events chan<- StreamEvent) (string, error) {
	provider, err := e.providers(cfg.LLM)
	if err != nil {
		return "", err
	}
	messages, err := e.assembleMessages(ctx, cfg, input)
	if err != nil {
		return "", err
	}

	chunks, err := provider.Stream(ctx, &llm.ChatRequest{
		Model:       cfg.LLM.Model,
		Messages:    messages,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
	})
	if err != nil {
		return "", err
	}

	exec.Iterations = 1
	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return sb.String(), chunk.Err
		}
		if chunk.Usage != nil {
			exec.Tokens += chunk.Usage.TotalTokens
		}
		if chunk.Delta.Content == "" {
			continue
		}
		sb.WriteString(chunk.Delta.Content)
		if !sendEvent(ctx, events, StreamEvent{Type: EventChunk, Content: chunk.Delta.Content}) {
			return sb.String(), ctx.Err()
		}
	}
	return sb.String(), nil
}

// streamBuffered runs the tool-calling loop to completion, emitting
// tool events along the way, then replays the answer word by word.
func (e *Executor) streamBuffered(ctx context.Context, cfg types.AgentConfig, input string, exec *types.Execution, events chan<- StreamEvent) (string, error) {
	output, err := e.run(ctx, cfg, input, exec, func(ev StreamEvent) {
		sendEvent(ctx, events, ev)
	})
	if err != nil {
		return "", err
	}

	words := strings.Fields(output)
	for i, word := range words {
		content := word
		if i < len(words)-1 {
			content += " "
		}
		if !sendEvent(ctx, events, StreamEvent{Type: EventChunk, Content: content}) {
			return output, ctx.Err()
		}
	}
	return output, nil
}

func sendEvent(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
