package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/agent"
	api "github.com/BaSui01/agenthub/api/dto"
	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Agent execution
// =============================================================================

// ExecuteHandler serves agent invocation: plain, SSE, and WebSocket.
type ExecuteHandler struct {
	executor *agent.Executor
	logger   *zap.Logger
}

// NewExecuteHandler creates the execution handler.
func NewExecuteHandler(executor *agent.Executor, logger *zap.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		executor: executor,
		logger:   logger.With(zap.String("handler", "execute")),
	}
}

// HandleExecute serves POST /api/v1/agents/{name}/execute.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	req, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	exec, err := h.executor.Execute(r.Context(), name, req.Input)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewExecuteResponse(exec))
}

// HandleExecuteStream serves POST /api/v1/agents/{name}/execute/stream
// as server-sent events. Each event is one JSON-encoded StreamEvent;
// the stream ends with [DONE].
func (h *ExecuteHandler) HandleExecuteStream(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	req, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	events, err := h.executor.ExecuteStream(r.Context(), name, req.Input)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, types.NewError(types.ErrInternalError,
			"streaming not supported"), h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		payload, err := json.Marshal(streamEventPayload(ev))
		if err != nil {
			h.logger.Warn("failed to encode stream event", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// HandleExecuteWS serves GET /api/v1/agents/{name}/execute/ws. The
// client sends one JSON input message and receives the event stream.
func (h *ExecuteHandler) HandleExecuteWS(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()

	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var req api.ExecuteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeWSEvent(ctx, conn, map[string]any{
			"type": "error", "error": "invalid JSON input",
		})
		conn.Close(websocket.StatusUnsupportedData, "invalid input")
		return
	}

	events, err := h.executor.ExecuteStream(ctx, name, req.Input)
	if err != nil {
		writeWSEvent(ctx, conn, map[string]any{
			"type": "error", "error": err.Error(),
		})
		conn.Close(websocket.StatusNormalClosure, "done")
		return
	}

	for ev := range events {
		if err := writeWSEvent(ctx, conn, streamEventPayload(ev)); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")
}

// HandleListExecutions serves GET /api/v1/executions.
func (h *ExecuteHandler) HandleListExecutions(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]any{"active": h.executor.ActiveExecutions()})
}

// HandleCancelExecution serves DELETE /api/v1/executions/{id}.
func (h *ExecuteHandler) HandleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.executor.Cancel(id) {
		WriteError(w, types.NewError(types.ErrNotFound,
			"no active execution: "+id), h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"cancelled": id})
}

func (h *ExecuteHandler) decodeInput(w http.ResponseWriter, r *http.Request) (api.ExecuteRequest, bool) {
	var req api.ExecuteRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return req, false
	}
	if req.Input == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "input is required"), h.logger)
		return req, false
	}
	return req, true
}

// streamEventPayload shapes one stream event for the wire. Errors are
// flattened to text, the final event carries the execution record.
func streamEventPayload(ev agent.StreamEvent) map[string]any {
	payload := map[string]any{"type": string(ev.Type)}
	switch ev.Type {
	case agent.EventChunk:
		payload["content"] = ev.Content
	case agent.EventToolCall:
		payload["tool_call"] = ev.ToolCall
	case agent.EventDone:
		payload["is_final"] = true
		if ev.Execution != nil {
			payload["execution"] = api.NewExecuteResponse(ev.Execution)
		}
	case agent.EventError:
		payload["error"] = ev.Content
	}
	return payload
}

func writeWSEvent(ctx context.Context, conn *websocket.Conn, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
