package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/llm"
	"github.com/BaSui01/agenthub/types"
)

func newTestProvider(baseURL string) *OpenAICompatProvider {
	return NewOpenAICompat(Config{
		Name:    "groq",
		BaseURL: baseURL,
		APIKey:  "sk-test",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3-8b-8192", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-1",
			"model": "llama3-8b-8192",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": "Hello there"},
				},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model: "llama3-8b-8192",
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: "You are helpful."},
			{Role: types.RoleUser, Content: "Hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Content())
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "groq", resp.Provider)
}

func TestCompletionWithToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "function", req.Tools[0].Type)
		assert.Equal(t, "calculator", req.Tools[0].Function.Name)
		assert.NotEmpty(t, req.Tools[0].Function.Parameters)

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-2",
			"model": "llama3-8b-8192",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "tool_calls",
					"message": map[string]any{
						"role": "assistant",
						"tool_calls": []map[string]any{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]any{
									"name":      "calculator",
									"arguments": `{"expression":"2+2"}`,
								},
							},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model:    "llama3-8b-8192",
		Messages: []types.Message{{Role: types.RoleUser, Content: "what is 2+2"}},
		Tools: []types.ToolSchema{
			{
				Name:        "calculator",
				Description: "Evaluate arithmetic",
				Parameters:  json.RawMessage(`{"type":"object","properties":{"expression":{"type":"string"}}}`),
			},
		},
	})
	require.NoError(t, err)
	calls := resp.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "calculator", calls[0].Name)
	assert.JSONEq(t, `{"expression":"2+2"}`, string(calls[0].Arguments))
}

func TestToolCallArgumentsWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the wire format carries arguments as a JSON-encoded string
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		msgs := raw["messages"].([]any)
		assistant := msgs[1].(map[string]any)
		calls := assistant["tool_calls"].([]any)
		fn := calls[0].(map[string]any)["function"].(map[string]any)
		args, ok := fn["arguments"].(string)
		require.True(t, ok, "arguments must be a string on the wire")
		assert.JSONEq(t, `{"expression":"2+2"}`, args)

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-3",
			"model": "m",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": "4"},
				},
			},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model: "m",
		Messages: []types.Message{
			{Role: types.RoleUser, Content: "what is 2+2"},
			{
				Role: types.RoleAssistant,
				ToolCalls: []types.ToolCall{{
					ID:        "call_1",
					Name:      "calculator",
					Arguments: json.RawMessage(`{"expression":"2+2"}`),
				}},
			},
			{Role: types.RoleTool, Content: "4", Name: "calculator", ToolCallID: "call_1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "4", resp.Content())
}

func TestCompletionRetriesRetryableErrors(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"down"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-r",
			"model": "m",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": "ok"},
				},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{
		Name:         "groq",
		BaseURL:      srv.URL,
		APIKey:       "sk-test",
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, zap.NewNop())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content())
	assert.Equal(t, 3, attempts)
}

func TestCompletionDoesNotRetryClientErrors(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{
		Name:         "groq",
		BaseURL:      srv.URL,
		APIKey:       "sk-test",
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, zap.NewNop())

	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
	assert.Equal(t, 1, attempts)
}

func TestCompletionErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		wantCode  types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, types.ErrUnauthorized, false},
		{http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, types.ErrRateLimited, true},
		{http.StatusBadRequest, `{"error":{"message":"quota exhausted"}}`, types.ErrQuotaExceeded, false},
		{http.StatusBadRequest, `{"error":{"message":"bad params"}}`, types.ErrInvalidRequest, false},
		{http.StatusServiceUnavailable, `{"error":{"message":"down"}}`, types.ErrUpstreamError, true},
		{http.StatusGatewayTimeout, `{"error":{"message":"slow"}}`, types.ErrUpstreamTimeout, true},
		{529, `{"error":{"message":"overloaded"}}`, types.ErrModelOverloaded, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d_%s", tt.status, tt.wantCode), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := newTestProvider(srv.URL)
			_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
		})
	}
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"s1","model":"m","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
			`{"id":"s1","model":"m","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
			`{"id":"s1","model":"m","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	ch, err := p.Stream(context.Background(), &llm.ChatRequest{
		Model:    "m",
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var content string
	var finish string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		content += chunk.Delta.Content
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	assert.Equal(t, "Hello", content)
	assert.Equal(t, "stop", finish)
}

func TestStreamUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Stream(context.Background(), &llm.ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Greater(t, status.Latency, time.Duration(0))
}

func TestProviderUnreachable(t *testing.T) {
	p := newTestProvider("http://127.0.0.1:1")
	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, types.ErrProviderUnavailable, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}
