package types

import "time"

// AgentMetrics accumulates per-agent execution statistics.
//
// Averages are maintained incrementally: avg = (avg*(n-1) + x) / n.
type AgentMetrics struct {
	AgentName        string     `json:"agent_name"`
	TotalExecutions  int64      `json:"total_executions"`
	SuccessCount     int64      `json:"success_count"`
	FailureCount     int64      `json:"failure_count"`
	AvgDurationMs    float64    `json:"avg_duration_ms"`
	AvgTokens        float64    `json:"avg_tokens"`
	TotalToolCalls   int64      `json:"total_tool_calls"`
	LastExecutedAt   *time.Time `json:"last_executed_at,omitempty"`
	LastErrorMessage string     `json:"last_error,omitempty"`
}

// Record folds one finished execution into the running statistics.
func (m *AgentMetrics) Record(durationMs float64, tokens int, toolCalls int, err error) {
	m.TotalExecutions++
	n := float64(m.TotalExecutions)
	m.AvgDurationMs = (m.AvgDurationMs*(n-1) + durationMs) / n
	m.AvgTokens = (m.AvgTokens*(n-1) + float64(tokens)) / n
	m.TotalToolCalls += int64(toolCalls)
	now := time.Now().UTC()
	m.LastExecutedAt = &now
	if err != nil {
		m.FailureCount++
		m.LastErrorMessage = err.Error()
	} else {
		m.SuccessCount++
	}
}

// ToolCallRecord captures one tool invocation during an execution.
type ToolCallRecord struct {
	Name       string        `json:"name"`
	Arguments  string        `json:"arguments,omitempty"`
	Result     string        `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	MCPServer  string        `json:"mcp_server,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Execution is the record of one agent run.
type Execution struct {
	ID         string           `json:"id"`
	AgentName  string           `json:"agent_name"`
	Input      string           `json:"input"`
	Output     string           `json:"output,omitempty"`
	Success    bool             `json:"success"`
	Error      string           `json:"error,omitempty"`
	Iterations int              `json:"iterations"`
	Tokens     int              `json:"tokens"`
	ToolCalls  []ToolCallRecord `json:"tool_calls,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Duration returns the wall-clock duration of the execution.
func (e *Execution) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}
