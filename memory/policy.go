package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Context policies
// =============================================================================

// DefaultSummaryPrompt instructs the model how to condense history.
const DefaultSummaryPrompt = "Summarize the following conversation concisely, " +
	"preserving key facts, decisions, and open questions:"

// Summarizer condenses text. The LLM-backed implementation lives with
// the execution layer to keep this package free of provider imports.
type Summarizer interface {
	Summarize(ctx context.Context, prompt, text string) (string, error)
}

// Manager loads, shapes, and records conversation memory for agents.
type Manager struct {
	store      Store
	summarizer Summarizer
	logger     *zap.Logger
}

// NewManager creates a memory manager. summarizer may be nil, in which
// case the summary policy condenses older turns extractively instead
// of calling a model.
func NewManager(store Store, summarizer Summarizer, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      store,
		summarizer: summarizer,
		logger:     logger.With(zap.String("component", "memory")),
	}
}

// Record appends one conversation turn for the agent and evicts the
// oldest entries once the stored history exceeds the token budget.
// Agents with the none policy record nothing.
func (m *Manager) Record(ctx context.Context, agent types.AgentConfig, role types.Role, content string) error {
	if agent.Memory.Type == types.MemoryNone || agent.Memory.Type == "" {
		return nil
	}
	if err := m.store.Append(ctx, NewEntry(agent.Name, role, content)); err != nil {
		return err
	}
	return m.enforceBudget(ctx, agent)
}

// enforceBudget trims stored history down to the agent's token budget,
// oldest first. The newest entry is always kept.
func (m *Manager) enforceBudget(ctx context.Context, agent types.AgentConfig) error {
	budget := agent.Memory.MaxTokens
	if budget <= 0 {
		budget = 2000
	}
	entries, err := m.store.History(ctx, agent.Name, 0)
	if err != nil {
		return err
	}
	total := 0
	for _, e := range entries {
		total += CountTokens(e.Content)
	}
	drop := 0
	for total > budget && drop < len(entries)-1 {
		total -= CountTokens(entries[drop].Content)
		drop++
	}
	if drop == 0 {
		return nil
	}
	m.logger.Debug("evicting memory entries",
		zap.String("agent", agent.Name), zap.Int("evicted", drop))
	return m.store.TrimOldest(ctx, agent.Name, drop)
}

// Load returns the prior conversation as messages shaped by the agent's
// memory policy and token budget.
func (m *Manager) Load(ctx context.Context, agent types.AgentConfig) ([]types.Message, error) {
	if agent.Memory.Type == types.MemoryNone || agent.Memory.Type == "" {
		return nil, nil
	}

	entries, err := m.store.History(ctx, agent.Name, 0)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	budget := agent.Memory.MaxTokens
	if budget <= 0 {
		budget = 2000
	}

	switch agent.Memory.Type {
	case types.MemorySummary:
		return m.summaryContext(ctx, agent, entries, budget)
	default:
		return bufferContext(entries, budget), nil
	}
}

// History returns raw stored entries for inspection APIs.
func (m *Manager) History(ctx context.Context, agent string, limit int) ([]types.MemoryEntry, error) {
	return m.store.History(ctx, agent, limit)
}

// Query returns stored entries in chronological order. A non-empty
// search keeps only entries containing it case-insensitively; limit
// keeps the newest N of what remains (0 means all).
func (m *Manager) Query(ctx context.Context, agent string, limit int, search string) ([]types.MemoryEntry, error) {
	entries, err := m.store.History(ctx, agent, 0)
	if err != nil {
		return nil, err
	}
	if search != "" {
		needle := strings.ToLower(search)
		filtered := entries[:0:0]
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Content), needle) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Clear wipes the agent's stored history.
func (m *Manager) Clear(ctx context.Context, agent string) error {
	return m.store.Clear(ctx, agent)
}

// GetStats reports entry and token counts for the agent.
func (m *Manager) GetStats(ctx context.Context, agent string) (Stats, error) {
	entries, err := m.store.History(ctx, agent, 0)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(agent, entries), nil
}

// bufferContext keeps the newest entries that fit the budget, returned
// in chronological order. At least the newest entry is always kept.
func bufferContext(entries []types.MemoryEntry, budget int) []types.Message {
	total := 0
	start := len(entries)
	for i := len(entries) - 1; i >= 0; i-- {
		cost := CountTokens(entries[i].Content)
		if total+cost > budget && start < len(entries) {
			break
		}
		total += cost
		start = i
	}

	msgs := make([]types.Message, 0, len(entries)-start)
	for _, e := range entries[start:] {
		msgs = append(msgs, types.Message{Role: e.Role, Content: e.Content})
	}
	return msgs
}

// summaryContext condenses entries that overflow the budget into one
// synopsis message, keeping the recent tail verbatim.
func (m *Manager) summaryContext(ctx context.Context, agent types.AgentConfig, entries []types.MemoryEntry, budget int) ([]types.Message, error) {
	// recent turns get half the budget verbatim
	tailBudget := budget / 2
	total := 0
	split := len(entries)
	for i := len(entries) - 1; i >= 0; i-- {
		cost := CountTokens(entries[i].Content)
		if total+cost > tailBudget && split < len(entries) {
			break
		}
		total += cost
		split = i
	}

	older := entries[:split]
	if len(older) == 0 {
		return bufferContext(entries, budget), nil
	}

	var summary string
	if m.summarizer != nil {
		var sb strings.Builder
		for _, e := range older {
			fmt.Fprintf(&sb, "%s: %s\n", e.Role, e.Content)
		}

		prompt := agent.Memory.SummaryPrompt
		if prompt == "" {
			prompt = DefaultSummaryPrompt
		}

		out, err := m.summarizer.Summarize(ctx, prompt, sb.String())
		if err != nil {
			m.logger.Warn("summary failed, using extractive fallback",
				zap.String("agent", agent.Name), zap.Error(err))
		} else {
			summary = out
		}
	}
	if summary == "" {
		summary = extractiveSummary(older)
	}
	if summary == "" {
		return bufferContext(entries, budget), nil
	}

	msgs := make([]types.Message, 0, len(entries)-split+1)
	msgs = append(msgs, types.Message{
		Role:    types.RoleSystem,
		Content: "Summary of earlier conversation: " + summary,
	})
	for _, e := range entries[split:] {
		msgs = append(msgs, types.Message{Role: e.Role, Content: e.Content})
	}
	return msgs, nil
}

// extractiveSummary condenses entries without a model by quoting the
// last ten user and assistant turns, each truncated to 100 characters.
func extractiveSummary(entries []types.MemoryEntry) string {
	if len(entries) > 10 {
		entries = entries[len(entries)-10:]
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		text := e.Content
		if len(text) > 100 {
			text = text[:100] + "..."
		}
		switch e.Role {
		case types.RoleUser:
			parts = append(parts, "User asked: "+text)
		case types.RoleAssistant:
			parts = append(parts, "Assistant responded: "+text)
		}
	}
	return strings.Join(parts, " | ")
}
