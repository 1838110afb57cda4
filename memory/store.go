package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/agenthub/types"
)

// Store persists conversation entries per agent.
type Store interface {
	// Append adds one entry to the agent's history.
	Append(ctx context.Context, entry types.MemoryEntry) error
	// History returns entries in chronological order. limit <= 0 returns all.
	History(ctx context.Context, agent string, limit int) ([]types.MemoryEntry, error)
	// TrimOldest drops the n oldest entries from the agent's history.
	TrimOldest(ctx context.Context, agent string, n int) error
	// Clear removes the agent's history.
	Clear(ctx context.Context, agent string) error
}

// NewEntry builds a memory entry for one conversation turn.
func NewEntry(agent string, role types.Role, content string) types.MemoryEntry {
	return types.MemoryEntry{
		ID:        uuid.NewString(),
		AgentName: agent,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// Stats summarizes an agent's stored history.
type Stats struct {
	AgentName       string     `json:"agent_name"`
	Entries         int        `json:"entries"`
	EstimatedTokens int        `json:"estimated_tokens"`
	OldestEntry     *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry     *time.Time `json:"newest_entry,omitempty"`
}

// ComputeStats derives stats from a chronological entry list.
func ComputeStats(agent string, entries []types.MemoryEntry) Stats {
	s := Stats{AgentName: agent, Entries: len(entries)}
	for _, e := range entries {
		s.EstimatedTokens += CountTokens(e.Content)
	}
	if len(entries) > 0 {
		oldest := entries[0].Timestamp
		newest := entries[len(entries)-1].Timestamp
		s.OldestEntry = &oldest
		s.NewestEntry = &newest
	}
	return s
}
