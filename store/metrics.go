package store

import (
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Agent metrics store
// =============================================================================

// MetricsStore persists per-agent execution statistics in a JSON file.
type MetricsStore struct {
	mu      sync.RWMutex
	path    string
	metrics map[string]*types.AgentMetrics
	logger  *zap.Logger
}

// NewMetricsStore opens the metrics store at path.
func NewMetricsStore(path string, logger *zap.Logger) (*MetricsStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MetricsStore{
		path:    path,
		metrics: make(map[string]*types.AgentMetrics),
		logger:  logger.With(zap.String("component", "metrics_store")),
	}
	var list []*types.AgentMetrics
	if err := readJSONFile(path, &list); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, m := range list {
		s.metrics[m.AgentName] = m
	}
	return s, nil
}

// Record folds a finished execution into the agent's running statistics
// and persists the result.
func (s *MetricsStore) Record(agent string, durationMs float64, tokens, toolCalls int, execErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metrics[agent]
	if !ok {
		m = &types.AgentMetrics{AgentName: agent}
		s.metrics[agent] = m
	}
	m.Record(durationMs, tokens, toolCalls, execErr)
	if err := s.flush(); err != nil {
		s.logger.Warn("failed to persist metrics", zap.Error(err))
		return err
	}
	return nil
}

// Get returns the statistics for one agent. Unknown agents report zeroes.
func (s *MetricsStore) Get(agent string) types.AgentMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.metrics[agent]; ok {
		return *m
	}
	return types.AgentMetrics{AgentName: agent}
}

// All returns statistics for every agent seen so far.
func (s *MetricsStore) All() []types.AgentMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]types.AgentMetrics, 0, len(s.metrics))
	for _, m := range s.metrics {
		list = append(list, *m)
	}
	return list
}

// Reset clears statistics for one agent.
func (s *MetricsStore) Reset(agent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.metrics, agent)
	return s.flush()
}

// flush writes the current state. Callers must hold the lock.
func (s *MetricsStore) flush() error {
	list := make([]*types.AgentMetrics, 0, len(s.metrics))
	for _, m := range s.metrics {
		list = append(list, m)
	}
	return writeJSONFile(s.path, list)
}
