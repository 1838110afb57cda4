package store

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Agent store
// =============================================================================

// DefaultAgentName is the seeded agent that cannot be deleted.
const DefaultAgentName = "default"

// AgentStore persists agent configurations in a single JSON file.
type AgentStore struct {
	mu     sync.RWMutex
	path   string
	agents map[string]types.AgentConfig
	logger *zap.Logger
}

// NewAgentStore opens the store at path, loading existing definitions.
// An empty or missing store is seeded with the default agent.
func NewAgentStore(path string, logger *zap.Logger) (*AgentStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AgentStore{
		path:   path,
		agents: make(map[string]types.AgentConfig),
		logger: logger.With(zap.String("component", "agent_store")),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if len(s.agents) == 0 {
		def := types.DefaultAgentConfig(DefaultAgentName)
		s.agents[def.Name] = def
		if err := s.flush(); err != nil {
			return nil, err
		}
		s.logger.Info("seeded default agent", zap.String("agent", def.Name))
	}
	return s, nil
}

func (s *AgentStore) load() error {
	var list []types.AgentConfig
	if err := readJSONFile(s.path, &list); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, a := range list {
		s.agents[a.Name] = a
	}
	return nil
}

// flush writes the current state. Callers must hold the lock.
func (s *AgentStore) flush() error {
	list := make([]types.AgentConfig, 0, len(s.agents))
	for _, a := range s.agents {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return writeJSONFile(s.path, list)
}

// List returns all agents sorted by name.
func (s *AgentStore) List() []types.AgentConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]types.AgentConfig, 0, len(s.agents))
	for _, a := range s.agents {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Get returns the named agent.
func (s *AgentStore) Get(name string) (types.AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[name]
	if !ok {
		return types.AgentConfig{}, types.NewError(types.ErrAgentNotFound,
			fmt.Sprintf("agent not found: %s", name))
	}
	return a, nil
}

// Exists reports whether the named agent is stored.
func (s *AgentStore) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.agents[name]
	return ok
}

// Create stores a new agent. The name must be unused.
func (s *AgentStore) Create(cfg types.AgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.agents[cfg.Name]; exists {
		return types.NewError(types.ErrConflict,
			fmt.Sprintf("agent already exists: %s", cfg.Name))
	}
	s.agents[cfg.Name] = cfg
	if err := s.flush(); err != nil {
		delete(s.agents, cfg.Name)
		return err
	}
	s.logger.Info("agent created", zap.String("agent", cfg.Name))
	return nil
}

// Update replaces an existing agent definition. The name is immutable.
func (s *AgentStore) Update(name string, cfg types.AgentConfig) error {
	cfg.Name = name
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, exists := s.agents[name]
	if !exists {
		return types.NewError(types.ErrAgentNotFound,
			fmt.Sprintf("agent not found: %s", name))
	}
	s.agents[name] = cfg
	if err := s.flush(); err != nil {
		s.agents[name] = prev
		return err
	}
	s.logger.Info("agent updated", zap.String("agent", name))
	return nil
}

// Delete removes an agent. The default agent is protected.
func (s *AgentStore) Delete(name string) error {
	if name == DefaultAgentName {
		return types.NewError(types.ErrForbidden, "cannot delete the default agent")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, exists := s.agents[name]
	if !exists {
		return types.NewError(types.ErrAgentNotFound,
			fmt.Sprintf("agent not found: %s", name))
	}
	delete(s.agents, name)
	if err := s.flush(); err != nil {
		s.agents[name] = prev
		return err
	}
	s.logger.Info("agent deleted", zap.String("agent", name))
	return nil
}

// Duplicate copies an existing agent under a new name.
func (s *AgentStore) Duplicate(name, newName string) (types.AgentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, exists := s.agents[name]
	if !exists {
		return types.AgentConfig{}, types.NewError(types.ErrAgentNotFound,
			fmt.Sprintf("agent not found: %s", name))
	}
	if _, exists := s.agents[newName]; exists {
		return types.AgentConfig{}, types.NewError(types.ErrConflict,
			fmt.Sprintf("agent already exists: %s", newName))
	}

	dup := src
	dup.Name = newName
	dup.Description = "Copy of " + src.Description
	dup.Tools = append([]types.ToolConfig(nil), src.Tools...)
	dup.MCPServers = append([]string(nil), src.MCPServers...)
	if err := dup.Validate(); err != nil {
		return types.AgentConfig{}, err
	}

	s.agents[newName] = dup
	if err := s.flush(); err != nil {
		delete(s.agents, newName)
		return types.AgentConfig{}, err
	}
	s.logger.Info("agent duplicated",
		zap.String("source", name), zap.String("agent", newName))
	return dup, nil
}

// Reload discards in-memory state and reloads from disk.
func (s *AgentStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make(map[string]types.AgentConfig)
	var list []types.AgentConfig
	if err := readJSONFile(s.path, &list); err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, a := range list {
		fresh[a.Name] = a
	}
	s.agents = fresh
	s.logger.Info("agent store reloaded", zap.Int("agents", len(fresh)))
	return nil
}
