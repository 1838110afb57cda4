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
// MCP server store
// =============================================================================

// defaultServers are seeded into an empty registry, matching the tool
// servers the service ships with.
func defaultServers() []types.MCPServerConfig {
	return []types.MCPServerConfig{
		{
			Name:        "weather",
			Description: "Provides weather information for cities worldwide",
			Transport:   types.TransportHTTP,
			Host:        "localhost",
			Port:        8002,
			Enabled:     true,
		},
		{
			Name:        "memory",
			Description: "Provides persistent memory and knowledge graph capabilities",
			Transport:   types.TransportHTTP,
			Host:        "localhost",
			Port:        8003,
			Enabled:     true,
		},
		{
			Name:        "calculator",
			Description: "Advanced mathematical calculations and computations",
			Transport:   types.TransportHTTP,
			Host:        "localhost",
			Port:        8004,
			Enabled:     true,
		},
	}
}

// ServerStore persists MCP server definitions in a single JSON file.
type ServerStore struct {
	mu      sync.RWMutex
	path    string
	servers map[string]types.MCPServerConfig
	logger  *zap.Logger
}

// NewServerStore opens the store at path, loading existing definitions.
// An empty or missing registry is seeded with the default servers.
func NewServerStore(path string, logger *zap.Logger) (*ServerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ServerStore{
		path:    path,
		servers: make(map[string]types.MCPServerConfig),
		logger:  logger.With(zap.String("component", "server_store")),
	}
	var list []types.MCPServerConfig
	if err := readJSONFile(path, &list); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, srv := range list {
		s.servers[srv.Name] = srv
	}
	if len(s.servers) == 0 {
		for _, srv := range defaultServers() {
			s.servers[srv.Name] = srv
		}
		if err := s.flush(); err != nil {
			return nil, err
		}
		s.logger.Info("seeded default mcp servers", zap.Int("count", len(s.servers)))
	}
	return s, nil
}

// flush writes the current state. Callers must hold the lock.
func (s *ServerStore) flush() error {
	list := make([]types.MCPServerConfig, 0, len(s.servers))
	for _, srv := range s.servers {
		list = append(list, srv)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return writeJSONFile(s.path, list)
}

// List returns all server definitions sorted by name.
func (s *ServerStore) List() []types.MCPServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]types.MCPServerConfig, 0, len(s.servers))
	for _, srv := range s.servers {
		list = append(list, srv)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Get returns the named server definition.
func (s *ServerStore) Get(name string) (types.MCPServerConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	srv, ok := s.servers[name]
	if !ok {
		return types.MCPServerConfig{}, types.NewError(types.ErrServerNotFound,
			fmt.Sprintf("server not found: %s", name))
	}
	return srv, nil
}

// Create stores a new server definition.
func (s *ServerStore) Create(cfg types.MCPServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.servers[cfg.Name]; exists {
		return types.NewError(types.ErrConflict,
			fmt.Sprintf("server already exists: %s", cfg.Name))
	}
	s.servers[cfg.Name] = cfg
	if err := s.flush(); err != nil {
		delete(s.servers, cfg.Name)
		return err
	}
	s.logger.Info("mcp server registered",
		zap.String("server", cfg.Name), zap.String("transport", string(cfg.Transport)))
	return nil
}

// Update replaces an existing server definition. The name is immutable.
func (s *ServerStore) Update(name string, cfg types.MCPServerConfig) error {
	cfg.Name = name
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, exists := s.servers[name]
	if !exists {
		return types.NewError(types.ErrServerNotFound,
			fmt.Sprintf("server not found: %s", name))
	}
	s.servers[name] = cfg
	if err := s.flush(); err != nil {
		s.servers[name] = prev
		return err
	}
	s.logger.Info("mcp server updated", zap.String("server", name))
	return nil
}

// Delete removes a server definition.
func (s *ServerStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, exists := s.servers[name]
	if !exists {
		return types.NewError(types.ErrServerNotFound,
			fmt.Sprintf("server not found: %s", name))
	}
	delete(s.servers, name)
	if err := s.flush(); err != nil {
		s.servers[name] = prev
		return err
	}
	s.logger.Info("mcp server removed", zap.String("server", name))
	return nil
}

// Reload discards in-memory state and re-reads the backing file.
func (s *ServerStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []types.MCPServerConfig
	if err := readJSONFile(s.path, &list); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.servers = make(map[string]types.MCPServerConfig, len(list))
	for _, srv := range list {
		s.servers[srv.Name] = srv
	}
	s.logger.Info("mcp servers reloaded", zap.Int("count", len(s.servers)))
	return nil
}

// SetEnabled toggles the enabled flag of a server definition.
func (s *ServerStore) SetEnabled(name string, enabled bool) (types.MCPServerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv, exists := s.servers[name]
	if !exists {
		return types.MCPServerConfig{}, types.NewError(types.ErrServerNotFound,
			fmt.Sprintf("server not found: %s", name))
	}
	if srv.Enabled == enabled {
		return srv, nil
	}
	prev := srv
	srv.Enabled = enabled
	s.servers[name] = srv
	if err := s.flush(); err != nil {
		s.servers[name] = prev
		return types.MCPServerConfig{}, err
	}
	s.logger.Info("mcp server toggled",
		zap.String("server", name), zap.Bool("enabled", enabled))
	return srv, nil
}
