package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// File backend
// =============================================================================

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileStore keeps one JSON file per agent under a directory.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the directory if needed and returns the store.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With(zap.String("component", "memory_file")),
	}, nil
}

func (s *FileStore) path(agent string) string {
	name := unsafePathChars.ReplaceAllString(agent, "_")
	return filepath.Join(s.dir, name+".json")
}

func (s *FileStore) read(agent string) ([]types.MemoryEntry, error) {
	data, err := os.ReadFile(s.path(agent))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []types.MemoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse memory file: %w", err)
	}
	return entries, nil
}

func (s *FileStore) write(agent string, entries []types.MemoryEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(agent)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Append adds one entry to the agent's history.
func (s *FileStore) Append(ctx context.Context, entry types.MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read(entry.AgentName)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	return s.write(entry.AgentName, entries)
}

// History returns entries in chronological order.
func (s *FileStore) History(ctx context.Context, agent string, limit int) ([]types.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read(agent)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// TrimOldest drops the n oldest entries.
func (s *FileStore) TrimOldest(ctx context.Context, agent string, n int) error {
	if n <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read(agent)
	if err != nil {
		return err
	}
	if n >= len(entries) {
		entries = nil
	} else {
		entries = entries[n:]
	}
	return s.write(agent, entries)
}

// Clear removes the agent's history file.
func (s *FileStore) Clear(ctx context.Context, agent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(agent)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
