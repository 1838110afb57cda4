package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/types"
)

func newTestAgentStore(t *testing.T) (*AgentStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.json")
	s, err := NewAgentStore(path, zap.NewNop())
	require.NoError(t, err)
	return s, path
}

func TestAgentStoreSeedsDefault(t *testing.T) {
	s, path := newTestAgentStore(t)

	agents := s.List()
	require.Len(t, agents, 1)
	assert.Equal(t, DefaultAgentName, agents[0].Name)

	// reopening the same file does not reseed
	s2, err := NewAgentStore(path, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, s2.List(), 1)
}

func TestAgentStoreCRUD(t *testing.T) {
	s, _ := newTestAgentStore(t)

	cfg := types.DefaultAgentConfig("researcher")
	cfg.Description = "Research assistant"
	require.NoError(t, s.Create(cfg))

	err := s.Create(cfg)
	require.Error(t, err)
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))

	got, err := s.Get("researcher")
	require.NoError(t, err)
	assert.Equal(t, "Research assistant", got.Description)

	got.SystemPrompt = "You are a research assistant."
	require.NoError(t, s.Update("researcher", got))
	got, err = s.Get("researcher")
	require.NoError(t, err)
	assert.Equal(t, "You are a research assistant.", got.SystemPrompt)

	require.NoError(t, s.Delete("researcher"))
	_, err = s.Get("researcher")
	assert.Equal(t, types.ErrAgentNotFound, types.GetErrorCode(err))
}

func TestAgentStoreRejectsInvalid(t *testing.T) {
	s, _ := newTestAgentStore(t)

	bad := types.DefaultAgentConfig("bad")
	bad.SystemPrompt = ""
	err := s.Create(bad)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestAgentStoreProtectsDefault(t *testing.T) {
	s, _ := newTestAgentStore(t)

	err := s.Delete(DefaultAgentName)
	require.Error(t, err)
	assert.Equal(t, types.ErrForbidden, types.GetErrorCode(err))
}

func TestAgentStoreDuplicate(t *testing.T) {
	s, _ := newTestAgentStore(t)

	src, err := s.Get(DefaultAgentName)
	require.NoError(t, err)

	dup, err := s.Duplicate(DefaultAgentName, "default-copy")
	require.NoError(t, err)
	assert.Equal(t, "default-copy", dup.Name)
	assert.Equal(t, "Copy of "+src.Description, dup.Description)

	_, err = s.Duplicate(DefaultAgentName, "default-copy")
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))

	_, err = s.Duplicate("ghost", "whatever")
	assert.Equal(t, types.ErrAgentNotFound, types.GetErrorCode(err))

	// mutating the copy does not touch the source
	dup.Tools[0].Enabled = false
	require.NoError(t, s.Update("default-copy", dup))
	src, err = s.Get(DefaultAgentName)
	require.NoError(t, err)
	assert.True(t, src.Tools[0].Enabled)
}

func TestAgentStorePersistsAcrossReopen(t *testing.T) {
	s, path := newTestAgentStore(t)
	require.NoError(t, s.Create(types.DefaultAgentConfig("keeper")))

	s2, err := NewAgentStore(path, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, s2.Exists("keeper"))
	assert.True(t, s2.Exists(DefaultAgentName))
}

func TestAgentStoreReload(t *testing.T) {
	s, path := newTestAgentStore(t)

	// second handle writes a new agent behind the first handle's back
	s2, err := NewAgentStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s2.Create(types.DefaultAgentConfig("external")))

	assert.False(t, s.Exists("external"))
	require.NoError(t, s.Reload())
	assert.True(t, s.Exists("external"))
}
