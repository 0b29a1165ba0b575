package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/agentpool/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCatalog_UpsertGetRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	c, err := LoadModelCatalog(path)
	require.NoError(t, err)

	require.NoError(t, c.Upsert(&ModelCatalogEntry{ID: "m1", DisplayName: "Llama 3 8B", IsMainAgent: true}))

	reloaded, err := LoadModelCatalog(path)
	require.NoError(t, err)
	got := reloaded.Get("m1")
	require.NotNil(t, got)
	assert.True(t, got.IsMainAgent)

	require.NoError(t, c.Remove("m1"))
	assert.Nil(t, c.Get("m1"))
}

func TestModelCatalog_HasRemoteEntry(t *testing.T) {
	c, err := LoadModelCatalog(filepath.Join(t.TempDir(), "models.json"))
	require.NoError(t, err)
	assert.False(t, c.HasRemoteEntry())

	require.NoError(t, c.Upsert(&ModelCatalogEntry{
		ID:     "remote-1",
		Server: &types.ServerDescriptor{Type: types.ServerTypeRemote},
	}))
	assert.True(t, c.HasRemoteEntry())
}

func TestBindingStore_SetGetRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindings.json")
	s, err := LoadBindingStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Set("researcher", Binding{ModelID: "m1", AutoLoad: true, UnloadDelayMs: 5000}))

	reloaded, err := LoadBindingStore(path)
	require.NoError(t, err)
	b, ok := reloaded.Get("researcher")
	require.True(t, ok)
	assert.Equal(t, "m1", b.ModelID)
	assert.Equal(t, 5000, b.UnloadDelayMs)

	require.NoError(t, s.Remove("researcher"))
	_, ok = s.Get("researcher")
	assert.False(t, ok)
}

func TestOnboardingState_DefaultsWhenMissing(t *testing.T) {
	state, err := LoadOnboardingState(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, state.Version)
	assert.Nil(t, state.BootstrapSeededAt)
}

func TestOnboardingState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".agentpool", "state.json")

	now := time.Now().UTC().Truncate(time.Second)
	state := &OnboardingState{BootstrapSeededAt: &now}
	require.NoError(t, SaveOnboardingState(path, state))

	reloaded, err := LoadOnboardingState(path)
	require.NoError(t, err)
	require.NotNil(t, reloaded.BootstrapSeededAt)
	assert.True(t, reloaded.BootstrapSeededAt.Equal(now))
}
