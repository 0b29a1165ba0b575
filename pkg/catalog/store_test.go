package catalog

import (
	"path/filepath"
	"testing"

	"github.com/cuemby/agentpool/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDef(id string) *types.SubagentDefinition {
	return &types.SubagentDefinition{
		ID:   id,
		Name: "Researcher",
		Model: types.ModelConfig{
			Endpoint: types.Endpoint{Provider: types.ProviderVLLM, Model: "llama-3-8b"},
		},
		Behavior: types.BehaviorConfig{Temperature: 0.7, AutoLoad: true},
	}
}

func TestLoad_MissingFileIsEmptyCatalog(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, err)
	assert.Empty(t, s.List())
}

func TestUpsertGetPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")

	s, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(sampleDef("researcher")))

	reloaded, err := Load(path)
	require.NoError(t, err)

	got := reloaded.Get("researcher")
	require.NotNil(t, got)
	assert.Equal(t, "Researcher", got.Name)
}

func TestUpsert_ReplacesByID(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, err)

	require.NoError(t, s.Upsert(sampleDef("researcher")))
	updated := sampleDef("researcher")
	updated.Name = "Senior Researcher"
	require.NoError(t, s.Upsert(updated))

	assert.Len(t, s.List(), 1)
	assert.Equal(t, "Senior Researcher", s.Get("researcher").Name)
}

func TestGet_ReturnsDeepCopy(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(sampleDef("researcher")))

	got := s.Get("researcher")
	got.Name = "mutated"

	assert.Equal(t, "Researcher", s.Get("researcher").Name)
}

func TestRemove(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(sampleDef("researcher")))

	require.NoError(t, s.Remove("researcher"))
	assert.Nil(t, s.Get("researcher"))

	// removing an absent id is a no-op, not an error
	require.NoError(t, s.Remove("ghost"))
}

func TestDuplicate_DeepCopiesPreservingModelAndBehavior(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(sampleDef("researcher")))

	dup, err := s.Duplicate("researcher", "researcher-2", "Researcher Copy")
	require.NoError(t, err)

	assert.Equal(t, "researcher-2", dup.ID)
	assert.Equal(t, "Researcher Copy", dup.Name)
	assert.Equal(t, types.ProviderVLLM, dup.Model.Endpoint.Provider)
	assert.True(t, dup.Behavior.AutoLoad)

	assert.Len(t, s.List(), 2)
}

func TestDuplicate_RejectsExistingID(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(sampleDef("researcher")))
	require.NoError(t, s.Upsert(sampleDef("other")))

	_, err = s.Duplicate("researcher", "other", "x")
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(sampleDef("researcher")))

	data, err := s.Export("researcher")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)

	imported, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, "researcher", imported.ID)
	assert.Equal(t, "Researcher", imported.Name)
}

func TestImport_RejectsMalformedEnvelope(t *testing.T) {
	_, err := Import([]byte(`{"version":1}`))
	assert.Error(t, err)
}
