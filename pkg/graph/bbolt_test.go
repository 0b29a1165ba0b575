package graph

import (
	"encoding/json"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// overwriteEntity replaces a stored entity's record verbatim, bypassing
// CreateEntity's timestamp defaulting — used by tests to backdate
// LastDecayedAt/LastAccessedAt without reaching into unexported internals
// from another package.
func overwriteEntity(s *BoltStore, e *Entity) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketEntities).Put([]byte(e.ID), data)
	})
}

func TestCreateAndGetEntity(t *testing.T) {
	s := newTestStore(t)

	e := &Entity{Name: "user prefers dark mode", Type: "preference", Confidence: 0.9}
	require.NoError(t, s.CreateEntity(e))
	require.NotEmpty(t, e.ID)

	got, err := s.GetEntity(e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Name, got.Name)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
}

func TestGetEntity_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetEntity("missing")
	assert.Error(t, err)
}

func TestListEntitiesAndRelations(t *testing.T) {
	s := newTestStore(t)

	a := &Entity{Name: "a", Confidence: 0.5}
	b := &Entity{Name: "b", Confidence: 0.5}
	require.NoError(t, s.CreateEntity(a))
	require.NoError(t, s.CreateEntity(b))

	r := &Relation{FromID: a.ID, ToID: b.ID, Type: "relates-to", Confidence: 0.8}
	require.NoError(t, s.CreateRelation(r))

	entities, err := s.ListEntities()
	require.NoError(t, err)
	assert.Len(t, entities, 2)

	relations, err := s.ListRelations()
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, a.ID, relations[0].FromID)

	n, err := s.CountEntities()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountRelations()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDecayConfidence_HalvesAfterOneHalfLife(t *testing.T) {
	s := newTestStore(t)
	halfLife := time.Hour

	e := &Entity{Name: "a", Confidence: 0.8}
	require.NoError(t, s.CreateEntity(e))

	// Backdate LastDecayedAt by exactly one half-life so the next decay
	// pass sees a full half-life elapsed.
	e.LastDecayedAt = time.Now().Add(-halfLife)
	require.NoError(t, overwriteEntity(s, e))

	require.NoError(t, s.DecayConfidence(halfLife))

	got, err := s.GetEntity(e.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got.Confidence, 1e-3)
}

func TestDecayFactor_Boundaries(t *testing.T) {
	halfLife := time.Hour

	assert.InDelta(t, 1.0, decayFactor(0, halfLife), 1e-9)
	assert.InDelta(t, 0.5, decayFactor(halfLife, halfLife), 1e-6)
	assert.InDelta(t, 0.25, decayFactor(2*halfLife, halfLife), 1e-6)
	assert.InDelta(t, 1.0, decayFactor(halfLife, 0), 1e-9, "zero half-life disables decay rather than dividing by zero")
}

func TestCleanupLowConfidence_RemovesBelowThreshold(t *testing.T) {
	s := newTestStore(t)

	keep := &Entity{Name: "keep", Confidence: 0.5}
	drop := &Entity{Name: "drop", Confidence: 0.01}
	require.NoError(t, s.CreateEntity(keep))
	require.NoError(t, s.CreateEntity(drop))

	rel := &Relation{FromID: keep.ID, ToID: drop.ID, Confidence: 0.01}
	require.NoError(t, s.CreateRelation(rel))

	removed, err := s.CleanupLowConfidence(0.05)
	require.NoError(t, err)
	assert.Equal(t, 2, removed) // drop entity + low-confidence relation

	entities, err := s.ListEntities()
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "keep", entities[0].Name)

	relations, err := s.ListRelations()
	require.NoError(t, err)
	assert.Empty(t, relations)
}

func TestCleanupOldNodes_RemovesStaleByLastAccessed(t *testing.T) {
	s := newTestStore(t)

	fresh := &Entity{Name: "fresh", Confidence: 0.9}
	stale := &Entity{Name: "stale", Confidence: 0.9}
	require.NoError(t, s.CreateEntity(fresh))
	require.NoError(t, s.CreateEntity(stale))

	stale.LastAccessedAt = time.Now().Add(-200 * 24 * time.Hour)
	require.NoError(t, overwriteEntity(s, stale))

	removed, err := s.CleanupOldNodes(90 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entities, err := s.ListEntities()
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "fresh", entities[0].Name)
}
