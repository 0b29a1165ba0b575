package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketEntities  = []byte("entities")
	bucketRelations = []byte("relations")
)

// BoltStore is the reference Store implementation, backed by a bbolt file
// the way pkg/storage's cluster state store is.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "graph.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketEntities, bucketRelations} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// CreateEntity assigns e an id if it lacks one and persists it.
func (s *BoltStore) CreateEntity(e *Entity) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.LastAccessedAt = e.CreatedAt
	e.LastDecayedAt = e.CreatedAt

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketEntities).Put([]byte(e.ID), data)
	})
}

// GetEntity looks up an entity by id.
func (s *BoltStore) GetEntity(id string) (*Entity, error) {
	var e Entity
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEntities).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("graph: entity not found: %s", id)
		}
		return json.Unmarshal(data, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEntities returns every entity in the store.
func (s *BoltStore) ListEntities() ([]*Entity, error) {
	var out []*Entity
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntities).ForEach(func(_, v []byte) error {
			var e Entity
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, &e)
			return nil
		})
	})
	return out, err
}

// CreateRelation assigns r an id if it lacks one and persists it.
func (s *BoltStore) CreateRelation(r *Relation) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.LastDecayedAt = r.CreatedAt

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketRelations).Put([]byte(r.ID), data)
	})
}

// ListRelations returns every relation in the store.
func (s *BoltStore) ListRelations() ([]*Relation, error) {
	var out []*Relation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRelations).ForEach(func(_, v []byte) error {
			var r Relation
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, &r)
			return nil
		})
	})
	return out, err
}

// decayFactor returns the exponential decay multiplier for elapsed time
// against halfLife: 0.5 once a full half-life has elapsed, 1.0 at zero
// elapsed time.
func decayFactor(elapsed, halfLife time.Duration) float64 {
	if elapsed <= 0 || halfLife <= 0 {
		return 1
	}
	return math.Pow(0.5, elapsed.Hours()/halfLife.Hours())
}

// DecayConfidence applies one exponential decay step to every entity and
// relation, measured against each node's own LastDecayedAt so the result
// is correct regardless of how often the scheduler actually calls this.
func (s *BoltStore) DecayConfidence(halfLife time.Duration) error {
	now := time.Now()

	return s.db.Update(func(tx *bolt.Tx) error {
		eb := tx.Bucket(bucketEntities)
		if err := eb.ForEach(func(k, v []byte) error {
			var e Entity
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			e.Confidence *= decayFactor(now.Sub(e.LastDecayedAt), halfLife)
			e.LastDecayedAt = now
			data, err := json.Marshal(&e)
			if err != nil {
				return err
			}
			return eb.Put(k, data)
		}); err != nil {
			return err
		}

		rb := tx.Bucket(bucketRelations)
		return rb.ForEach(func(k, v []byte) error {
			var r Relation
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			r.Confidence *= decayFactor(now.Sub(r.LastDecayedAt), halfLife)
			r.LastDecayedAt = now
			data, err := json.Marshal(&r)
			if err != nil {
				return err
			}
			return rb.Put(k, data)
		})
	})
}

// CleanupLowConfidence deletes every entity and relation whose confidence
// has fallen below threshold.
func (s *BoltStore) CleanupLowConfidence(threshold float64) (int, error) {
	removed := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		eb := tx.Bucket(bucketEntities)
		var deadEntities [][]byte
		if err := eb.ForEach(func(k, v []byte) error {
			var e Entity
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Confidence < threshold {
				deadEntities = append(deadEntities, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range deadEntities {
			if err := eb.Delete(k); err != nil {
				return err
			}
			removed++
		}

		rb := tx.Bucket(bucketRelations)
		var deadRelations [][]byte
		if err := rb.ForEach(func(k, v []byte) error {
			var r Relation
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.Confidence < threshold {
				deadRelations = append(deadRelations, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range deadRelations {
			if err := rb.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})

	return removed, err
}

// CleanupOldNodes deletes every entity not accessed within maxAge. Relations
// referencing a deleted entity are left for CleanupLowConfidence to reap
// once their own confidence decays; this keeps the two cleanup passes
// independent and idempotent.
func (s *BoltStore) CleanupOldNodes(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		eb := tx.Bucket(bucketEntities)
		var stale [][]byte
		if err := eb.ForEach(func(k, v []byte) error {
			var e Entity
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.LastAccessedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := eb.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})

	return removed, err
}

// CountEntities returns the number of entities currently stored.
func (s *BoltStore) CountEntities() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketEntities).Stats().KeyN
		return nil
	})
	return n, err
}

// CountRelations returns the number of relations currently stored.
func (s *BoltStore) CountRelations() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketRelations).Stats().KeyN
		return nil
	})
	return n, err
}
