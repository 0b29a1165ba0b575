package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/agentpool/pkg/types"
)

// Store is the whole-file JSON subagent catalog: an array of
// SubagentDefinitions persisted atomically on every mutation.
type Store struct {
	mu   sync.RWMutex
	path string
	defs map[string]*types.SubagentDefinition
}

// Load reads the catalog at path, treating a missing file as an empty
// catalog.
func Load(path string) (*Store, error) {
	s := &Store{path: path, defs: make(map[string]*types.SubagentDefinition)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var list []*types.SubagentDefinition
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for _, d := range list {
		s.defs[d.ID] = d
	}
	return s, nil
}

// save serializes the catalog sorted by id and writes it atomically. Must
// be called with s.mu held.
func (s *Store) save() error {
	list := make([]*types.SubagentDefinition, 0, len(s.defs))
	for _, d := range s.defs {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	return atomicWriteFile(s.path, data)
}

// Get returns a deep copy of the definition with id, or nil if absent.
func (s *Store) Get(id string) *types.SubagentDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defs[id].Clone()
}

// List returns deep copies of every definition in the catalog.
func (s *Store) List() []*types.SubagentDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.SubagentDefinition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Upsert inserts def, or replaces the existing definition with the same id.
func (s *Store) Upsert(def *types.SubagentDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defs[def.ID] = def.Clone()
	return s.save()
}

// Remove deletes the definition with id, if present.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.defs[id]; !ok {
		return nil
	}
	delete(s.defs, id)
	return s.save()
}

// Duplicate deep-copies the definition with id into a new entry under
// newID/newName, preserving model and behavior configuration.
func (s *Store) Duplicate(id, newID, newName string) (*types.SubagentDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.defs[id]
	if !ok {
		return nil, fmt.Errorf("catalog: no definition with id %q", id)
	}
	if _, exists := s.defs[newID]; exists {
		return nil, fmt.Errorf("catalog: definition with id %q already exists", newID)
	}

	dup := src.Clone()
	dup.ID = newID
	dup.Name = newName

	s.defs[newID] = dup
	if err := s.save(); err != nil {
		return nil, err
	}
	return dup.Clone(), nil
}

// exportEnvelope wraps a single definition for cross-installation transfer.
type exportEnvelope struct {
	Version    int                        `json:"version"`
	ExportedAt time.Time                  `json:"exportedAt"`
	Definition *types.SubagentDefinition  `json:"definition"`
}

const exportVersion = 1

// Export serializes the definition with id into a versioned, timestamped
// envelope.
func (s *Store) Export(id string) ([]byte, error) {
	s.mu.RLock()
	def, ok := s.defs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("catalog: no definition with id %q", id)
	}

	env := exportEnvelope{Version: exportVersion, ExportedAt: time.Now(), Definition: def.Clone()}
	return json.MarshalIndent(env, "", "  ")
}

// Import parses an exported envelope and returns the definition it
// contains. It does not mutate the catalog; call Upsert with the result to
// install it.
func Import(data []byte) (*types.SubagentDefinition, error) {
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("catalog: parse import envelope: %w", err)
	}
	if env.Definition == nil {
		return nil, fmt.Errorf("catalog: import envelope has no definition")
	}
	return env.Definition, nil
}
