package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/cuemby/agentpool/pkg/types"
)

// ModelCatalogEntry is one row of the persisted model catalog: a model the
// coordinator may be asked to start, independent of which subagent (if
// any) is currently bound to it.
type ModelCatalogEntry struct {
	ID                  string                  `json:"id"`
	DisplayName         string                  `json:"displayName"`
	Provider            types.Provider          `json:"provider"`
	ModelPathOrHostedID string                  `json:"modelPathOrHostedId"`
	APIKey              string                  `json:"apiKey,omitempty"`
	Server              *types.ServerDescriptor `json:"server,omitempty"`
	Hints               *types.ResourceHints    `json:"hints,omitempty"`

	// IsMainAgent makes `serve` start this entry as a main backend, which
	// StopSubagentBackend and a non-forced StopAll never stop.
	// IsSubagentOnly is persisted and listed only; no stop path reads it.
	IsMainAgent    bool `json:"isMainAgent,omitempty"`
	IsSubagentOnly bool `json:"isSubagentOnly,omitempty"`
}

// ModelCatalog is the whole-file JSON catalog of known models, persisted
// atomically.
type ModelCatalog struct {
	mu      sync.RWMutex
	path    string
	entries map[string]*ModelCatalogEntry
}

// LoadModelCatalog reads the model catalog at path, treating a missing
// file as empty.
func LoadModelCatalog(path string) (*ModelCatalog, error) {
	c := &ModelCatalog{path: path, entries: make(map[string]*ModelCatalogEntry)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}

	var list []*ModelCatalogEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}
	for _, e := range list {
		c.entries[e.ID] = e
	}
	return c, nil
}

func (c *ModelCatalog) save() error {
	list := make([]*ModelCatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model catalog: %w", err)
	}
	return atomicWriteFile(c.path, data)
}

// Get returns the entry with id, or nil if absent.
func (c *ModelCatalog) Get(id string) *ModelCatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// List returns every entry, sorted by id.
func (c *ModelCatalog) List() []*ModelCatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*ModelCatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HasRemoteEntry reports whether any entry's server descriptor targets a
// remote host or a remote Docker daemon, the signal the memory accountant
// uses to detect a remote-gpu deployment.
func (c *ModelCatalog) HasRemoteEntry() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Server.IsRemoteOrDockerRemote() {
			return true
		}
	}
	return false
}

// Upsert inserts or replaces the entry with id.
func (c *ModelCatalog) Upsert(entry *ModelCatalogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *entry
	c.entries[entry.ID] = &cp
	return c.save()
}

// Remove deletes the entry with id, if present.
func (c *ModelCatalog) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; !ok {
		return nil
	}
	delete(c.entries, id)
	return c.save()
}
