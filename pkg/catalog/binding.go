package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/cuemby/agentpool/pkg/types"
)

// Binding is a subagent label's resolved model assignment.
type Binding struct {
	ModelID       string                  `json:"modelId"`
	AutoLoad      bool                    `json:"autoLoad"`
	AutoUnload    bool                    `json:"autoUnload"`
	UnloadDelayMs int                     `json:"unloadDelayMs,omitempty"`
	Server        *types.ServerDescriptor `json:"server,omitempty"`
}

// BindingStore is the whole-file JSON object mapping subagent label to
// Binding, persisted atomically.
type BindingStore struct {
	mu       sync.RWMutex
	path     string
	bindings map[string]Binding
}

// LoadBindingStore reads the binding file at path, treating a missing file
// as empty.
func LoadBindingStore(path string) (*BindingStore, error) {
	s := &BindingStore{path: path, bindings: make(map[string]Binding)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bindings: %w", err)
	}
	if err := json.Unmarshal(data, &s.bindings); err != nil {
		return nil, fmt.Errorf("parse bindings: %w", err)
	}
	return s, nil
}

func (s *BindingStore) save() error {
	data, err := json.MarshalIndent(s.bindings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bindings: %w", err)
	}
	return atomicWriteFile(s.path, data)
}

// Get returns the binding for label and whether it exists.
func (s *BindingStore) Get(label string) (Binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[label]
	return b, ok
}

// Set assigns label's binding.
func (s *BindingStore) Set(label string, binding Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[label] = binding
	return s.save()
}

// Remove deletes label's binding, if present.
func (s *BindingStore) Remove(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bindings[label]; !ok {
		return nil
	}
	delete(s.bindings, label)
	return s.save()
}

// All returns a copy of every label-to-binding mapping.
func (s *BindingStore) All() map[string]Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Binding, len(s.bindings))
	for k, v := range s.bindings {
		out[k] = v
	}
	return out
}
