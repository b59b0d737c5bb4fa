// Package session owns the authenticated session: the credential record,
// its durable persistence, and the process-wide session manager.
package session

import (
	"sync"

	"github.com/notewell/notewell-go/pkg/errors"
)

// KV is the durable key-value space credentials persist into. Writes stage
// in memory until Commit makes them durable in one step.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Put stages a value for key.
	Put(key, value string) error

	// Remove stages deletion of key.
	Remove(key string) error

	// Commit atomically makes all staged changes durable.
	Commit() error
}

// MemoryKV is an in-memory KV for tests and ephemeral sessions.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
	staged map[string]*string // nil value marks a staged removal
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		values: make(map[string]string),
		staged: make(map[string]*string),
	}
}

// Get returns the committed or staged value for key.
func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if staged, ok := m.staged[key]; ok {
		if staged == nil {
			return "", false, nil
		}
		return *staged, true, nil
	}
	value, ok := m.values[key]
	return value, ok, nil
}

// Put stages a value for key.
func (m *MemoryKV) Put(key, value string) error {
	if key == "" {
		return errors.NewInvalidStateError("kv key cannot be empty", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged[key] = &value
	return nil
}

// Remove stages deletion of key.
func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged[key] = nil
	return nil
}

// Commit applies all staged changes.
func (m *MemoryKV) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, value := range m.staged {
		if value == nil {
			delete(m.values, key)
		} else {
			m.values[key] = *value
		}
	}
	m.staged = make(map[string]*string)
	return nil
}
