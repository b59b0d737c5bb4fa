package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "notewell"
	keyringAccount = "session-store"
)

// KeyringKV is a KV backed by the OS keyring. The whole key space is stored
// as one JSON blob under a single keyring entry so Commit stays atomic.
type KeyringKV struct {
	mu     sync.RWMutex
	values map[string]string
	staged map[string]*string
}

// NewKeyringKV opens the keyring-backed store, loading any previously
// committed state.
func NewKeyringKV() (*KeyringKV, error) {
	values := make(map[string]string)

	blob, err := keyring.Get(keyringService, keyringAccount)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		// first run
	case err != nil:
		return nil, fmt.Errorf("OS keyring is not available: %w", err)
	default:
		if err := json.Unmarshal([]byte(blob), &values); err != nil {
			return nil, fmt.Errorf("failed to decode keyring store: %w", err)
		}
	}

	return &KeyringKV{
		values: values,
		staged: make(map[string]*string),
	}, nil
}

// Get returns the committed or staged value for key.
func (k *KeyringKV) Get(key string) (string, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if staged, ok := k.staged[key]; ok {
		if staged == nil {
			return "", false, nil
		}
		return *staged, true, nil
	}
	value, ok := k.values[key]
	return value, ok, nil
}

// Put stages a value for key.
func (k *KeyringKV) Put(key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.staged[key] = &value
	return nil
}

// Remove stages deletion of key.
func (k *KeyringKV) Remove(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.staged[key] = nil
	return nil
}

// Commit applies staged changes and rewrites the keyring entry.
func (k *KeyringKV) Commit() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for key, value := range k.staged {
		if value == nil {
			delete(k.values, key)
		} else {
			k.values[key] = *value
		}
	}
	k.staged = make(map[string]*string)

	if len(k.values) == 0 {
		err := keyring.Delete(keyringService, keyringAccount)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring store: %w", err)
		}
		return nil
	}

	blob, err := json.Marshal(k.values)
	if err != nil {
		return fmt.Errorf("failed to marshal keyring store: %w", err)
	}
	if err := keyring.Set(keyringService, keyringAccount, string(blob)); err != nil {
		return fmt.Errorf("failed to write keyring store: %w", err)
	}
	return nil
}
