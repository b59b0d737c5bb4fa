package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
)

// FileKV is a KV backed by an unencrypted JSON file. Prefer KeyringKV where
// an OS keyring is available; the file backend exists for headless hosts.
type FileKV struct {
	filePath string
	mu       sync.RWMutex
	values   map[string]string
	staged   map[string]*string
}

// fileStructure is the structure of the on-disk file.
type fileStructure struct {
	Values map[string]string `json:"values"`
}

// NewFileKV opens (or creates) a JSON-file store at filePath.
func NewFileKV(filePath string) (*FileKV, error) {
	filePath = path.Clean(filePath)

	values := make(map[string]string)
	contents, err := os.ReadFile(filePath) // #nosec G304 - path chosen by the embedding application
	switch {
	case os.IsNotExist(err):
		// first run
	case err != nil:
		return nil, fmt.Errorf("failed to open store file: %w", err)
	case len(contents) > 0:
		var parsed fileStructure
		if err := json.Unmarshal(contents, &parsed); err != nil {
			return nil, fmt.Errorf("failed to decode store file: %w", err)
		}
		if parsed.Values != nil {
			values = parsed.Values
		}
	}

	return &FileKV{
		filePath: filePath,
		values:   values,
		staged:   make(map[string]*string),
	}, nil
}

// NewDefaultFileKV opens the store at its default XDG data location.
func NewDefaultFileKV() (*FileKV, error) {
	filePath, err := xdg.DataFile("notewell/session")
	if err != nil {
		return nil, fmt.Errorf("unable to access store file path: %w", err)
	}
	return NewFileKV(filePath)
}

// Get returns the committed or staged value for key.
func (f *FileKV) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if staged, ok := f.staged[key]; ok {
		if staged == nil {
			return "", false, nil
		}
		return *staged, true, nil
	}
	value, ok := f.values[key]
	return value, ok, nil
}

// Put stages a value for key.
func (f *FileKV) Put(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged[key] = &value
	return nil
}

// Remove stages deletion of key.
func (f *FileKV) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged[key] = nil
	return nil
}

// Commit applies staged changes and rewrites the file. The write goes to a
// temp file first and is moved into place so a crash cannot leave a
// half-written store.
func (f *FileKV) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, value := range f.staged {
		if value == nil {
			delete(f.values, key)
		} else {
			f.values[key] = *value
		}
	}
	f.staged = make(map[string]*string)

	return f.writeFile()
}

func (f *FileKV) writeFile() error {
	contents, err := json.Marshal(fileStructure{Values: f.values})
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(f.filePath)
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(contents); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set store file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close store file: %w", err)
	}

	if err := os.Rename(tmpName, f.filePath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
