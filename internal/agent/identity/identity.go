// Package identity persists the agent's device identity and sync settings
// across restarts, decoupled from the storage engine used for records.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Settings is the small persisted state owned by the orchestrator: a stable
// device identifier generated on first run, the configured primary endpoint,
// and the last successful sync checkpoint.
type Settings struct {
	DeviceID          string `json:"device_id"`
	Endpoint          string `json:"endpoint"`
	LastSyncTimestamp int64  `json:"last_sync_timestamp"`
}

// Store loads and saves settings. Load on a fresh installation returns
// zero-value Settings and no error.
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}

// Ensure loads settings from store and generates a device id if none was
// persisted yet. The id is created once and never regenerated while the
// persisted state exists.
func Ensure(store Store) (Settings, error) {
	s, err := store.Load()
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if s.DeviceID != "" {
		return s, nil
	}

	s.DeviceID = uuid.NewString()
	if err := store.Save(s); err != nil {
		return Settings{}, fmt.Errorf("failed to persist device identity: %w", err)
	}
	return s, nil
}

// FileStore keeps settings in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path. Parent directories are
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (Settings, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("corrupt settings file %s: %w", f.path, err)
	}
	return s, nil
}

func (f *FileStore) Save(s Settings) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o770); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o660)
}

// MemoryStore holds settings in memory. Used by tests.
type MemoryStore struct {
	s Settings
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (Settings, error) { return m.s, nil }

func (m *MemoryStore) Save(s Settings) error {
	m.s = s
	return nil
}
