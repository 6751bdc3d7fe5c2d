// Package settings persists cross-session client preferences, replacing the
// browser-storage flags of the original deployment. The backend is injectable
// so tests and embedded consumers can substitute in-memory storage.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Preference keys. The values are stored as strings to keep the file format
// trivially inspectable by operators.
const (
	KeyEnabled = "websocket_enabled"
	KeyDebug   = "websocket_debug"
)

// Store is a minimal key/value preference backend.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Enabled reports whether realtime connections are allowed. Absent key means
// enabled: the protective disable is always an explicit write.
func Enabled(s Store) bool {
	v, ok := s.Get(KeyEnabled)
	return !ok || v != "false"
}

// SetEnabled persists the enable/disable preference.
func SetEnabled(s Store, enabled bool) error {
	return s.Set(KeyEnabled, fmt.Sprintf("%t", enabled))
}

// DebugEnabled reports whether verbose client logging is on.
func DebugEnabled(s Store) bool {
	v, _ := s.Get(KeyDebug)
	return v == "true"
}

// FileStore keeps preferences in a small JSON file.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]string
	loaded bool
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()
	s.values[key] = value

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings: mkdir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.path, err)
	}
	return nil
}

// loadLocked reads the file once, lazily. A missing or corrupt file starts
// from an empty map rather than failing the caller.
func (s *FileStore) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.values = make(map[string]string)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, &s.values)
}

// MemStore is the in-memory backend used by tests and short-lived tooling.
type MemStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
