package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Store is a section/key settings document persisted as JSON:
//
//	{"GPU": {"Renderer": "OpenGL", "MSAA": "4-ssaa"}, "CPU": {"Overclock": 150}}
//
// Values keep whatever type the writer used. Getters decode weakly, so
// "true", 1 and true all read back as a true bool.
type Store struct {
	mu       sync.RWMutex
	path     string
	sections map[string]map[string]any
}

// NewStore returns an empty store backed by path. Call Load to read it.
func NewStore(path string) *Store {
	return &Store{
		path:     path,
		sections: make(map[string]map[string]any),
	}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory document with the file contents. A missing
// file yields an empty document.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.sections = make(map[string]map[string]any)
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	sections := make(map[string]map[string]any)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &sections); err != nil {
			return fmt.Errorf("failed to parse settings: %w", err)
		}
	}
	for name, keys := range sections {
		if keys == nil {
			sections[name] = make(map[string]any)
		}
	}

	s.mu.Lock()
	s.sections = sections
	s.mu.Unlock()
	return nil
}

// Save writes the document atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return AtomicWriteJSON(s.path, s.sections)
}

// Set stores value under section/key.
func (s *Store) Set(section, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.sections[section]
	if !ok {
		keys = make(map[string]any)
		s.sections[section] = keys
	}
	keys[key] = value
}

// Delete removes section/key if present.
func (s *Store) Delete(section, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sections[section], key)
}

// Keys returns the keys of section in sorted order.
func (s *Store) Keys(section string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.sections[section]))
	for k := range s.sections[section] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecodeSection decodes a whole section into out, which must be a pointer
// to a map or struct. A missing section leaves out untouched.
func (s *Store) DecodeSection(section string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys, ok := s.sections[section]
	if !ok || keys == nil {
		return nil
	}
	if err := mapstructure.WeakDecode(keys, out); err != nil {
		return fmt.Errorf("failed to decode section %s: %w", section, err)
	}
	return nil
}

func (s *Store) lookup(section, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sections[section][key]
	return v, ok && v != nil
}

// GetString returns section/key as a string, or def when unset.
func (s *Store) GetString(section, key, def string) string {
	var out string
	if !s.get(section, key, &out) {
		return def
	}
	return out
}

// GetBool returns section/key as a bool, or def when unset or undecodable.
func (s *Store) GetBool(section, key string, def bool) bool {
	var out bool
	if !s.get(section, key, &out) {
		return def
	}
	return out
}

// GetInt returns section/key as an int, or def when unset or undecodable.
func (s *Store) GetInt(section, key string, def int) int {
	var out int
	if !s.get(section, key, &out) {
		return def
	}
	return out
}

// GetFloat returns section/key as a float64, or def when unset or undecodable.
func (s *Store) GetFloat(section, key string, def float64) float64 {
	var out float64
	if !s.get(section, key, &out) {
		return def
	}
	return out
}

func (s *Store) get(section, key string, out any) bool {
	v, ok := s.lookup(section, key)
	if !ok {
		return false
	}
	return mapstructure.WeakDecode(v, out) == nil
}
