// Package tradeparams provides an in-memory store for saved strategy
// parameters with JSON file persistence. It is the file-backed alternative to
// the SQLite parameter store.
package tradeparams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"stratbench/internal/domain"
	"stratbench/internal/store"
)

// Compile-time interface check.
var _ store.ParamStore = (*Store)(nil)

// Store holds saved parameters in memory and rewrites the JSON file on every
// change.
type Store struct {
	mu       sync.RWMutex
	params   map[string]domain.SavedParams // key -> params
	filePath string
	log      *slog.Logger
}

// NewStore creates a Store, loading persisted state from filePath. A missing
// file starts empty; an unreadable one is an error.
func NewStore(filePath string, log *slog.Logger) (*Store, error) {
	s := &Store{
		params:   make(map[string]domain.SavedParams),
		filePath: filePath,
		log:      log.With("component", "tradeparams"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// GetParams returns the parameters saved under key.
func (s *Store) GetParams(_ context.Context, key string) (*domain.SavedParams, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.params[key]
	if !ok {
		return nil, false, nil
	}
	if p.Window != nil {
		w := *p.Window
		p.Window = &w
	}
	return &p, true, nil
}

// SetParams stores p under key and persists to disk.
func (s *Store) SetParams(_ context.Context, key string, p domain.SavedParams) error {
	if p.Window != nil {
		w := *p.Window
		p.Window = &w
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[key] = p
	return s.flush()
}

// Delete removes a key and persists to disk.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.params[key]; !ok {
		return nil
	}
	delete(s.params, key)
	return s.flush()
}

// Keys returns all stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.params))
	for k := range s.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// load reads the JSON file into memory.
func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading tradeparams file: %w", err)
	}
	var loaded map[string]domain.SavedParams
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("decoding tradeparams file %s: %w", s.filePath, err)
	}
	if loaded != nil {
		s.params = loaded
	}
	s.log.Info("loaded tradeparams", "keys", len(s.params))
	return nil
}

// flush writes the in-memory state to disk through a temp file so a crash
// never leaves a truncated file. Must be called with mu held.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.params, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling tradeparams: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("creating tradeparams dir: %w", err)
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing tradeparams file: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("replacing tradeparams file: %w", err)
	}
	return nil
}
