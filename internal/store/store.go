// Package store implements the Executed-Task Store: a persistent mapping
// from fingerprint to the stats of the outputs a prior run produced for it.
//
// Grounded on the mutex-guarded, atomically-committed FileCache in
// samgonzalezalberto-script-weaver/internal/core/cache.go, modernized to
// write the backing file with github.com/google/renameio/v2 instead of the
// donor's hand-rolled os.MkdirTemp + os.Rename dance.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

// OutputStat is the (path, size, mtime) recorded for one declared output at
// the time its owning task last executed successfully.
type OutputStat struct {
	Path    string
	Size    int64
	ModTime int64
}

// Record is the persisted value for one fingerprint.
type Record struct {
	Outputs []OutputStat
}

// Store is the Executed-Task Store for one workspace. Safe for concurrent
// use.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Record
}

// Open loads (or initializes) the store file at <workspaceDir>/.taskgraph/store.json.
func Open(workspaceDir string) (*Store, error) {
	dir := filepath.Join(workspaceDir, ".taskgraph")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "store.json")

	s := &Store{path: path, entries: make(map[string]Record)}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// Fresh workspace: nothing to load.
	default:
		return nil, err
	}
	return s, nil
}

// Lookup returns the raw persisted record for fingerprint, without checking
// the filesystem.
func (s *Store) Lookup(fingerprint string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entries[fingerprint]
	return rec, ok
}

// Verify returns the persisted record for fingerprint iff it is present and
// every recorded output currently exists on disk with matching size and
// mtime (invariant I5). Any mismatch voids the record for purposes of this
// call (the caller must execute the task normally); the on-disk record
// itself is left untouched until the next successful Put.
func (s *Store) Verify(fingerprint string) (Record, bool) {
	rec, ok := s.Lookup(fingerprint)
	if !ok {
		return Record{}, false
	}
	for _, o := range rec.Outputs {
		info, err := os.Stat(o.Path)
		if err != nil {
			return Record{}, false
		}
		size := info.Size()
		if info.IsDir() {
			size = 0
		}
		if size != o.Size || info.ModTime().Unix() != o.ModTime {
			return Record{}, false
		}
	}
	return rec, true
}

// Put durably records outputs for fingerprint. It returns only after the
// underlying file has been atomically replaced, satisfying the requirement
// that a Store write be durable before the owning task's completion event
// fires.
func (s *Store) Put(fingerprint string, outputs []OutputStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[fingerprint] = Record{Outputs: outputs}

	data, err := json.Marshal(s.entries)
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.path, data, 0o644)
}
