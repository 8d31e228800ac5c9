// Package memory persists small key-value state per job name, carried
// forward across executions. One JSON file per job; saves merge over the
// existing map rather than replacing it, so keys survive until explicitly
// overwritten.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MetadataKey is the reserved namespace holding bookkeeping about the file
// itself. It is managed here and never handed to callers for mutation.
const MetadataKey = "_metadata"

// Store reads and writes per-job memory files under a single directory.
// Same-name read-modify-write cycles are serialised in-process with a
// per-job-name mutex; cross-process overlap on one job name remains
// unsupported.
type Store struct {
	dir   string
	locks *xsync.MapOf[string, *sync.Mutex]
	now   func() time.Time
}

// NewStore returns a store rooted at dir. The directory is created on first
// save, not here.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		locks: xsync.NewMapOf[string, *sync.Mutex](),
		now:   time.Now,
	}
}

func (s *Store) lockFor(job string) *sync.Mutex {
	mu, _ := s.locks.LoadOrCompute(job, func() *sync.Mutex { return &sync.Mutex{} })
	return mu
}

// Path returns the memory file location for a job name.
func (s *Store) Path(job string) string {
	return filepath.Join(s.dir, sanitizeName(job)+".json")
}

// Load returns the persisted memory for a job, or an empty map when none
// exists yet.
func (s *Store) Load(job string) (map[string]any, error) {
	mu := s.lockFor(job)
	mu.Lock()
	defer mu.Unlock()
	return s.loadLocked(job)
}

func (s *Store) loadLocked(job string) (map[string]any, error) {
	data, err := os.ReadFile(s.Path(job))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read memory for %s: %w", job, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse memory for %s: %w", job, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Save merges updates over the existing memory, refreshes the _metadata
// block (lastUpdated timestamp, incrementing updateCount) and writes the
// file atomically via temp file + rename. The merged map is returned.
func (s *Store) Save(job string, updates map[string]any) (map[string]any, error) {
	mu := s.lockFor(job)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.loadLocked(job)
	if err != nil {
		return nil, err
	}

	for k, v := range updates {
		if k == MetadataKey {
			continue
		}
		existing[k] = v
	}
	existing[MetadataKey] = map[string]any{
		"lastUpdated": s.now().Format(time.RFC3339),
		"updateCount": updateCount(existing) + 1,
	}

	if err := s.writeAtomic(job, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Clear removes a job's memory file. Missing files are not an error.
func (s *Store) Clear(job string) error {
	mu := s.lockFor(job)
	mu.Lock()
	defer mu.Unlock()

	err := os.Remove(s.Path(job))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear memory for %s: %w", job, err)
	}
	return nil
}

func (s *Store) writeAtomic(job string, m map[string]any) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory for %s: %w", job, err)
	}

	path := s.Path(job)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write memory temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit memory for %s: %w", job, err)
	}
	return nil
}

// updateCount reads the previous count out of the metadata block. Decoded
// JSON numbers arrive as float64.
func updateCount(m map[string]any) int {
	meta, ok := m[MetadataKey].(map[string]any)
	if !ok {
		return 0
	}
	switch n := meta["updateCount"].(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

// sanitizeName keeps job-derived file names filesystem-safe.
func sanitizeName(job string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, job)
}
