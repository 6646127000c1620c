package sessionstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

const fileExt = ".json"

// FileStore persists one string map per browsing context under a directory.
// Each context lives in <dir>/<context>.json and is cached after first use.
type FileStore struct {
	dir string
	log pslog.Logger

	mu    sync.Mutex
	cache map[schema.ContextID]*record
}

type record struct {
	values map[string]string
	raw    []byte
	// corrupt marks a file that exists but does not decode.
	corrupt bool
}

// NewFileStore constructs a file store at the given directory.
func NewFileStore(dir string) (*FileStore, error) {
	return NewFileStoreWithLogger(dir, nil)
}

// NewFileStoreWithLogger constructs a file store with logging.
func NewFileStoreWithLogger(dir string, logger pslog.Logger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &FileStore{dir: dir, log: logger, cache: make(map[schema.ContextID]*record)}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Bucket returns the key-value view of one context.
func (s *FileStore) Bucket(id schema.ContextID) (*Bucket, error) {
	if err := schema.ValidateContextID(id); err != nil {
		return nil, err
	}
	return &Bucket{store: s, id: id}, nil
}

// Contexts lists the contexts that have a persisted record.
func (s *FileStore) Contexts() ([]schema.ContextID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]schema.ContextID, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := contextFromName(entry.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Reload re-reads a context from disk and reports whether its contents
// differ from what the store last saw. A file that does not decode, such as
// one caught halfway through a non-atomic write, leaves the cached record in
// place and reports no change.
func (s *FileStore) Reload(id schema.ContextID) (bool, error) {
	if err := schema.ValidateContextID(id); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cache[id]
	next := s.readLocked(id)
	if next.corrupt && prev != nil {
		if s.log != nil {
			s.log.Warn("state reload skipped", "context", id, "reason", "undecodable file", "bytes", len(next.raw))
		}
		return false, nil
	}
	s.cache[id] = next
	if prev == nil {
		return true, nil
	}
	return !bytes.Equal(prev.raw, next.raw), nil
}

func (s *FileStore) get(id schema.ContextID, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.loadLocked(id)
	value, ok := rec.values[key]
	return value, ok
}

func (s *FileStore) set(id schema.ContextID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.loadLocked(id)
	values := make(map[string]string, len(rec.values)+1)
	for k, v := range rec.values {
		values[k] = v
	}
	values[key] = value
	raw, err := s.saveLocked(id, values)
	if err != nil {
		return err
	}
	s.cache[id] = &record{values: values, raw: raw}
	return nil
}

func (s *FileStore) loadLocked(id schema.ContextID) *record {
	if rec := s.cache[id]; rec != nil {
		return rec
	}
	rec := s.readLocked(id)
	s.cache[id] = rec
	return rec
}

// readLocked never fails: a missing or corrupt file reads as an empty record.
func (s *FileStore) readLocked(id schema.ContextID) *record {
	path := s.pathFor(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "context", id)
			}
		} else if s.log != nil {
			s.log.Warn("state load failed", "context", id, "err", err)
		}
		return &record{values: map[string]string{}}
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "context", id, "err", err)
		}
		return &record{values: map[string]string{}, raw: data, corrupt: true}
	}
	if s.log != nil {
		s.log.Debug("state load ok", "context", id, "keys", len(values))
	}
	return &record{values: values, raw: data}
}

func (s *FileStore) saveLocked(id schema.ContextID, values map[string]string) ([]byte, error) {
	path := s.pathFor(id)
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return nil, s.saveFailed(id, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.tmp")
	if err != nil {
		return nil, s.saveFailed(id, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, s.saveFailed(id, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, s.saveFailed(id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, s.saveFailed(id, err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, s.saveFailed(id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, s.saveFailed(id, err)
	}
	if s.log != nil {
		s.log.Trace("state save ok", "context", id, "keys", len(values))
	}
	return data, nil
}

func (s *FileStore) saveFailed(id schema.ContextID, err error) error {
	if s.log != nil {
		s.log.Warn("state save failed", "context", id, "err", err)
	}
	return fmt.Errorf("save state for %s: %w", id, err)
}

func (s *FileStore) pathFor(id schema.ContextID) string {
	return filepath.Join(s.dir, string(id)+fileExt)
}

func contextFromName(name string) (schema.ContextID, bool) {
	if !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	id := schema.ContextID(strings.TrimSuffix(name, fileExt))
	if schema.ValidateContextID(id) != nil {
		return "", false
	}
	return id, true
}

// Bucket is the store view of a single context.
type Bucket struct {
	store *FileStore
	id    schema.ContextID
}

// ContextID returns the context the bucket belongs to.
func (b *Bucket) ContextID() schema.ContextID {
	return b.id
}

// Get returns the stored value for key.
func (b *Bucket) Get(key string) (string, bool) {
	return b.store.get(b.id, key)
}

// Set stores value under key and writes the context record to disk.
func (b *Bucket) Set(key, value string) error {
	return b.store.set(b.id, key, value)
}
