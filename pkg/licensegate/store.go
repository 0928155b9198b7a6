package licensegate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const fileStorePrefix = "license_check_"

// FileStore keeps one file per key in a directory. Writes go through a temp file and a rename
// so readers in other processes never see a partial record.
type FileStore struct {
	dir string
}

// NewFileStore uses dir, or the system temp directory when dir is empty.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = os.TempDir()
	}
	return &FileStore{dir: dir}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, fileStorePrefix+key+".cache")
}

// Load reads the record for key.
func (s *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Save replaces the record for key. Retention is not enforced on disk; readers judge age.
func (s *FileStore) Save(_ context.Context, key string, data []byte, _ time.Duration) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+fileStorePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Delete removes the record for key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

type memoryRecord struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord), now: time.Now}
}

// Load returns a copy of the record for key.
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok || (!rec.expiresAt.IsZero() && s.now().After(rec.expiresAt)) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), rec.data...), nil
}

// Save replaces the record for key.
func (s *MemoryStore) Save(_ context.Context, key string, data []byte, retention time.Duration) error {
	rec := memoryRecord{data: append([]byte(nil), data...)}
	if retention > 0 {
		rec.expiresAt = s.now().Add(retention)
	}
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
	return nil
}

// Delete removes the record for key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// Len reports the number of records, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// RedisStore shares cache records between processes and hosts.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore stores records under prefix. An empty prefix uses "licensegate:cache:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "licensegate:cache:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Load reads the record for key.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save replaces the record for key with an expiry of retention.
func (s *RedisStore) Save(ctx context.Context, key string, data []byte, retention time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, data, retention).Err()
}

// Delete removes the record for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
