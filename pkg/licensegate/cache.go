package licensegate

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// ErrNotFound is returned by stores when a key holds no record.
var ErrNotFound = errors.New("licensegate: entry not found")

// Scope identifies what a cached verdict answers for.
type Scope struct {
	LicenseKey  string
	Domain      string
	ProductName string
}

// Key derives a fixed-length storage key so raw license keys never appear in file names or
// redis keys.
func (s Scope) Key() string {
	sum := blake2b.Sum256([]byte(s.LicenseKey + "\x00" + s.ProductName + "\x00" + s.Domain))
	return hex.EncodeToString(sum[:])
}

// Store persists opaque records. Implementations must overwrite wholesale on Save.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte, retention time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheEntry is the last network verdict for a scope.
type CacheEntry struct {
	Verdict    Verdict   `json:"verdict"`
	ObtainedAt time.Time `json:"obtained_at"`
}

// FreshAt reports whether the entry is younger than ttl at now. Entries dated in the future
// are treated as stale.
func (e CacheEntry) FreshAt(now time.Time, ttl time.Duration) bool {
	age := now.Sub(e.ObtainedAt)
	return age >= 0 && age < ttl
}

// LocalCache layers TTL semantics over a Store. Every store failure reads as a miss.
type LocalCache struct {
	store     Store
	ttl       time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewLocalCache builds a cache. retention bounds how long the store keeps records, and must
// cover any grace period that reads stale entries.
func NewLocalCache(store Store, ttl, retention time.Duration, logger *zap.Logger) *LocalCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if retention < ttl {
		retention = ttl
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalCache{store: store, ttl: ttl, retention: retention, logger: logger}
}

// TTL returns the freshness window.
func (c *LocalCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the entry for scope only if it is fresh at now.
func (c *LocalCache) Get(ctx context.Context, scope Scope, now time.Time) (CacheEntry, bool) {
	entry, ok := c.Peek(ctx, scope)
	if !ok || !entry.FreshAt(now, c.ttl) {
		return CacheEntry{}, false
	}
	return entry, true
}

// Peek returns the stored entry regardless of age.
func (c *LocalCache) Peek(ctx context.Context, scope Scope) (CacheEntry, bool) {
	if c == nil || c.store == nil {
		return CacheEntry{}, false
	}
	data, err := c.store.Load(ctx, scope.Key())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Debug("license cache read failed", zap.Error(err))
		}
		return CacheEntry{}, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.ObtainedAt.IsZero() {
		c.logger.Debug("license cache entry unreadable", zap.String("key", scope.Key()))
		return CacheEntry{}, false
	}
	return entry, true
}

// Put overwrites the entry for scope. Failures are logged and dropped.
func (c *LocalCache) Put(ctx context.Context, scope Scope, verdict Verdict, now time.Time) {
	if c == nil || c.store == nil {
		return
	}
	data, err := json.Marshal(CacheEntry{Verdict: verdict, ObtainedAt: now})
	if err != nil {
		c.logger.Debug("encode license cache entry", zap.Error(err))
		return
	}
	if err := c.store.Save(ctx, scope.Key(), data, c.retention); err != nil {
		c.logger.Debug("license cache write failed", zap.Error(err))
	}
}

// Invalidate drops the entry for scope.
func (c *LocalCache) Invalidate(ctx context.Context, scope Scope) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, scope.Key()); err != nil && !errors.Is(err, ErrNotFound) {
		c.logger.Debug("license cache delete failed", zap.Error(err))
	}
}
