package licensegate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionMemo is the last answer given to one caller session.
type SessionMemo struct {
	Valid       bool         `json:"valid"`
	Message     string       `json:"message,omitempty"`
	LicenseData *LicenseData `json:"license_data,omitempty"`
	CheckedAt   time.Time    `json:"checked_at"`
}

// Verdict rebuilds the answer the memo was recorded from.
func (m SessionMemo) Verdict() Verdict {
	return Verdict{Valid: m.Valid, Message: m.Message, LicenseData: m.LicenseData}
}

// FreshAt reports whether the memo is younger than ttl at now.
func (m SessionMemo) FreshAt(now time.Time, ttl time.Duration) bool {
	age := now.Sub(m.CheckedAt)
	return age >= 0 && age < ttl
}

// SessionStore keeps per-session records, one field per scope.
type SessionStore interface {
	Load(ctx context.Context, sessionID, field string) ([]byte, error)
	Save(ctx context.Context, sessionID, field string, data []byte, ttl time.Duration) error
	Drop(ctx context.Context, sessionID string) error
}

// SessionRevalidator memoizes verdicts per session with a coarse TTL.
type SessionRevalidator struct {
	store  SessionStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionRevalidator builds a revalidator over store.
func NewSessionRevalidator(store SessionStore, ttl time.Duration, logger *zap.Logger) *SessionRevalidator {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRevalidator{store: store, ttl: ttl, logger: logger}
}

// TTL returns the memo freshness window.
func (r *SessionRevalidator) TTL() time.Duration {
	return r.ttl
}

// Get returns the memo for sessionID and scope only if it is fresh at now.
func (r *SessionRevalidator) Get(ctx context.Context, sessionID string, scope Scope, now time.Time) (SessionMemo, bool) {
	if r == nil || r.store == nil || sessionID == "" {
		return SessionMemo{}, false
	}
	data, err := r.store.Load(ctx, sessionID, scope.Key())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Debug("session memo read failed", zap.Error(err))
		}
		return SessionMemo{}, false
	}

	var memo SessionMemo
	if err := json.Unmarshal(data, &memo); err != nil || memo.CheckedAt.IsZero() {
		r.logger.Debug("session memo unreadable")
		return SessionMemo{}, false
	}
	if !memo.FreshAt(now, r.ttl) {
		return SessionMemo{}, false
	}
	return memo, true
}

// Put overwrites the memo for sessionID and scope with verdict as of checkedAt.
func (r *SessionRevalidator) Put(ctx context.Context, sessionID string, scope Scope, verdict Verdict, checkedAt time.Time) {
	if r == nil || r.store == nil || sessionID == "" {
		return
	}
	memo := SessionMemo{
		Valid:       verdict.Valid,
		Message:     verdict.Message,
		LicenseData: verdict.LicenseData,
		CheckedAt:   checkedAt,
	}
	data, err := json.Marshal(memo)
	if err != nil {
		return
	}
	if err := r.store.Save(ctx, sessionID, scope.Key(), data, r.ttl); err != nil {
		r.logger.Debug("session memo write failed", zap.Error(err))
	}
}

// End discards every memo held for sessionID.
func (r *SessionRevalidator) End(ctx context.Context, sessionID string) {
	if r == nil || r.store == nil || sessionID == "" {
		return
	}
	if err := r.store.Drop(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
		r.logger.Debug("session memo drop failed", zap.Error(err))
	}
}

type memorySession struct {
	fields    map[string][]byte
	expiresAt time.Time
}

// MemorySessionStore keeps session memos in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	now      func() time.Time
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*memorySession), now: time.Now}
}

// Load returns the field of a live session.
func (s *MemorySessionStore) Load(_ context.Context, sessionID, field string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || s.now().After(sess.expiresAt) {
		return nil, ErrNotFound
	}
	data, ok := sess.fields[field]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save writes field and extends the session lifetime to ttl.
func (s *MemorySessionStore) Save(_ context.Context, sessionID, field string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess, ok := s.sessions[sessionID]
	if !ok || now.After(sess.expiresAt) {
		sess = &memorySession{fields: make(map[string][]byte)}
		s.sessions[sessionID] = sess
	}
	sess.fields[field] = append([]byte(nil), data...)
	sess.expiresAt = now.Add(ttl)
	return nil
}

// Drop forgets the session.
func (s *MemorySessionStore) Drop(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Prune removes expired sessions and returns how many were dropped.
func (s *MemorySessionStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dropped := 0
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

// RedisSessionStore keeps each session as a redis hash that expires with the session TTL.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSessionStore stores sessions under prefix. An empty prefix uses "licensegate:session:".
func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = "licensegate:session:"
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

// Load reads one field of the session hash.
func (s *RedisSessionStore) Load(ctx context.Context, sessionID, field string) ([]byte, error) {
	data, err := s.client.HGet(ctx, s.prefix+sessionID, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save writes field and resets the hash expiry.
func (s *RedisSessionStore) Save(ctx context.Context, sessionID, field string, data []byte, ttl time.Duration) error {
	key := s.prefix + sessionID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, data)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// Drop deletes the session hash.
func (s *RedisSessionStore) Drop(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}
