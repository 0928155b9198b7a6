package licensegate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRevalidator(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scope := Scope{LicenseKey: "K1", Domain: "a.com", ProductName: "Product A"}
	other := Scope{LicenseKey: "K2", Domain: "a.com", ProductName: "Product A"}
	r := NewSessionRevalidator(NewMemorySessionStore(), 24*time.Hour, nil)

	t.Run("absent", func(t *testing.T) {
		_, ok := r.Get(ctx, "s1", scope, now)
		assert.False(t, ok)
	})

	t.Run("fresh memo carries the verdict", func(t *testing.T) {
		r.Put(ctx, "s1", scope, validVerdict, now)

		memo, ok := r.Get(ctx, "s1", scope, now.Add(23*time.Hour))
		require.True(t, ok)
		assert.Equal(t, validVerdict, memo.Verdict())
	})

	t.Run("stale after session ttl", func(t *testing.T) {
		_, ok := r.Get(ctx, "s1", scope, now.Add(24*time.Hour))
		assert.False(t, ok)
	})

	t.Run("scoped per session and license", func(t *testing.T) {
		_, ok := r.Get(ctx, "s2", scope, now)
		assert.False(t, ok)
		_, ok = r.Get(ctx, "s1", other, now)
		assert.False(t, ok)
	})

	t.Run("empty session id is ignored", func(t *testing.T) {
		r.Put(ctx, "", scope, validVerdict, now)
		_, ok := r.Get(ctx, "", scope, now)
		assert.False(t, ok)
	})

	t.Run("end drops the session", func(t *testing.T) {
		r.End(ctx, "s1")
		_, ok := r.Get(ctx, "s1", scope, now)
		assert.False(t, ok)
		r.End(ctx, "s1")
	})
}

func TestMemorySessionStore_Prune(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, "short", "f", []byte("1"), time.Minute))
	require.NoError(t, store.Save(ctx, "long", "f", []byte("1"), time.Hour))

	now = now.Add(2 * time.Minute)
	_, err := store.Load(ctx, "short", "f")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, store.Prune())
	_, err = store.Load(ctx, "long", "f")
	assert.NoError(t, err)
}

func TestRedisSessionStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	scope := Scope{LicenseKey: "K1", Domain: "a.com", ProductName: "Product A"}
	now := time.Now()
	r := NewSessionRevalidator(NewRedisSessionStore(client, "test:sess:"), 24*time.Hour, nil)

	r.Put(ctx, "s1", scope, Verdict{Valid: false, Message: "License is expired"}, now)

	memo, ok := r.Get(ctx, "s1", scope, now.Add(time.Hour))
	require.True(t, ok)
	assert.False(t, memo.Valid)
	assert.Equal(t, "License is expired", memo.Message)
	assert.Equal(t, 24*time.Hour, mr.TTL("test:sess:s1"))

	r.End(ctx, "s1")
	assert.False(t, mr.Exists("test:sess:s1"))
}
