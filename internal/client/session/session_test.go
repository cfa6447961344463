package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-task-manager/internal/model"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newBoltCache(t *testing.T) *BoltCache {
	t.Helper()

	cache, err := OpenBoltCache(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, cache.Close()) })
	return cache
}

func sessionFor(role model.Role, expires time.Time) Session {
	return Session{
		Token:     "header.payload.signature",
		User:      model.Identity{SubjectID: 7, DisplayName: "bob", Email: "bob@example.com", Role: role},
		ExpiresAt: expires,
	}
}

func TestBoltCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := newBoltCache(t)

	_, err := cache.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	want := sessionFor(model.RoleAdmin, baseTime.Add(time.Hour))
	require.NoError(t, cache.Save(ctx, want))

	got, err := cache.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want.Token, got.Token)
	require.Equal(t, want.User, got.User)
	require.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, cache.Clear(ctx))
	_, err = cache.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	// Clearing an empty cache is not an error.
	require.NoError(t, cache.Clear(ctx))
}

func TestBoltCacheSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	first, err := OpenBoltCache(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, sessionFor(model.RoleUser, time.Time{})))
	require.NoError(t, first.Close())

	second, err := OpenBoltCache(path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "bob", got.User.DisplayName)
}

func TestStoreSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("remember writes the persistent cache and clears the ephemeral one", func(t *testing.T) {
		persistent, ephemeral := newBoltCache(t), NewMemoryCache()
		store := NewStore(persistent, ephemeral, WithClock(func() time.Time { return baseTime }))

		require.NoError(t, ephemeral.Save(ctx, sessionFor(model.RoleUser, time.Time{})))
		require.NoError(t, store.Save(ctx, sessionFor(model.RoleAdmin, baseTime.Add(time.Hour)), true))

		got, err := persistent.Load(ctx)
		require.NoError(t, err)
		require.True(t, got.Remember)
		require.Equal(t, model.RoleAdmin, got.User.Role)

		_, err = ephemeral.Load(ctx)
		require.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("without remember only the ephemeral cache holds the session", func(t *testing.T) {
		persistent, ephemeral := newBoltCache(t), NewMemoryCache()
		store := NewStore(persistent, ephemeral, WithClock(func() time.Time { return baseTime }))

		require.NoError(t, persistent.Save(ctx, sessionFor(model.RoleAdmin, time.Time{})))
		require.NoError(t, store.Save(ctx, sessionFor(model.RoleUser, baseTime.Add(time.Hour)), false))

		_, err := persistent.Load(ctx)
		require.ErrorIs(t, err, ErrNoSession)

		got, err := store.Current(ctx)
		require.NoError(t, err)
		require.False(t, got.Remember)
		require.Equal(t, model.RoleUser, got.User.Role)
	})
}

func TestStoreCurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("persistent wins over ephemeral", func(t *testing.T) {
		persistent, ephemeral := NewMemoryCache(), NewMemoryCache()
		store := NewStore(persistent, ephemeral, WithClock(func() time.Time { return baseTime }))

		require.NoError(t, persistent.Save(ctx, sessionFor(model.RoleAdmin, time.Time{})))
		require.NoError(t, ephemeral.Save(ctx, sessionFor(model.RoleUser, time.Time{})))

		got, err := store.Current(ctx)
		require.NoError(t, err)
		require.Equal(t, model.RoleAdmin, got.User.Role)
	})

	t.Run("expired persistent entry is dropped and ephemeral is used", func(t *testing.T) {
		persistent, ephemeral := NewMemoryCache(), NewMemoryCache()
		store := NewStore(persistent, ephemeral, WithClock(func() time.Time { return baseTime }))

		require.NoError(t, persistent.Save(ctx, sessionFor(model.RoleAdmin, baseTime)))
		require.NoError(t, ephemeral.Save(ctx, sessionFor(model.RoleUser, baseTime.Add(time.Minute))))

		got, err := store.Current(ctx)
		require.NoError(t, err)
		require.Equal(t, model.RoleUser, got.User.Role)

		_, err = persistent.Load(ctx)
		require.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("entry without a token is not a session", func(t *testing.T) {
		ephemeral := NewMemoryCache()
		store := NewStore(nil, ephemeral)

		broken := sessionFor(model.RoleUser, time.Time{})
		broken.Token = ""
		require.NoError(t, ephemeral.Save(ctx, broken))

		_, err := store.Current(ctx)
		require.ErrorIs(t, err, ErrNoSession)

		identity, err := store.Identity(ctx)
		require.NoError(t, err)
		require.Nil(t, identity)
	})

	t.Run("empty store", func(t *testing.T) {
		store := NewStore(nil, nil)

		_, err := store.Current(ctx)
		require.ErrorIs(t, err, ErrNoSession)
	})
}

func TestStoreClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	persistent, ephemeral := newBoltCache(t), NewMemoryCache()
	store := NewStore(persistent, ephemeral)

	require.NoError(t, persistent.Save(ctx, sessionFor(model.RoleAdmin, time.Time{})))
	require.NoError(t, ephemeral.Save(ctx, sessionFor(model.RoleUser, time.Time{})))
	require.NoError(t, store.Clear(ctx))

	_, err := persistent.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)
	_, err = ephemeral.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestFromLogin(t *testing.T) {
	t.Parallel()

	sess := FromLogin(model.LoginResult{
		Token:     "t",
		TokenType: "Bearer",
		ExpiresIn: 3600,
		User:      model.AuthUser{ID: 3, Username: "carol", Email: "carol@example.com", Role: model.RoleUser},
	}, baseTime)

	require.Equal(t, model.Identity{SubjectID: 3, DisplayName: "carol", Email: "carol@example.com", Role: model.RoleUser}, sess.User)
	require.Equal(t, baseTime.Add(time.Hour), sess.ExpiresAt)
	require.True(t, sess.Valid(baseTime.Add(time.Hour-time.Second)))
	require.False(t, sess.Valid(baseTime.Add(time.Hour)))
}
