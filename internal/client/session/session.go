// Package session caches the signed-in identity on the client side.
//
// Two caches back a Store: a persistent one that survives restarts (used
// when the user asked to be remembered) and an ephemeral in-memory one. At
// most one of them holds a session at a time, and the persistent cache wins
// when both do.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-task-manager/internal/model"
)

var ErrNoSession = errors.New("no session")

type Session struct {
	Token     string         `json:"token"`
	User      model.Identity `json:"user"`
	ExpiresAt time.Time      `json:"expires_at"`
	Remember  bool           `json:"remember"`
}

// Valid reports whether the session carries a token and a user and has not
// expired. A zero ExpiresAt never expires locally; the server still does.
func (s Session) Valid(now time.Time) bool {
	if s.Token == "" || s.User.SubjectID == 0 {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// FromLogin builds a session from a login response received at now.
func FromLogin(result model.LoginResult, now time.Time) Session {
	return Session{
		Token: result.Token,
		User: model.Identity{
			SubjectID:   result.User.ID,
			DisplayName: result.User.Username,
			Email:       result.User.Email,
			Role:        result.User.Role,
		},
		ExpiresAt: expiresAt(now, result.ExpiresIn),
	}
}

// FromRefresh builds a session from a refresh response received at now.
func FromRefresh(result model.TokenResult, now time.Time) Session {
	return Session{
		Token:     result.Token,
		User:      result.User,
		ExpiresAt: expiresAt(now, result.ExpiresIn),
	}
}

func expiresAt(now time.Time, seconds int64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(seconds) * time.Second)
}

// Cache is one place a session can be kept. Load returns ErrNoSession when
// nothing is stored.
type Cache interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

type Store struct {
	persistent Cache
	ephemeral  Cache
	now        func() time.Time
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(persistent Cache, ephemeral Cache, opts ...StoreOption) *Store {
	if ephemeral == nil {
		ephemeral = NewMemoryCache()
	}
	if persistent == nil {
		persistent = NewMemoryCache()
	}

	s := &Store{persistent: persistent, ephemeral: ephemeral, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes the session to the persistent cache when remember is set and
// to the ephemeral cache otherwise, then clears the other cache.
func (s *Store) Save(ctx context.Context, sess Session, remember bool) error {
	sess.Remember = remember

	target, other := s.ephemeral, s.persistent
	if remember {
		target, other = s.persistent, s.ephemeral
	}

	if err := target.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := other.Clear(ctx); err != nil {
		return fmt.Errorf("clear stale session: %w", err)
	}
	return nil
}

// Clear wipes both caches.
func (s *Store) Clear(ctx context.Context) error {
	return errors.Join(s.persistent.Clear(ctx), s.ephemeral.Clear(ctx))
}

// Current returns the active session. The persistent cache is consulted
// first. An invalid or expired entry is removed from its cache and treated
// as absent.
func (s *Store) Current(ctx context.Context) (Session, error) {
	now := s.now()

	for _, cache := range []Cache{s.persistent, s.ephemeral} {
		sess, err := cache.Load(ctx)
		if errors.Is(err, ErrNoSession) {
			continue
		}
		if err != nil {
			return Session{}, fmt.Errorf("load session: %w", err)
		}
		if sess.Valid(now) {
			return sess, nil
		}
		if err := cache.Clear(ctx); err != nil {
			return Session{}, fmt.Errorf("drop expired session: %w", err)
		}
	}

	return Session{}, ErrNoSession
}

// Identity is Current reduced to the cached identity, or nil.
func (s *Store) Identity(ctx context.Context) (*model.Identity, error) {
	sess, err := s.Current(ctx)
	if errors.Is(err, ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	identity := sess.User
	return &identity, nil
}
