package session

import (
	"context"
	"sync"
)

// MemoryCache holds a session for the lifetime of the process.
type MemoryCache struct {
	mu      sync.RWMutex
	session *Session
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Load(_ context.Context) (Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil {
		return Session{}, ErrNoSession
	}
	return *c.session, nil
}

func (c *MemoryCache) Save(_ context.Context, s Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = &s
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = nil
	return nil
}
