// Package membercache records the outcome of guild membership checks.
package membercache

import (
	"context"
	"sync"
	"time"
)

// Entry is the last known membership of one external user.
type Entry struct {
	Present   bool      `json:"present"`
	CheckedAt time.Time `json:"checked_at"`
}

// Fresh reports whether the entry is younger than ttl at now. A non-positive
// ttl means nothing is ever fresh.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(e.CheckedAt) < ttl
}

type Cache interface {
	Put(ctx context.Context, userID string, e Entry) error
	Get(ctx context.Context, userID string) (Entry, bool, error)
}

// InMemory is a process-local Cache. Entries are never evicted.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]Entry)}
}

func (c *InMemory) Put(_ context.Context, userID string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = e
	return nil
}

func (c *InMemory) Get(_ context.Context, userID string) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[userID]
	return e, ok, nil
}

func (c *InMemory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
