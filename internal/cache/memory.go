package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

// DefaultMemorySize is the maximum number of tabs the in-process tier holds.
const DefaultMemorySize = 256

// entry holds one cached dataset with its expiry bound.
type entry struct {
	data      sheets.TabData
	cachedAt  time.Time
	expiresAt time.Time
}

// Memory is the in-process tier: an LRU bounded by tab count with per-entry
// expiry checked on read.
type Memory struct {
	lru   *lru.Cache[string, entry]
	clock Clock
}

// NewMemory creates a Memory tier holding at most maxSize tabs.
// A maxSize <= 0 falls back to DefaultMemorySize.
func NewMemory(maxSize int) (*Memory, error) {
	return NewMemoryWithClock(maxSize, realClock{})
}

// NewMemoryWithClock creates a Memory tier with a custom clock (for testing).
func NewMemoryWithClock(maxSize int, clock Clock) (*Memory, error) {
	if maxSize <= 0 {
		maxSize = DefaultMemorySize
	}
	c, err := lru.New[string, entry](maxSize)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &Memory{lru: c, clock: clock}, nil
}

func (m *Memory) Get(_ context.Context, key Key) (sheets.TabData, bool, error) {
	e, ok := m.lru.Get(key.String())
	if !ok {
		return nil, false, nil
	}
	if !m.clock.Now().Before(e.expiresAt) {
		// Expired entries are evicted on read, not just skipped.
		m.lru.Remove(key.String())
		return nil, false, nil
	}
	// Return a copy so callers cannot mutate the cached dataset.
	return e.data.Clone(), true, nil
}

func (m *Memory) Set(_ context.Context, key Key, data sheets.TabData, ttl time.Duration) error {
	now := m.clock.Now()
	m.lru.Add(key.String(), entry{
		data:      data.Clone(),
		cachedAt:  now,
		expiresAt: now.Add(ttl),
	})
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key Key) error {
	m.lru.Remove(key.String())
	return nil
}

// Len reports the number of live entries, expired ones included until read.
func (m *Memory) Len() int { return m.lru.Len() }

var _ Tier = (*Memory)(nil)
