// Package cache provides the two tiers fronting spreadsheet reads: a
// size-bounded in-process tier for hot tabs and a SQLite-backed tier that
// survives restarts and keeps source fetches to roughly one per TTL.
package cache

import (
	"context"
	"time"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

// Key identifies one tab of one store's workbook.
type Key struct {
	StoreID string
	Tab     string
}

func (k Key) String() string { return k.StoreID + ":" + k.Tab }

// Tier is one cache level. Get returns ok=false on miss or expiry; an
// expired entry behaves exactly like a miss. Set stores data for ttl.
// Invalidate removes the key unconditionally.
type Tier interface {
	Get(ctx context.Context, key Key) (sheets.TabData, bool, error)
	Set(ctx context.Context, key Key, data sheets.TabData, ttl time.Duration) error
	Invalidate(ctx context.Context, key Key) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
