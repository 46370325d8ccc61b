package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

// EntryStore defines the storage operations the persistent tier needs.
// Implemented by storage.Store.
type EntryStore interface {
	GetSheetCache(storeID, tab string, now time.Time) (payload string, ok bool, err error)
	SetSheetCache(storeID, tab, payload string, cachedAt, expiresAt time.Time) error
	DeleteSheetCache(storeID, tab string) error
	PurgeExpiredSheetCache(now time.Time) (int64, error)
}

// Persistent is the durable tier backed by SQLite. Datasets are stored as
// JSON payloads with an absolute expiry; reads past expiry are misses, and
// stale rows are removed lazily by PurgeExpired.
type Persistent struct {
	store EntryStore
	clock Clock
}

// NewPersistent creates a Persistent tier over the given store.
func NewPersistent(store EntryStore) *Persistent {
	return NewPersistentWithClock(store, realClock{})
}

// NewPersistentWithClock creates a Persistent tier with a custom clock (for testing).
func NewPersistentWithClock(store EntryStore, clock Clock) *Persistent {
	return &Persistent{store: store, clock: clock}
}

func (p *Persistent) Get(_ context.Context, key Key) (sheets.TabData, bool, error) {
	payload, ok, err := p.store.GetSheetCache(key.StoreID, key.Tab, p.clock.Now())
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	var data sheets.TabData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, false, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	return data, true, nil
}

func (p *Persistent) Set(_ context.Context, key Key, data sheets.TabData, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}
	now := p.clock.Now()
	if err := p.store.SetSheetCache(key.StoreID, key.Tab, string(payload), now, now.Add(ttl)); err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

func (p *Persistent) Invalidate(_ context.Context, key Key) error {
	if err := p.store.DeleteSheetCache(key.StoreID, key.Tab); err != nil {
		return fmt.Errorf("deleting cache entry %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes rows whose expiry has passed and reports how many.
func (p *Persistent) PurgeExpired(_ context.Context) (int64, error) {
	n, err := p.store.PurgeExpiredSheetCache(p.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purging expired cache entries: %w", err)
	}
	return n, nil
}

var _ Tier = (*Persistent)(nil)
