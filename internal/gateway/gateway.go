// Package gateway fronts the spreadsheet source with the two cache tiers.
// Every read of domain data goes through here; writes go straight through
// and invalidate the touched tab in both tiers.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/cache"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/metrics"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

// Default TTLs per tier. The persistent tier is what keeps source fetches to
// roughly one per tab per hour; the memory tier only shortcuts hot paths.
const (
	DefaultMemoryTTL     = 5 * time.Minute
	DefaultPersistentTTL = time.Hour
)

// Source is the upstream the gateway reads through to.
// Implemented by sheets.Client.
type Source interface {
	Read(ctx context.Context, storeID, tab string) (sheets.TabData, error)
	Append(ctx context.Context, storeID, tab string, row sheets.Row) error
	Update(ctx context.Context, storeID, tab string, rowIndex int, row sheets.Row) error
}

// Gateway is the single entry point for domain data. Reads consult the
// memory tier, then (by default) the persistent tier; the source is fetched
// only on a full miss. Concurrent cold reads of the same key share one
// source fetch.
type Gateway struct {
	source        Source
	memory        cache.Tier
	persistent    cache.Tier
	memoryTTL     time.Duration
	persistentTTL time.Duration
	sf            singleflight.Group
}

// New creates a Gateway over the given source and tiers. TTLs <= 0 fall
// back to the package defaults.
func New(source Source, memory, persistent cache.Tier, memoryTTL, persistentTTL time.Duration) *Gateway {
	if memoryTTL <= 0 {
		memoryTTL = DefaultMemoryTTL
	}
	if persistentTTL <= 0 {
		persistentTTL = DefaultPersistentTTL
	}
	return &Gateway{
		source:        source,
		memory:        memory,
		persistent:    persistent,
		memoryTTL:     memoryTTL,
		persistentTTL: persistentTTL,
	}
}

// ReadOption adjusts a single Read call.
type ReadOption func(*readOptions)

type readOptions struct {
	memoryOnly bool
}

// WithMemoryOnly restricts the read to the in-process tier, skipping the
// persistent tier both for lookup and for population.
func WithMemoryOnly() ReadOption {
	return func(o *readOptions) { o.memoryOnly = true }
}

// Read returns the rows of one tab, reduced to the requested columns when
// columns is non-empty. The cached dataset is always the full tab;
// projection happens on the way out.
func (g *Gateway) Read(ctx context.Context, storeID, tab string, columns []string, opts ...ReadOption) (sheets.TabData, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}
	key := cache.Key{StoreID: storeID, Tab: tab}

	if data, ok := g.tierGet(ctx, g.memory, "memory", key); ok {
		return project(data, columns), nil
	}

	if !o.memoryOnly {
		if data, ok := g.tierGet(ctx, g.persistent, "persistent", key); ok {
			// Promote so same-process reads hit the memory tier next time.
			if err := g.memory.Set(ctx, key, data, g.memoryTTL); err != nil {
				slog.Warn("memory cache write failed", "key", key.String(), "error", err)
			}
			return project(data, columns), nil
		}
	}

	// Full miss: one source fetch per key, shared by concurrent callers.
	v, err, _ := g.sf.Do(key.String(), func() (any, error) {
		start := time.Now()
		data, err := g.source.Read(ctx, storeID, tab)
		metrics.SheetFetchLatency.WithLabelValues("read", statusLabel(err)).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		g.populate(ctx, key, data, o.memoryOnly)
		return data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return project(v.(sheets.TabData), columns), nil
}

// Append writes one row through to the source and drops the tab from both
// tiers. A read after a successful append never sees the pre-write dataset.
func (g *Gateway) Append(ctx context.Context, storeID, tab string, row sheets.Row) error {
	start := time.Now()
	err := g.source.Append(ctx, storeID, tab, row)
	metrics.SheetFetchLatency.WithLabelValues("append", statusLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("appending to %s/%s: %w", storeID, tab, err)
	}
	g.Invalidate(ctx, storeID, tab)
	return nil
}

// Update overwrites one row through to the source and drops the tab from
// both tiers.
func (g *Gateway) Update(ctx context.Context, storeID, tab string, rowIndex int, row sheets.Row) error {
	start := time.Now()
	err := g.source.Update(ctx, storeID, tab, rowIndex, row)
	metrics.SheetFetchLatency.WithLabelValues("update", statusLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("updating %s/%s row %d: %w", storeID, tab, rowIndex, err)
	}
	g.Invalidate(ctx, storeID, tab)
	return nil
}

// Invalidate drops the tab from both tiers regardless of read mode.
func (g *Gateway) Invalidate(ctx context.Context, storeID, tab string) {
	key := cache.Key{StoreID: storeID, Tab: tab}
	if err := g.memory.Invalidate(ctx, key); err != nil {
		slog.Error("memory invalidation failed", "key", key.String(), "error", err)
	}
	if err := g.persistent.Invalidate(ctx, key); err != nil {
		// The source write already happened; reads may be stale until the
		// TTL runs out.
		slog.Error("persistent invalidation failed", "key", key.String(), "error", err)
	}
}

// tierGet reads one tier, treating tier errors as misses so a broken cache
// never blocks a read.
func (g *Gateway) tierGet(ctx context.Context, tier cache.Tier, name string, key cache.Key) (sheets.TabData, bool) {
	data, ok, err := tier.Get(ctx, key)
	if err != nil {
		slog.Warn("cache read failed", "tier", name, "key", key.String(), "error", err)
		metrics.CacheRequests.WithLabelValues(name, "error").Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheRequests.WithLabelValues(name, "miss").Inc()
		return nil, false
	}
	metrics.CacheRequests.WithLabelValues(name, "hit").Inc()
	return data, true
}

func (g *Gateway) populate(ctx context.Context, key cache.Key, data sheets.TabData, memoryOnly bool) {
	if err := g.memory.Set(ctx, key, data, g.memoryTTL); err != nil {
		slog.Warn("memory cache write failed", "key", key.String(), "error", err)
	}
	if memoryOnly {
		return
	}
	if err := g.persistent.Set(ctx, key, data, g.persistentTTL); err != nil {
		slog.Warn("persistent cache write failed", "key", key.String(), "error", err)
	}
}

// project returns an independent copy of data reduced to columns. The
// singleflight result is shared across callers, so the copy is mandatory.
func project(data sheets.TabData, columns []string) sheets.TabData {
	if len(columns) == 0 {
		return data.Clone()
	}
	return data.Project(columns)
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
