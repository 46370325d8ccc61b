package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var hoursData = sheets.TabData{
	{"day": "Monday", "open": "09:00", "close": "17:00"},
	{"day": "Tuesday", "open": "09:00", "close": "17:00"},
}

func TestMemory_MissOnEmpty(t *testing.T) {
	m, err := NewMemory(8)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}

	_, ok, err := m.Get(context.Background(), Key{"store-1", "Hours"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get on empty cache = hit, want miss")
	}
}

func TestMemory_SetThenGet(t *testing.T) {
	m, _ := NewMemory(8)
	key := Key{"store-1", "Hours"}

	if err := m.Set(context.Background(), key, hoursData, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := m.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get = miss, want hit")
	}
	if len(got) != 2 || got[0]["day"] != "Monday" {
		t.Errorf("got %v, want the cached hours rows", got)
	}
}

func TestMemory_ExpiredEntryIsMiss(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	m, _ := NewMemoryWithClock(8, clock)
	key := Key{"store-1", "Hours"}

	m.Set(context.Background(), key, hoursData, time.Minute)

	clock.Advance(59 * time.Second)
	if _, ok, _ := m.Get(context.Background(), key); !ok {
		t.Error("Get before expiry = miss, want hit")
	}

	// Expiry is exclusive: at exactly cachedAt+TTL the entry is stale.
	clock.Advance(time.Second)
	if _, ok, _ := m.Get(context.Background(), key); ok {
		t.Error("Get at expiry = hit, want miss")
	}
}

func TestMemory_ExpiredEntryEvicted(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	m, _ := NewMemoryWithClock(8, clock)
	key := Key{"store-1", "Hours"}

	m.Set(context.Background(), key, hoursData, time.Minute)
	clock.Advance(2 * time.Minute)

	m.Get(context.Background(), key)
	if m.Len() != 0 {
		t.Errorf("Len after expired read = %d, want 0", m.Len())
	}
}

func TestMemory_Invalidate(t *testing.T) {
	m, _ := NewMemory(8)
	key := Key{"store-1", "Bookings"}

	m.Set(context.Background(), key, hoursData, time.Minute)
	if err := m.Invalidate(context.Background(), key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, ok, _ := m.Get(context.Background(), key); ok {
		t.Error("Get after Invalidate = hit, want miss")
	}
}

func TestMemory_ReturnsCopy(t *testing.T) {
	m, _ := NewMemory(8)
	key := Key{"store-1", "Hours"}

	m.Set(context.Background(), key, hoursData, time.Minute)

	got, _, _ := m.Get(context.Background(), key)
	got[0]["day"] = "Sunday"

	again, _, _ := m.Get(context.Background(), key)
	if again[0]["day"] != "Monday" {
		t.Error("cached dataset was mutated through a returned copy")
	}
}

func TestMemory_SizeBound(t *testing.T) {
	m, _ := NewMemory(2)

	m.Set(context.Background(), Key{"store-1", "Hours"}, hoursData, time.Minute)
	m.Set(context.Background(), Key{"store-1", "Services"}, hoursData, time.Minute)
	m.Set(context.Background(), Key{"store-1", "Products"}, hoursData, time.Minute)

	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	// Oldest key is the one evicted.
	if _, ok, _ := m.Get(context.Background(), Key{"store-1", "Hours"}); ok {
		t.Error("oldest entry survived past the size bound")
	}
}

func TestMemory_DistinctStoresDistinctKeys(t *testing.T) {
	m, _ := NewMemory(8)

	m.Set(context.Background(), Key{"store-1", "Hours"}, hoursData, time.Minute)

	if _, ok, _ := m.Get(context.Background(), Key{"store-2", "Hours"}); ok {
		t.Error("store-2 read a dataset cached for store-1")
	}
}
