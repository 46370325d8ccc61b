package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

// --- Mock entry store ---

type storedEntry struct {
	payload   string
	expiresAt time.Time
}

type mockEntryStore struct {
	entries map[string]storedEntry
	getErr  error
}

func newMockEntryStore() *mockEntryStore {
	return &mockEntryStore{entries: make(map[string]storedEntry)}
}

func (s *mockEntryStore) GetSheetCache(storeID, tab string, now time.Time) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	e, ok := s.entries[storeID+":"+tab]
	if !ok || !now.Before(e.expiresAt) {
		return "", false, nil
	}
	return e.payload, true, nil
}

func (s *mockEntryStore) SetSheetCache(storeID, tab, payload string, _, expiresAt time.Time) error {
	s.entries[storeID+":"+tab] = storedEntry{payload: payload, expiresAt: expiresAt}
	return nil
}

func (s *mockEntryStore) DeleteSheetCache(storeID, tab string) error {
	delete(s.entries, storeID+":"+tab)
	return nil
}

func (s *mockEntryStore) PurgeExpiredSheetCache(now time.Time) (int64, error) {
	var n int64
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func TestPersistent_RoundTrip(t *testing.T) {
	store := newMockEntryStore()
	p := NewPersistent(store)
	key := Key{"store-1", "Services"}

	data := sheets.TabData{{"name": "Haircut", "price": "35"}}
	if err := p.Set(context.Background(), key, data, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := p.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get = miss, want hit")
	}
	if got[0]["name"] != "Haircut" {
		t.Errorf("name = %q, want %q", got[0]["name"], "Haircut")
	}
}

func TestPersistent_ExpiryIsMiss(t *testing.T) {
	store := newMockEntryStore()
	clock := &mockClock{now: time.Now()}
	p := NewPersistentWithClock(store, clock)
	key := Key{"store-1", "Services"}

	p.Set(context.Background(), key, sheets.TabData{{"name": "Haircut"}}, time.Hour)

	clock.Advance(time.Hour)
	if _, ok, _ := p.Get(context.Background(), key); ok {
		t.Error("Get past expiry = hit, want miss")
	}
}

func TestPersistent_Invalidate(t *testing.T) {
	store := newMockEntryStore()
	p := NewPersistent(store)
	key := Key{"store-1", "Bookings"}

	p.Set(context.Background(), key, sheets.TabData{{"service": "Haircut"}}, time.Hour)
	if err := p.Invalidate(context.Background(), key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, ok, _ := p.Get(context.Background(), key); ok {
		t.Error("Get after Invalidate = hit, want miss")
	}
}

func TestPersistent_CorruptPayload(t *testing.T) {
	store := newMockEntryStore()
	store.entries["store-1:Hours"] = storedEntry{payload: "{not json", expiresAt: time.Now().Add(time.Hour)}
	p := NewPersistent(store)

	_, _, err := p.Get(context.Background(), Key{"store-1", "Hours"})
	if err == nil {
		t.Error("Get with corrupt payload = nil error, want decode error")
	}
}

func TestPersistent_StoreError(t *testing.T) {
	store := newMockEntryStore()
	store.getErr = errors.New("disk full")
	p := NewPersistent(store)

	_, _, err := p.Get(context.Background(), Key{"store-1", "Hours"})
	if err == nil {
		t.Error("Get with failing store = nil error, want wrapped error")
	}
}

func TestPersistent_PurgeExpired(t *testing.T) {
	store := newMockEntryStore()
	clock := &mockClock{now: time.Now()}
	p := NewPersistentWithClock(store, clock)

	p.Set(context.Background(), Key{"store-1", "Hours"}, hoursData, time.Minute)
	p.Set(context.Background(), Key{"store-1", "Services"}, hoursData, time.Hour)

	clock.Advance(30 * time.Minute)
	n, err := p.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d entries, want 1", n)
	}
}
