package storage

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

// TestIndexesExist verifies the expected indexes are created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_sheet_cache_expires", "idx_jobs_status_run_after"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

// --- Sheet cache ---

func TestSheetCacheRoundTrip(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	payload := `[{"name":"Haircut","price":"35"}]`
	if err := s.SetSheetCache("store-1", "Services", payload, now, now.Add(time.Hour)); err != nil {
		t.Fatalf("SetSheetCache: %v", err)
	}

	got, ok, err := s.GetSheetCache("store-1", "Services", now)
	if err != nil {
		t.Fatalf("GetSheetCache: %v", err)
	}
	if !ok {
		t.Fatal("GetSheetCache = miss, want hit")
	}
	if got != payload {
		t.Errorf("payload = %q, want %q", got, payload)
	}
}

func TestSheetCacheExpiredIsMiss(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	if err := s.SetSheetCache("store-1", "Hours", `[]`, now, now.Add(time.Hour)); err != nil {
		t.Fatalf("SetSheetCache: %v", err)
	}

	// At exactly expires_at the entry is stale.
	if _, ok, _ := s.GetSheetCache("store-1", "Hours", now.Add(time.Hour)); ok {
		t.Error("GetSheetCache at expiry = hit, want miss")
	}
	if _, ok, _ := s.GetSheetCache("store-1", "Hours", now.Add(59*time.Minute)); !ok {
		t.Error("GetSheetCache before expiry = miss, want hit")
	}
}

func TestSheetCacheUpsert(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	if err := s.SetSheetCache("store-1", "Products", `["old"]`, now, now.Add(time.Hour)); err != nil {
		t.Fatalf("SetSheetCache: %v", err)
	}
	if err := s.SetSheetCache("store-1", "Products", `["new"]`, now, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("SetSheetCache (overwrite): %v", err)
	}

	got, ok, err := s.GetSheetCache("store-1", "Products", now)
	if err != nil {
		t.Fatalf("GetSheetCache: %v", err)
	}
	if !ok {
		t.Fatal("GetSheetCache = miss, want hit")
	}
	if got != `["new"]` {
		t.Errorf("payload = %q, want %q", got, `["new"]`)
	}
}

func TestSheetCacheDelete(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	if err := s.SetSheetCache("store-1", "Bookings", `[]`, now, now.Add(time.Hour)); err != nil {
		t.Fatalf("SetSheetCache: %v", err)
	}
	if err := s.DeleteSheetCache("store-1", "Bookings"); err != nil {
		t.Fatalf("DeleteSheetCache: %v", err)
	}

	if _, ok, _ := s.GetSheetCache("store-1", "Bookings", now); ok {
		t.Error("GetSheetCache after delete = hit, want miss")
	}

	// Deleting a missing row is not an error.
	if err := s.DeleteSheetCache("store-1", "Bookings"); err != nil {
		t.Errorf("DeleteSheetCache (missing): %v", err)
	}
}

func TestPurgeExpiredSheetCache(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	s.SetSheetCache("store-1", "Hours", `[]`, now.Add(-2*time.Hour), now.Add(-time.Hour))
	s.SetSheetCache("store-1", "Services", `[]`, now, now.Add(time.Hour))
	s.SetSheetCache("store-2", "Hours", `[]`, now.Add(-2*time.Hour), now.Add(-time.Minute))

	n, err := s.PurgeExpiredSheetCache(now)
	if err != nil {
		t.Fatalf("PurgeExpiredSheetCache: %v", err)
	}
	if n != 2 {
		t.Errorf("purged %d rows, want 2", n)
	}

	if _, ok, _ := s.GetSheetCache("store-1", "Services", now); !ok {
		t.Error("live entry was purged")
	}
}

// --- Jobs ---

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)

	job := Job{
		ID:          "j-claim-1",
		Type:        "lead_append",
		PayloadJSON: `{"storeId":"store-1"}`,
	}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"lead_append"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j-claim-1" {
		t.Errorf("ID = %q, want %q", got.ID, "j-claim-1")
	}
	if got.Type != "lead_append" {
		t.Errorf("Type = %q, want %q", got.Type, "lead_append")
	}
	if got.PayloadJSON != `{"storeId":"store-1"}` {
		t.Errorf("PayloadJSON = %q, want %q", got.PayloadJSON, `{"storeId":"store-1"}`)
	}
	if got.Status != "running" {
		t.Errorf("Status = %q, want %q", got.Status, "running")
	}
	if got.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", got.MaxAttempts)
	}
}

func TestClaimNextJob_Empty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ClaimNextJob([]string{"lead_append"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestClaimNextJob_RespectRunAfter(t *testing.T) {
	s := openTestStore(t)

	job := Job{
		ID:          "j-future",
		Type:        "lead_append",
		PayloadJSON: `{}`,
		RunAfter:    time.Now().UTC().Add(1 * time.Hour),
	}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"lead_append"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for future run_after, got %+v", got)
	}
}

func TestClaimNextJob_SkipsRunning(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-first", Type: "lead_append", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob first: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"lead_append"}); err != nil {
		t.Fatalf("ClaimNextJob first: %v", err)
	}

	if err := s.EnqueueJob(Job{ID: "j-second", Type: "lead_append", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob second: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"lead_append"})
	if err != nil {
		t.Fatalf("ClaimNextJob second: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j-second" {
		t.Errorf("ID = %q, want %q", got.ID, "j-second")
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-complete", Type: "lead_append", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"lead_append"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.CompleteJob("j-complete"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	var status string
	if err := s.db.QueryRow(`SELECT status FROM jobs WHERE id = 'j-complete'`).Scan(&status); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != "completed" {
		t.Errorf("status = %q, want %q", status, "completed")
	}
}

func TestFailJob_IncrementsAttempts(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-fail-inc", Type: "lead_append", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"lead_append"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob("j-fail-inc", "sheet source unavailable"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	var status, lastError string
	var attempts int
	if err := s.db.QueryRow(`SELECT status, attempts, last_error FROM jobs WHERE id = 'j-fail-inc'`).Scan(&status, &attempts, &lastError); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if status != "pending" {
		t.Errorf("status = %q, want %q", status, "pending")
	}
	if lastError != "sheet source unavailable" {
		t.Errorf("last_error = %q, want %q", lastError, "sheet source unavailable")
	}
}

func TestFailJob_MaxAttemptsReached(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-fail-max", Type: "lead_append", PayloadJSON: `{}`, MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"lead_append"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob("j-fail-max", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	var status string
	if err := s.db.QueryRow(`SELECT status FROM jobs WHERE id = 'j-fail-max'`).Scan(&status); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != "failed" {
		t.Errorf("status = %q, want %q", status, "failed")
	}
}

func TestFailJob_SetsBackoff(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-backoff", Type: "lead_append", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"lead_append"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}

	before := time.Now().UTC()
	if err := s.FailJob("j-backoff", "retry"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	var runAfterStr string
	if err := s.db.QueryRow(`SELECT run_after FROM jobs WHERE id = 'j-backoff'`).Scan(&runAfterStr); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	runAfter, err := time.Parse(time.RFC3339, runAfterStr)
	if err != nil {
		t.Fatalf("parsing run_after: %v", err)
	}
	if !runAfter.After(before) {
		t.Errorf("run_after %v should be after %v", runAfter, before)
	}
}

func TestCountJobsByStatus(t *testing.T) {
	s := openTestStore(t)

	s.EnqueueJob(Job{ID: "j-1", Type: "lead_append", PayloadJSON: `{}`})
	s.EnqueueJob(Job{ID: "j-2", Type: "lead_append", PayloadJSON: `{}`})
	if _, err := s.ClaimNextJob([]string{"lead_append"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.CompleteJob("j-1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	counts, err := s.CountJobsByStatus()
	if err != nil {
		t.Fatalf("CountJobsByStatus: %v", err)
	}
	if counts["pending"] != 1 {
		t.Errorf("pending = %d, want 1", counts["pending"])
	}
	if counts["completed"] != 1 {
		t.Errorf("completed = %d, want 1", counts["completed"])
	}
}
