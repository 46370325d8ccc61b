package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/storage"
)

// --- Mock deliverer ---

type delivery struct {
	storeID string
	tab     string
	row     sheets.Row
}

type mockDeliverer struct {
	mu        sync.Mutex
	delivered []delivery
	appendFn  func(ctx context.Context, storeID, tab string, row sheets.Row) error
}

func (m *mockDeliverer) Append(ctx context.Context, storeID, tab string, row sheets.Row) error {
	if m.appendFn != nil {
		if err := m.appendFn(ctx, storeID, tab, row); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, delivery{storeID: storeID, tab: tab, row: row})
	return nil
}

func (m *mockDeliverer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// resetRunAfter sets run_after to now so the job is immediately claimable after FailJob backoff.
func resetRunAfter(t *testing.T, store *storage.Store, jobID string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := store.DB().Exec(`UPDATE jobs SET run_after = ? WHERE id = ?`, now, jobID); err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func jobStatus(t *testing.T, store *storage.Store) (string, int) {
	t.Helper()
	var status string
	var attempts int
	err := store.DB().QueryRow(`SELECT status, attempts FROM jobs LIMIT 1`).Scan(&status, &attempts)
	if err != nil {
		t.Fatalf("querying job status: %v", err)
	}
	return status, attempts
}

func testLeadRow() sheets.Row {
	return sheets.Row{
		"name":       "Dana Reyes",
		"email":      "dana@example.com",
		"message":    "Do you sell gift cards?",
		"created_at": "2025-06-03T10:00:00Z",
	}
}

// --- Queue ---

func TestQueue_DeferEncodesPayload(t *testing.T) {
	store := openTestStore(t)
	q := NewQueue(store)

	if err := q.Defer(context.Background(), "store-1", testLeadRow()); err != nil {
		t.Fatalf("Defer: %v", err)
	}

	job, err := store.ClaimNextJob([]string{JobType})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil {
		t.Fatal("no job enqueued")
	}
	if job.Type != JobType {
		t.Errorf("job type = %q, want %q", job.Type, JobType)
	}

	var payload jobPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		t.Fatalf("payload does not parse: %v", err)
	}
	if payload.StoreID != "store-1" {
		t.Errorf("payload store = %q, want store-1", payload.StoreID)
	}
	if payload.Row["email"] != "dana@example.com" {
		t.Errorf("payload row email = %q, want dana@example.com", payload.Row["email"])
	}
}

// --- Worker ---

func TestWorker_DeliversLead(t *testing.T) {
	store := openTestStore(t)
	q := NewQueue(store)
	if err := q.Defer(context.Background(), "store-1", testLeadRow()); err != nil {
		t.Fatalf("Defer: %v", err)
	}

	sink := &mockDeliverer{}
	w := NewWorker(store, sink, 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}

	if sink.count() != 1 {
		t.Fatalf("delivered %d rows, want 1", sink.count())
	}
	got := sink.delivered[0]
	if got.storeID != "store-1" {
		t.Errorf("storeID = %q, want store-1", got.storeID)
	}
	if got.tab != sheets.TabLeads {
		t.Errorf("tab = %q, want %q", got.tab, sheets.TabLeads)
	}
	if got.row["name"] != "Dana Reyes" {
		t.Errorf("row name = %q, want Dana Reyes", got.row["name"])
	}

	status, _ := jobStatus(t, store)
	if status != "completed" {
		t.Errorf("job status = %q, want completed", status)
	}
}

func TestWorker_NoJobs(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, &mockDeliverer{}, 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if didWork {
		t.Error("RunOnce returned true on an empty queue")
	}
}

func TestWorker_RetryOnFailure(t *testing.T) {
	store := openTestStore(t)
	q := NewQueue(store)
	if err := q.Defer(context.Background(), "store-1", testLeadRow()); err != nil {
		t.Fatalf("Defer: %v", err)
	}
	var jobID string
	if err := store.DB().QueryRow(`SELECT id FROM jobs LIMIT 1`).Scan(&jobID); err != nil {
		t.Fatalf("reading job id: %v", err)
	}

	var calls atomic.Int32
	sink := &mockDeliverer{
		appendFn: func(_ context.Context, _, _ string, _ sheets.Row) error {
			if n := calls.Add(1); n <= 2 {
				return fmt.Errorf("transient error %d", n)
			}
			return nil
		},
	}
	w := NewWorker(store, sink, 0)
	ctx := context.Background()

	// 1st attempt fails and the job goes back to pending with backoff.
	if didWork, err := w.RunOnce(ctx); err != nil || !didWork {
		t.Fatalf("RunOnce 1: didWork=%v err=%v", didWork, err)
	}
	status, attempts := jobStatus(t, store)
	if status != "pending" || attempts != 1 {
		t.Errorf("after 1st fail: status=%q attempts=%d, want pending/1", status, attempts)
	}
	resetRunAfter(t, store, jobID)

	// 2nd attempt fails again.
	if didWork, err := w.RunOnce(ctx); err != nil || !didWork {
		t.Fatalf("RunOnce 2: didWork=%v err=%v", didWork, err)
	}
	resetRunAfter(t, store, jobID)

	// 3rd attempt delivers.
	if didWork, err := w.RunOnce(ctx); err != nil || !didWork {
		t.Fatalf("RunOnce 3: didWork=%v err=%v", didWork, err)
	}
	status, _ = jobStatus(t, store)
	if status != "completed" {
		t.Errorf("final status = %q, want completed", status)
	}
	if sink.count() != 1 {
		t.Errorf("delivered %d rows, want 1", sink.count())
	}
}

func TestWorker_MaxRetriesExceeded(t *testing.T) {
	store := openTestStore(t)
	q := NewQueue(store)
	if err := q.Defer(context.Background(), "store-1", testLeadRow()); err != nil {
		t.Fatalf("Defer: %v", err)
	}
	var jobID string
	if err := store.DB().QueryRow(`SELECT id FROM jobs LIMIT 1`).Scan(&jobID); err != nil {
		t.Fatalf("reading job id: %v", err)
	}

	sink := &mockDeliverer{
		appendFn: func(_ context.Context, _, _ string, _ sheets.Row) error {
			return fmt.Errorf("permanent error")
		},
	}
	w := NewWorker(store, sink, 0)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		didWork, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce %d error: %v", i, err)
		}
		if !didWork {
			t.Fatalf("RunOnce %d returned false", i)
		}
		if i < 5 {
			resetRunAfter(t, store, jobID)
		}
	}

	status, attempts := jobStatus(t, store)
	if status != "failed" {
		t.Errorf("final status = %q, want failed", status)
	}
	if attempts != 5 {
		t.Errorf("attempts = %d, want 5", attempts)
	}
}

func TestWorker_BadPayloadDoesNotDeliver(t *testing.T) {
	store := openTestStore(t)
	job := storage.Job{ID: "job-bad", Type: JobType, PayloadJSON: "{not json"}
	if err := store.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	sink := &mockDeliverer{}
	w := NewWorker(store, sink, 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}
	if sink.count() != 0 {
		t.Errorf("bad payload still delivered %d rows", sink.count())
	}
	status, attempts := jobStatus(t, store)
	if status != "pending" || attempts != 1 {
		t.Errorf("after bad payload: status=%q attempts=%d, want pending/1", status, attempts)
	}
}
