package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Deliverer appends a row to a store tab.
// Implemented by gateway.Gateway.
type Deliverer interface {
	Append(ctx context.Context, storeID, tab string, row sheets.Row) error
}

// Worker drains lead_append jobs from the queue into the Leads tab. Failed
// deliveries go back to pending with backoff until max attempts is reached.
type Worker struct {
	store  JobStore
	sink   Deliverer
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 15s.
func NewWorker(store JobStore, sink Deliverer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &Worker{
		store:  store,
		sink:   sink,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("lead worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and delivers a single lead_append job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.deliver(ctx, job); err != nil {
		w.logger.Warn("lead delivery failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Info("deferred lead delivered", "job_id", job.ID)
	return true, nil
}

func (w *Worker) deliver(ctx context.Context, job *storage.Job) error {
	var payload jobPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.StoreID == "" {
		return fmt.Errorf("payload has no store_id")
	}

	if err := w.sink.Append(ctx, payload.StoreID, sheets.TabLeads, payload.Row); err != nil {
		return fmt.Errorf("appending lead for store %s: %w", payload.StoreID, err)
	}
	return nil
}
