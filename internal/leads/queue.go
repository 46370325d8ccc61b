// Package leads parks lead rows that could not reach the spreadsheet and
// replays them once the source recovers. A lead is the one write a customer
// never retries, so losing it to an outage is losing the customer.
package leads

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/storage"
)

// JobType identifies deferred lead rows in the jobs table.
const JobType = "lead_append"

// jobPayload is the JSON body of a lead_append job.
type jobPayload struct {
	StoreID string     `json:"store_id"`
	Row     sheets.Row `json:"row"`
}

// Enqueuer is the slice of the store the queue needs.
// Implemented by storage.Store.
type Enqueuer interface {
	EnqueueJob(job storage.Job) error
}

// Queue persists lead rows as pending jobs.
type Queue struct {
	store Enqueuer
}

// NewQueue creates a Queue over the given store.
func NewQueue(store Enqueuer) *Queue {
	return &Queue{store: store}
}

// Defer records a lead row for later delivery to the store's Leads tab.
func (q *Queue) Defer(_ context.Context, storeID string, row sheets.Row) error {
	body, err := json.Marshal(jobPayload{StoreID: storeID, Row: row})
	if err != nil {
		return fmt.Errorf("encoding lead payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(body),
	}
	if err := q.store.EnqueueJob(job); err != nil {
		return fmt.Errorf("enqueueing lead job: %w", err)
	}
	return nil
}
