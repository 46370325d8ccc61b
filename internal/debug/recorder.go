// Package debug keeps an in-memory trace of recent pipeline runs for the
// admin panel. Recording is fire-and-forget: a full event buffer drops the
// event instead of slowing a chat turn, and nothing is ever persisted.
package debug

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRingSize is how many recent requests the ring retains.
	DefaultRingSize = 100

	eventBuffer = 256
)

// Step is one completed pipeline stage inside a request.
type Step struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"duration_ms"`
	Detail     string `json:"detail,omitempty"`
}

// RequestRecord is the trace of one request through the pipeline.
type RequestRecord struct {
	ID               string    `json:"id"`
	StoreID          string    `json:"store_id"`
	Path             string    `json:"path"` // chat, direct, mcp
	Message          string    `json:"message,omitempty"`
	Function         string    `json:"function,omitempty"`
	Status           string    `json:"status"` // in_flight, ok, clarification, error
	Steps            []Step    `json:"steps,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	DurationMs       int64     `json:"duration_ms"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
	CostUSD          float64   `json:"cost_usd,omitempty"`
}

// Rates is per-1K-token pricing used to estimate request cost. Zero rates
// leave CostUSD at zero.
type Rates struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

type eventKind int

const (
	eventStart eventKind = iota
	eventStep
	eventUsage
	eventEnd
)

type event struct {
	kind eventKind
	id   string
	at   time.Time

	storeID string
	path    string
	message string

	step Step

	promptTokens     int
	completionTokens int

	status   string
	function string
}

// Recorder holds the most-recent-N request traces. One consumer goroutine
// owns all mutation; callers only ever send events, so the pipeline never
// contends on the ring.
type Recorder struct {
	events chan event
	quit   chan struct{}
	once   sync.Once
	rates  Rates
	size   int

	mu       sync.RWMutex
	ring     []*RequestRecord
	inFlight map[string]*RequestRecord
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithRates enables cost estimation with the given per-1K token prices.
func WithRates(r Rates) Option {
	return func(rec *Recorder) { rec.rates = r }
}

// New creates a Recorder retaining the most recent size requests and starts
// its consumer. If size <= 0, DefaultRingSize is used.
func New(size int, opts ...Option) *Recorder {
	if size <= 0 {
		size = DefaultRingSize
	}
	r := &Recorder{
		events:   make(chan event, eventBuffer),
		quit:     make(chan struct{}),
		size:     size,
		inFlight: make(map[string]*RequestRecord),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// Close stops the consumer. Events sent afterwards are silently dropped.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.quit) })
}

// StartRequest opens a trace and returns its correlation ID.
func (r *Recorder) StartRequest(path, storeID, message string) string {
	id := uuid.NewString()
	r.send(event{kind: eventStart, id: id, at: time.Now(), path: path, storeID: storeID, message: message})
	return id
}

// RecordStep appends a completed stage to the trace.
func (r *Recorder) RecordStep(id, name, detail string, took time.Duration) {
	r.send(event{kind: eventStep, id: id, at: time.Now(), step: Step{
		Name:       name,
		DurationMs: took.Milliseconds(),
		Detail:     detail,
	}})
}

// RecordUsage adds token counts (and their cost, if rates are set).
func (r *Recorder) RecordUsage(id string, promptTokens, completionTokens int) {
	r.send(event{kind: eventUsage, id: id, at: time.Now(), promptTokens: promptTokens, completionTokens: completionTokens})
}

// EndRequest closes the trace with a final status.
func (r *Recorder) EndRequest(id, status, function string) {
	r.send(event{kind: eventEnd, id: id, at: time.Now(), status: status, function: function})
}

// Snapshot returns copies of the retained records, newest first.
func (r *Recorder) Snapshot() []RequestRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RequestRecord, 0, len(r.ring))
	for i := len(r.ring) - 1; i >= 0; i-- {
		rec := *r.ring[i]
		rec.Steps = append([]Step(nil), r.ring[i].Steps...)
		out = append(out, rec)
	}
	return out
}

// send never blocks; when the buffer is full the event is lost.
func (r *Recorder) send(ev event) {
	select {
	case r.events <- ev:
	default:
	}
}

func (r *Recorder) run() {
	for {
		select {
		case ev := <-r.events:
			r.apply(ev)
		case <-r.quit:
			return
		}
	}
}

func (r *Recorder) apply(ev event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.kind {
	case eventStart:
		rec := &RequestRecord{
			ID:        ev.id,
			StoreID:   ev.storeID,
			Path:      ev.path,
			Message:   ev.message,
			Status:    "in_flight",
			StartedAt: ev.at,
		}
		r.inFlight[ev.id] = rec
		r.ring = append(r.ring, rec)
		if len(r.ring) > r.size {
			evicted := r.ring[0]
			r.ring = r.ring[1:]
			delete(r.inFlight, evicted.ID)
		}
	case eventStep:
		if rec := r.inFlight[ev.id]; rec != nil {
			rec.Steps = append(rec.Steps, ev.step)
		}
	case eventUsage:
		if rec := r.inFlight[ev.id]; rec != nil {
			rec.PromptTokens += ev.promptTokens
			rec.CompletionTokens += ev.completionTokens
			rec.CostUSD += float64(ev.promptTokens)/1000*r.rates.PromptPer1K +
				float64(ev.completionTokens)/1000*r.rates.CompletionPer1K
		}
	case eventEnd:
		if rec := r.inFlight[ev.id]; rec != nil {
			rec.Status = ev.status
			rec.Function = ev.function
			rec.DurationMs = ev.at.Sub(rec.StartedAt).Milliseconds()
			delete(r.inFlight, ev.id)
		}
	}
}
