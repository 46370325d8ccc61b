// Package api is the HTTP surface of the storefront assistant: the public
// widget endpoints, the bearer-gated admin endpoints, and an MCP server that
// exposes the same store functions to agent clients.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/debug"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/executor"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/gateway"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/pipeline"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

const maxRequestBodySize = 1 << 20 // 1MB

// codeUnauthorized is the one failure code minted by the HTTP layer itself;
// everything else comes from the pipeline.
const codeUnauthorized executor.Code = "unauthorized"

// ChatPipeline is the request-handling core the HTTP layer fronts.
// Implemented by pipeline.Pipeline.
type ChatPipeline interface {
	Handle(ctx context.Context, req pipeline.Request) pipeline.Response
}

// TabReader is the cached sheet surface the admin endpoints use.
// Implemented by gateway.Gateway.
type TabReader interface {
	Read(ctx context.Context, storeID, tab string, columns []string, opts ...gateway.ReadOption) (sheets.TabData, error)
	Invalidate(ctx context.Context, storeID, tab string)
}

// TraceSource exposes recent request traces. Implemented by debug.Recorder.
type TraceSource interface {
	Snapshot() []debug.RequestRecord
}

// JobCounter reports the deferred-delivery queue by job status.
// Implemented by storage.Store.
type JobCounter interface {
	CountJobsByStatus() (map[string]int, error)
}

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Pipeline   ChatPipeline
	Tabs       TabReader
	Traces     TraceSource
	Jobs       JobCounter
	AdminToken string
}

// NewRouter assembles the full HTTP surface: widget endpoints in the open,
// admin endpoints behind the bearer token, metrics for the scraper.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/chat", handleChat(deps.Pipeline))
	r.Post("/api/direct-call", handleDirectCall(deps.Pipeline))

	r.Route("/api/admin", func(ar chi.Router) {
		ar.Use(BearerAuth(deps.AdminToken))
		ar.Get("/debug/requests", handleDebugRequests(deps))
		ar.Post("/cache/invalidate", handleInvalidate(deps))
		ar.Get("/tabs/{storeID}/{tab}", handleReadTab(deps))
		ar.Get("/jobs", handleJobCounts(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorEnvelope struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Code    executor.Code `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code executor.Code, format string, args ...any) {
	writeJSON(w, status, errorEnvelope{Error: fmt.Sprintf(format, args...), Code: code})
}
