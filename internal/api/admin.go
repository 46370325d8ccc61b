package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/debug"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/executor"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

// InvalidateRequest names one cached tab to drop.
type InvalidateRequest struct {
	StoreID string `json:"storeId"`
	TabName string `json:"tabName"`
}

func handleDebugRequests(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs := deps.Traces.Snapshot()
		if recs == nil {
			recs = []debug.RequestRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// handleInvalidate drops a tab from every cache tier. Store owners call this
// after editing the sheet directly so the widget stops serving stale rows.
func handleInvalidate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req InvalidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, executor.CodeValidation, "invalid request body: %v", err)
			return
		}
		if req.StoreID == "" || req.TabName == "" {
			writeError(w, http.StatusBadRequest, executor.CodeValidation, "storeId and tabName are required")
			return
		}

		deps.Tabs.Invalidate(r.Context(), req.StoreID, req.TabName)
		writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
	}
}

// handleJobCounts reports the deferred-lead queue so an operator can spot
// jobs piling up behind a source outage.
func handleJobCounts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := deps.Jobs.CountJobsByStatus()
		if err != nil {
			writeError(w, http.StatusInternalServerError, executor.CodeSourceUnavailable, "counting jobs: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
	}
}

func handleReadTab(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID := chi.URLParam(r, "storeID")
		tab := chi.URLParam(r, "tab")

		data, err := deps.Tabs.Read(r.Context(), storeID, tab, nil)
		if errors.Is(err, sheets.ErrTabNotFound) {
			writeError(w, http.StatusNotFound, executor.CodeTabNotFound, "tab %q not found for store %q", tab, storeID)
			return
		}
		if errors.Is(err, sheets.ErrInvalidData) {
			writeError(w, http.StatusBadGateway, executor.CodeInvalidData, "tab %q has invalid data: %v", tab, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, executor.CodeSourceUnavailable, "reading tab: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"storeId": storeID,
			"tab":     tab,
			"rows":    data,
			"count":   len(data),
		})
	}
}
