package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/classify"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/executor"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/pipeline"
)

// ChatRequest is one widget turn. Action and Data ride the same endpoint so
// a widget button click shares the conversation's transport.
type ChatRequest struct {
	StoreID        string             `json:"storeId"`
	ConversationID string             `json:"conversationId"`
	Message        string             `json:"message"`
	History        []classify.Message `json:"history"`
	Action         string             `json:"action"`
	Data           map[string]any     `json:"data"`
}

// DirectCallRequest is a widget action invoked outside a conversation.
type DirectCallRequest struct {
	StoreID string         `json:"storeId"`
	Action  string         `json:"action"`
	Data    map[string]any `json:"data"`
}

func handleChat(p ChatPipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, executor.CodeValidation, "invalid request body: %v", err)
			return
		}
		if req.StoreID == "" {
			writeError(w, http.StatusBadRequest, executor.CodeValidation, "storeId is required")
			return
		}
		if req.Action == "" && strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, executor.CodeValidation, "message is required")
			return
		}

		resp := p.Handle(r.Context(), pipeline.Request{
			StoreID:        req.StoreID,
			ConversationID: req.ConversationID,
			Message:        req.Message,
			History:        req.History,
			Action:         req.Action,
			Data:           req.Data,
			Path:           "chat",
		})

		// Business failures ride the envelope, not the status line; the
		// widget treats any non-200 as an outage.
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleDirectCall(p ChatPipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req DirectCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, executor.CodeValidation, "invalid request body: %v", err)
			return
		}
		if req.StoreID == "" {
			writeError(w, http.StatusBadRequest, executor.CodeValidation, "storeId is required")
			return
		}
		if req.Action == "" {
			writeError(w, http.StatusBadRequest, executor.CodeValidation, "action is required")
			return
		}

		resp := p.Handle(r.Context(), pipeline.Request{
			StoreID: req.StoreID,
			Action:  req.Action,
			Data:    req.Data,
			Path:    "direct",
		})
		writeJSON(w, http.StatusOK, resp)
	}
}
