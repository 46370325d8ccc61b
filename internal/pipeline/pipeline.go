// Package pipeline orchestrates one chat turn. A message is routed or
// classified into a function call; the executor runs it and the composer
// turns the result into a reply, with each step recorded on the trace.
// The pipeline holds no per-conversation state; history arrives with each
// request.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/classify"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/composer"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/debug"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/direct"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/executor"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/metrics"
)

// clarificationFallback keeps the conversation alive when the classifier
// could not produce a usable decision.
const clarificationFallback = "I'm sorry, I didn't quite catch that. Could you tell me a bit more about what you'd like to do?"

// Request is one incoming message or widget action.
type Request struct {
	StoreID        string
	ConversationID string
	Message        string
	History        []classify.Message
	Action         string         // non-empty for direct widget calls
	Data           map[string]any // direct-call fields
	Path           string         // chat, direct, mcp; defaults to chat
}

// Response is the turn's outcome in the shape the widget consumes.
type Response struct {
	Success   bool           `json:"success"`
	RequestID string         `json:"requestId"`
	Reply     string         `json:"reply,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Code      executor.Code  `json:"code,omitempty"`
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Pipeline wires the chat components together.
type Pipeline struct {
	classifier *classify.Classifier
	exec       *executor.Executor
	composer   *composer.Composer
	recorder   *debug.Recorder
	clock      Clock
}

// New creates a Pipeline wired to all chat components.
func New(classifier *classify.Classifier, exec *executor.Executor, comp *composer.Composer, recorder *debug.Recorder) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		exec:       exec,
		composer:   comp,
		recorder:   recorder,
		clock:      realClock{},
	}
}

// WithClock replaces the wall clock (for testing).
func (p *Pipeline) WithClock(c Clock) *Pipeline {
	p.clock = c
	return p
}

// Handle runs one request through the pipeline.
func (p *Pipeline) Handle(ctx context.Context, req Request) Response {
	path := req.Path
	if path == "" {
		path = "chat"
	}
	id := p.recorder.StartRequest(path, req.StoreID, req.Message)

	if req.Action != "" {
		return p.handleDirect(ctx, id, path, req)
	}
	return p.handleChat(ctx, id, path, req)
}

// handleDirect short-circuits widget actions past the classifier. A button
// click is never ambiguous, so a model round-trip would be pure latency.
func (p *Pipeline) handleDirect(ctx context.Context, id, path string, req Request) Response {
	start := time.Now()
	function, params, err := direct.Route(req.Action, req.Data)
	if err != nil {
		p.recorder.RecordStep(id, "route", err.Error(), time.Since(start))
		p.recorder.EndRequest(id, "error", "")
		metrics.ChatRequests.WithLabelValues(path, "error").Inc()
		return Response{
			RequestID: id,
			Success:   false,
			Error:     "That action isn't supported.",
			Code:      executor.CodeUnknownFunction,
		}
	}
	p.recorder.RecordStep(id, "route", "action="+req.Action+" function="+function, time.Since(start))

	return p.execute(ctx, id, path, req.StoreID, function, params)
}

func (p *Pipeline) handleChat(ctx context.Context, id, path string, req Request) Response {
	// 1. Resolve relative dates for the model; it must never compute them.
	now := p.clock.Now().UTC()
	today := now.Format("2006-01-02")
	tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")

	// 2. Classify.
	start := time.Now()
	decision, usage, err := p.classifier.Classify(ctx, req.History, req.Message, today, tomorrow)
	p.recorder.RecordUsage(id, usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		// Parse or transport trouble degrades to a clarification turn; the
		// customer rephrases and the conversation continues.
		p.recorder.RecordStep(id, "classify", err.Error(), time.Since(start))
		p.recorder.EndRequest(id, "clarification", "")
		metrics.ChatRequests.WithLabelValues(path, "clarification").Inc()
		return Response{
			RequestID: id,
			Success:   true,
			Reply:     clarificationFallback,
			Code:      executor.CodeClassification,
		}
	}
	p.recorder.RecordStep(id, "classify",
		fmt.Sprintf("function=%s clarify=%t lang=%s", decision.FunctionToCall, decision.NeedsClarification, decision.UserLanguage),
		time.Since(start))

	// 3. Act on the decision.
	switch {
	case decision.NeedsClarification:
		question := decision.ClarificationQuestion
		if question == "" {
			question = clarificationFallback
		}
		p.recorder.EndRequest(id, "clarification", "")
		metrics.ChatRequests.WithLabelValues(path, "clarification").Inc()
		return Response{RequestID: id, Success: true, Reply: question}

	case decision.FunctionToCall != "":
		return p.execute(ctx, id, path, req.StoreID, decision.FunctionToCall, decision.Parameters)

	case decision.Reply != "":
		p.recorder.EndRequest(id, "ok", "")
		metrics.ChatRequests.WithLabelValues(path, "reply").Inc()
		return Response{RequestID: id, Success: true, Reply: decision.Reply}

	default:
		p.recorder.EndRequest(id, "clarification", "")
		metrics.ChatRequests.WithLabelValues(path, "clarification").Inc()
		return Response{RequestID: id, Success: true, Reply: clarificationFallback}
	}
}

// execute runs the function and composes the reply. Failed results stay
// results: the raw error detail goes to the recorder and the customer sees
// the composed message only.
func (p *Pipeline) execute(ctx context.Context, id, path, storeID, function string, params map[string]any) Response {
	start := time.Now()
	res := p.exec.Execute(ctx, storeID, function, params)
	p.recorder.RecordStep(id, "execute",
		fmt.Sprintf("function=%s success=%t code=%s error=%s", function, res.Success, res.Code, res.Error),
		time.Since(start))

	reply := p.composer.Compose(function, res)

	if !res.Success {
		p.recorder.EndRequest(id, "error", function)
		metrics.ChatRequests.WithLabelValues(path, "error").Inc()
		return Response{
			RequestID: id,
			Success:   false,
			Reply:     reply,
			Error:     reply,
			Code:      res.Code,
		}
	}

	p.recorder.EndRequest(id, "ok", function)
	metrics.ChatRequests.WithLabelValues(path, "function").Inc()
	return Response{RequestID: id, Success: true, Reply: reply, Data: res.Data}
}
