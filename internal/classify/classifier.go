// Package classify turns a customer message plus conversation history into a
// structured decision: ask a clarifying question, call one of the closed set
// of store functions, or answer directly.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	openai "github.com/sashabaranov/go-openai"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// ErrClassification marks an unusable classifier outcome: transport failure,
// unparseable output, or a function name outside the closed set. The caller
// degrades it to a clarification turn; it must never reach execution.
var ErrClassification = errors.New("classification failed")

// Message is one turn of the widget's conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Decision is the structured classification of one customer message.
// NeedsClarification and FunctionToCall are mutually exclusive; when both are
// unset, Reply carries a direct conversational answer.
type Decision struct {
	NeedsClarification    bool           `json:"needs_clarification"`
	ClarificationQuestion string         `json:"clarification_question"`
	FunctionToCall        string         `json:"function_to_call"`
	Parameters            map[string]any `json:"parameters"`
	UserLanguage          string         `json:"user_language"`
	Reply                 string         `json:"reply"`
}

// Usage reports the token spend of one classification call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatCompleter is the one-method subset of the OpenAI client the classifier
// needs. Implemented by openai.Client.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Classifier maps customer messages onto the closed function set using a
// chat-completion model at temperature zero.
type Classifier struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	known   map[string]bool
}

// New creates a Classifier restricted to the given function names.
// A timeout <= 0 falls back to the default.
func New(client ChatCompleter, model string, timeout time.Duration, functions []string) *Classifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	known := make(map[string]bool, len(functions))
	for _, fn := range functions {
		known[fn] = true
	}
	return &Classifier{client: client, model: model, timeout: timeout, known: known}
}

// Classify analyses the message against the history and returns the decision.
// today and tomorrow are preformatted YYYY-MM-DD dates; the model resolves
// relative dates against them and never does date math itself. Every failure
// path wraps ErrClassification. A decision naming a function outside the
// closed set is one of those failures: it is never executed.
func (c *Classifier) Classify(ctx context.Context, history []Message, message, today, tomorrow string) (Decision, Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    BuildPrompt(history, message, today, tomorrow),
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ClassifierLatency.WithLabelValues(c.model, status).Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Warn("classifier chat failed", "model", c.model, "error", err)
		return Decision{}, Usage{}, fmt.Errorf("chat completion: %w", ErrClassification)
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}

	if len(resp.Choices) == 0 {
		return Decision{}, usage, fmt.Errorf("empty completion: %w", ErrClassification)
	}
	raw := resp.Choices[0].Message.Content

	d, err := parseDecision(raw)
	if err != nil {
		slog.Warn("unparseable classifier output", "error", err, "response", raw)
		return Decision{}, usage, fmt.Errorf("parsing decision: %w", ErrClassification)
	}

	if d.UserLanguage == "" {
		d.UserLanguage = "en"
	}
	if d.FunctionToCall != "" && !c.known[d.FunctionToCall] {
		slog.Warn("classifier named an unknown function", "function", d.FunctionToCall)
		return Decision{}, usage, fmt.Errorf("unknown function %q: %w", d.FunctionToCall, ErrClassification)
	}

	return d, usage, nil
}

// parseDecision extracts the decision object from a model response. Models
// occasionally wrap JSON in markdown code fences or emit almost-JSON with
// trailing commas or single quotes. The parser:
//  1. Strips markdown code fences if present (```json ... ```)
//  2. Finds the first { and last } to extract the JSON object
//  3. Attempts a strict json.Unmarshal on the extracted substring
//  4. On failure: runs a repair pass and unmarshals once more
func parseDecision(resp string) (Decision, error) {
	s := strings.TrimSpace(resp)

	// Strip markdown code fences.
	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if strings.HasPrefix(s, "json") {
			s = s[4:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	// Extract JSON object by brace position.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return Decision{}, fmt.Errorf("no JSON object in response")
	}
	s = s[start : end+1]

	var d Decision
	if err := json.Unmarshal([]byte(s), &d); err == nil {
		return d, nil
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return Decision{}, fmt.Errorf("repairing decision JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &d); err != nil {
		return Decision{}, fmt.Errorf("unmarshal decision: %w", err)
	}
	return d, nil
}
