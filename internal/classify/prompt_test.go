package classify

import (
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestBuildPrompt_SystemFirstUserLast(t *testing.T) {
	msgs := BuildPrompt(nil, "when are you open?", "2025-03-10", "2025-03-11")

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first role = %q, want system", msgs[0].Role)
	}
	if msgs[1].Role != openai.ChatMessageRoleUser {
		t.Errorf("last role = %q, want user", msgs[1].Role)
	}
	if msgs[1].Content != "when are you open?" {
		t.Errorf("last content = %q, want the customer message", msgs[1].Content)
	}
}

func TestBuildPrompt_IncludesDates(t *testing.T) {
	msgs := BuildPrompt(nil, "book me in tomorrow", "2025-03-10", "2025-03-11")

	sys := msgs[0].Content
	if !strings.Contains(sys, "Today is 2025-03-10") {
		t.Error("system prompt missing today's date")
	}
	if !strings.Contains(sys, "Tomorrow is 2025-03-11") {
		t.Error("system prompt missing tomorrow's date")
	}
}

func TestBuildPrompt_ClosedFunctionSetListed(t *testing.T) {
	msgs := BuildPrompt(nil, "hi", "2025-03-10", "2025-03-11")

	sys := msgs[0].Content
	for _, fn := range []string{"get_store_info", "check_availability", "create_booking", "get_products", "get_services", "submit_lead", "get_recommendation"} {
		if !strings.Contains(sys, fn) {
			t.Errorf("system prompt does not enumerate %q", fn)
		}
	}
}

func TestBuildPrompt_HistoryRolesMapped(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "do you do massages?"},
		{Role: "assistant", Content: "We do! 60 minutes for $80."},
	}
	msgs := BuildPrompt(history, "book one for friday", "2025-03-10", "2025-03-11")

	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	if msgs[1].Role != openai.ChatMessageRoleUser {
		t.Errorf("history[0] role = %q, want user", msgs[1].Role)
	}
	if msgs[2].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("history[1] role = %q, want assistant", msgs[2].Role)
	}
}

func TestBuildPrompt_TrimsLongHistory(t *testing.T) {
	var history []Message
	for i := 0; i < 30; i++ {
		history = append(history, Message{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}
	msgs := BuildPrompt(history, "latest", "2025-03-10", "2025-03-11")

	// system + capped history + latest message
	if len(msgs) != maxHistoryMessages+2 {
		t.Fatalf("got %d messages, want %d", len(msgs), maxHistoryMessages+2)
	}
	// The kept turns are the most recent ones.
	if msgs[1].Content != "turn 18" {
		t.Errorf("oldest kept turn = %q, want %q", msgs[1].Content, "turn 18")
	}
}
