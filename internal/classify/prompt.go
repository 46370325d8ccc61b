package classify

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// maxHistoryMessages caps how much widget history reaches the model. Older
// turns carry little classification signal and inflate token spend.
const maxHistoryMessages = 12

const systemPromptTemplate = `You are the intent classifier for a storefront assistant. Analyze the customer's latest message against the conversation history. Your output must be ONLY a single valid JSON object. Do not include any other text, prose, or markdown.

Output fields:
- "needs_clarification": boolean — true when required details are missing or the request is ambiguous
- "clarification_question": string — the question to ask (only when needs_clarification is true), written in the customer's language
- "function_to_call": string — one of the functions below, or "" when no function applies
- "parameters": object — the arguments extracted for that function
- "user_language": string — two-letter code of the customer's language (e.g. "en", "es")
- "reply": string — a short direct answer, only for greetings or questions that need no function and no clarification

Functions:
- get_store_info(info_type): store details; info_type is one of "hours", "services", "products", "all"
- check_availability(service_name, date): open time slots for a service on a date
- create_booking(service_name, date, time, customer_name, customer_email, customer_phone): book a service once every required detail has been collected
- get_products(category): list products, optionally filtered by category
- get_services(): list bookable services
- submit_lead(name, email, message): save contact details when the customer asks for a follow-up
- get_recommendation(preference): suggest products matching a stated preference

Rules:
- Dates are formatted YYYY-MM-DD. Today is %s. Tomorrow is %s. Resolve "today", "tomorrow", and weekday names against these; never compute dates any other way.
- Times are formatted HH:MM in 24-hour time.
- Never invent parameter values. When one is missing, ask for it via needs_clarification.
- For create_booking every parameter except customer_phone is required before calling.
- "function_to_call" may only name a function listed above.`

// BuildPrompt constructs the chat messages for one classification call.
func BuildPrompt(history []Message, message, today, tomorrow string) []openai.ChatCompletionMessage {
	history = trimHistory(history, maxHistoryMessages)

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPromptTemplate, today, tomorrow),
	})

	for _, h := range history {
		role := openai.ChatMessageRoleUser
		if h.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: h.Content})
	}

	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
	return msgs
}

// trimHistory keeps the most recent max turns.
func trimHistory(history []Message, max int) []Message {
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
