// Package composer turns executor results into the text a customer reads in
// the chat widget. Successful results render the data; failures render a
// plain-language explanation keyed on the result code.
package composer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/executor"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

const defaultMaxListItems = 10

// Composer renders function results as chat replies.
type Composer struct {
	MaxListItems int
}

// New creates a Composer that lists at most maxListItems rows per reply.
// If maxListItems <= 0, the default (10) is used.
func New(maxListItems int) *Composer {
	if maxListItems <= 0 {
		maxListItems = defaultMaxListItems
	}
	return &Composer{MaxListItems: maxListItems}
}

// Compose builds the reply text for one executed function.
func (c *Composer) Compose(function string, res executor.Result) string {
	if !res.Success {
		return c.composeFailure(res)
	}
	switch function {
	case "get_store_info":
		return c.storeInfo(res.Data)
	case "check_availability":
		return c.availability(res.Data)
	case "create_booking":
		return c.booking(res.Data)
	case "get_products":
		return c.listing("Here's what we have in stock:", dataTab(res.Data, "products"), formatProduct)
	case "get_services":
		return c.listing("Here are our services:", dataTab(res.Data, "services"), formatService)
	case "submit_lead":
		return "Thanks! I've passed your details to the store and they'll get back to you soon."
	case "get_recommendation":
		return c.listing("You might like:", dataTab(res.Data, "recommendations"), formatProduct)
	default:
		return "Done."
	}
}

// composeFailure translates a result code into something a customer can act
// on. Availability and lookup failures carry usable sentences already; the
// rest get a generic apology so internals never leak into the chat.
func (c *Composer) composeFailure(res executor.Result) string {
	switch res.Code {
	case executor.CodeNotAvailable:
		return res.Error + ". Would you like to try a different day or time?"
	case executor.CodeNotFound:
		return "Sorry, " + res.Error + "."
	case executor.CodeValidation:
		return "I couldn't process that: " + res.Error + "."
	case executor.CodeSourceUnavailable:
		return "I'm having trouble reaching the store's records right now. Please try again in a moment."
	case executor.CodeTabNotFound, executor.CodeInvalidData:
		return "The store's records look incomplete for that request. Please try again later or contact the store directly."
	default:
		return "Sorry, something went wrong. Could you try that again?"
	}
}

func (c *Composer) storeInfo(data map[string]any) string {
	var sb strings.Builder

	if hours := dataTab(data, "hours"); len(hours) > 0 {
		sb.WriteString("Opening hours:\n")
		for _, row := range hours {
			sb.WriteString(formatHours(row))
			sb.WriteString("\n")
		}
	}
	if services := dataTab(data, "services"); len(services) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Services:\n")
		for i, row := range services {
			if i == c.MaxListItems {
				fmt.Fprintf(&sb, "…and %d more\n", len(services)-i)
				break
			}
			sb.WriteString(formatService(row))
			sb.WriteString("\n")
		}
	}
	if products := dataTab(data, "products"); len(products) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Products:\n")
		for i, row := range products {
			if i == c.MaxListItems {
				fmt.Fprintf(&sb, "…and %d more\n", len(products)-i)
				break
			}
			sb.WriteString(formatProduct(row))
			sb.WriteString("\n")
		}
	}

	if sb.Len() == 0 {
		return "The store hasn't published its details yet."
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Composer) availability(data map[string]any) string {
	service := dataString(data, "service")
	date := dataString(data, "date")
	slots := dataStrings(data, "available_slots")

	if len(slots) == 0 {
		return fmt.Sprintf("Sorry, %s is fully booked on %s. Would you like to try another day?", service, date)
	}
	return fmt.Sprintf("%s is available on %s at: %s. Which time works for you?",
		service, date, strings.Join(slots, ", "))
}

func (c *Composer) booking(data map[string]any) string {
	return fmt.Sprintf("Your booking is confirmed: %s on %s at %s. Your confirmation code is %s.",
		dataString(data, "service"), dataString(data, "date"),
		dataString(data, "time"), dataString(data, "confirmation_code"))
}

// listing renders up to MaxListItems rows with the given formatter.
func (c *Composer) listing(header string, rows sheets.TabData, format func(sheets.Row) string) string {
	if len(rows) == 0 {
		return "There's nothing listed yet. Is there anything else I can help with?"
	}

	var sb strings.Builder
	sb.WriteString(header)
	for i, row := range rows {
		if i == c.MaxListItems {
			fmt.Fprintf(&sb, "\n…and %d more", len(rows)-i)
			break
		}
		sb.WriteString("\n")
		sb.WriteString(format(row))
	}
	return sb.String()
}

func formatHours(row sheets.Row) string {
	day := row.Lookup("day", "weekday")
	closed := strings.ToLower(row.Lookup("closed"))
	open := row.Lookup("open")
	close := row.Lookup("close")

	switch {
	case closed == "yes" || closed == "true" || strings.EqualFold(open, "closed"):
		return fmt.Sprintf("- %s: closed", day)
	case open != "" && close != "":
		return fmt.Sprintf("- %s: %s to %s", day, open, close)
	default:
		return fmt.Sprintf("- %s: open", day)
	}
}

func formatService(row sheets.Row) string {
	line := "- " + row.Lookup("name", "service_name", "service")
	if price := formatPrice(row.Lookup("price")); price != "" {
		line += " — " + price
	}
	if d := row.Lookup("duration"); d != "" {
		line += fmt.Sprintf(" (%s min)", d)
	}
	return line
}

func formatProduct(row sheets.Row) string {
	line := "- " + row.Lookup("name")
	if price := formatPrice(row.Lookup("price")); price != "" {
		line += " — " + price
	}
	if desc := row.Lookup("description"); desc != "" {
		line += ": " + desc
	}
	return line
}

// formatPrice prefixes bare numbers with a dollar sign and leaves anything
// already carrying a currency marker alone.
func formatPrice(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if r := rune(s[0]); unicode.IsDigit(r) {
		return "$" + s
	}
	return s
}

// --- Data accessors ---

// The executor hands native Go values, but values that crossed a JSON
// boundary arrive as []any, so both shapes are accepted.

func dataString(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func dataStrings(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func dataTab(data map[string]any, key string) sheets.TabData {
	switch v := data[key].(type) {
	case sheets.TabData:
		return v
	case []any:
		out := make(sheets.TabData, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				row := make(sheets.Row, len(m))
				for k, val := range m {
					if s, ok := val.(string); ok {
						row[k] = s
					}
				}
				out = append(out, row)
			}
		}
		return out
	}
	return nil
}
