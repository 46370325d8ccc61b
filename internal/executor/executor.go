// Package executor runs the closed set of store functions. Operations read
// and write domain data through the gateway and report a uniform Result:
// failures become data, never panics.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/gateway"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

// Code is the machine-readable taxonomy label on failed results.
type Code string

const (
	CodeSourceUnavailable Code = "source_unavailable"
	CodeTabNotFound       Code = "tab_not_found"
	CodeInvalidData       Code = "invalid_data"
	CodeClassification    Code = "classification_error"
	CodeUnknownFunction   Code = "unknown_function"
	CodeValidation        Code = "validation_error"
	CodeNotAvailable      Code = "not_available"
	CodeNotFound          Code = "not_found"
)

// Result is the uniform outcome of one function execution.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    Code           `json:"code,omitempty"`
}

func ok(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

func fail(code Code, format string, args ...any) Result {
	return Result{Success: false, Code: code, Error: fmt.Sprintf(format, args...)}
}

// DataGateway is the slice of the gateway the executor needs.
// Implemented by gateway.Gateway.
type DataGateway interface {
	Read(ctx context.Context, storeID, tab string, columns []string, opts ...gateway.ReadOption) (sheets.TabData, error)
	Append(ctx context.Context, storeID, tab string, row sheets.Row) error
}

// LeadDeferrer queues a lead row for later delivery when the source is down.
// Implemented by leads.Queue.
type LeadDeferrer interface {
	Defer(ctx context.Context, storeID string, row sheets.Row) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Executor dispatches function calls against one store's workbook. It holds
// no per-request state; a single instance serves all stores.
type Executor struct {
	gw    DataGateway
	leads LeadDeferrer
	slots SlotStrategy
	clock Clock
}

// Option configures an Executor.
type Option func(*Executor)

// WithLeadQueue enables deferred lead delivery on source outages.
func WithLeadQueue(q LeadDeferrer) Option {
	return func(e *Executor) { e.leads = q }
}

// WithSlotStrategy replaces the default fixed slot list.
func WithSlotStrategy(s SlotStrategy) Option {
	return func(e *Executor) { e.slots = s }
}

// WithClock replaces the wall clock (for testing).
func WithClock(c Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// New creates an Executor over the given gateway.
func New(gw DataGateway, opts ...Option) *Executor {
	e := &Executor{gw: gw, slots: FixedSlots{}, clock: realClock{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Functions returns the closed set of executable function names.
func Functions() []string {
	return []string{
		"get_store_info",
		"check_availability",
		"create_booking",
		"get_products",
		"get_services",
		"submit_lead",
		"get_recommendation",
	}
}

// Execute runs one named function with the given parameters. Unknown names
// fail closed; nothing outside the fixed set is ever dispatched.
func (e *Executor) Execute(ctx context.Context, storeID, name string, params map[string]any) Result {
	switch name {
	case "get_store_info":
		return e.storeInfo(ctx, storeID, params)
	case "check_availability":
		return e.availability(ctx, storeID, params)
	case "create_booking":
		return e.createBooking(ctx, storeID, params)
	case "get_products":
		return e.products(ctx, storeID, params)
	case "get_services":
		return e.services(ctx, storeID)
	case "submit_lead":
		return e.submitLead(ctx, storeID, params)
	case "get_recommendation":
		return e.recommendation(ctx, storeID, params)
	default:
		return fail(CodeUnknownFunction, "unknown function %q", name)
	}
}

// storeInfo returns hours, services, products, or all three. The composite
// fetches the tabs concurrently and a failed tab degrades to an empty list
// instead of failing the whole call.
func (e *Executor) storeInfo(ctx context.Context, storeID string, params map[string]any) Result {
	infoType := stringParam(params, "info_type")
	if infoType == "" {
		infoType = "all"
	}

	switch infoType {
	case "hours", "services", "products":
		data, err := e.gw.Read(ctx, storeID, tabForInfo(infoType), nil)
		if err != nil {
			return sourceFail(err)
		}
		return ok(map[string]any{infoType: data})
	case "all":
		var hours, services, products sheets.TabData
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(3)
		g.Go(func() error {
			hours = e.readOrEmpty(gCtx, storeID, sheets.TabHours)
			return nil
		})
		g.Go(func() error {
			services = e.readOrEmpty(gCtx, storeID, sheets.TabServices)
			return nil
		})
		g.Go(func() error {
			products = e.readOrEmpty(gCtx, storeID, sheets.TabProducts)
			return nil
		})
		g.Wait()
		return ok(map[string]any{"hours": hours, "services": services, "products": products})
	default:
		return fail(CodeValidation, "info_type %q is not one of hours, services, products, all", infoType)
	}
}

func tabForInfo(infoType string) string {
	switch infoType {
	case "hours":
		return sheets.TabHours
	case "services":
		return sheets.TabServices
	default:
		return sheets.TabProducts
	}
}

// readOrEmpty fetches one tab, degrading any failure to an empty dataset.
func (e *Executor) readOrEmpty(ctx context.Context, storeID, tab string) sheets.TabData {
	data, err := e.gw.Read(ctx, storeID, tab, nil)
	if err != nil {
		slog.Warn("store info tab fetch failed", "store", storeID, "tab", tab, "error", err)
		return sheets.TabData{}
	}
	return data
}

func (e *Executor) products(ctx context.Context, storeID string, params map[string]any) Result {
	category := stringParam(params, "category")

	data, err := e.gw.Read(ctx, storeID, sheets.TabProducts, nil)
	if err != nil {
		return sourceFail(err)
	}

	if category != "" {
		filtered := make(sheets.TabData, 0, len(data))
		for _, row := range data {
			if strings.EqualFold(strings.TrimSpace(row.Lookup("category")), category) {
				filtered = append(filtered, row)
			}
		}
		if len(filtered) == 0 {
			return fail(CodeNotFound, "no products found in category %q", category)
		}
		data = filtered
	}
	return ok(map[string]any{"products": data, "count": len(data)})
}

func (e *Executor) services(ctx context.Context, storeID string) Result {
	data, err := e.gw.Read(ctx, storeID, sheets.TabServices, nil)
	if err != nil {
		return sourceFail(err)
	}
	return ok(map[string]any{"services": data, "count": len(data)})
}

func (e *Executor) submitLead(ctx context.Context, storeID string, params map[string]any) Result {
	name := stringParam(params, "name")
	email := stringParam(params, "email")
	message := stringParam(params, "message")

	if missing := missingFields([]reqField{{"name", name}, {"email", email}}); len(missing) > 0 {
		return fail(CodeValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if !emailPattern.MatchString(email) {
		return fail(CodeValidation, "invalid email address %q", email)
	}

	row := sheets.Row{
		"name":       name,
		"email":      email,
		"message":    message,
		"created_at": e.clock.Now().UTC().Format(time.RFC3339),
	}
	if err := e.gw.Append(ctx, storeID, sheets.TabLeads, row); err != nil {
		// A lead is fire-and-forget from the customer's side; when the sheet
		// is down, park the row in the local queue instead of losing it.
		if errors.Is(err, sheets.ErrSourceUnavailable) && e.leads != nil {
			if qErr := e.leads.Defer(ctx, storeID, row); qErr != nil {
				slog.Error("lead deferral failed", "store", storeID, "error", qErr)
				return sourceFail(err)
			}
			return ok(map[string]any{"deferred": true})
		}
		return sourceFail(err)
	}
	return ok(map[string]any{"deferred": false})
}

func (e *Executor) recommendation(ctx context.Context, storeID string, params map[string]any) Result {
	preference := stringParam(params, "preference")
	if preference == "" {
		return fail(CodeValidation, "missing required fields: preference")
	}

	data, err := e.gw.Read(ctx, storeID, sheets.TabProducts, nil)
	if err != nil {
		return sourceFail(err)
	}

	matches := scoreByPreference(data, preference)
	if len(matches) == 0 {
		return fail(CodeNotFound, "no products match %q", preference)
	}
	if len(matches) > 3 {
		matches = matches[:3]
	}
	return ok(map[string]any{"recommendations": matches})
}

// scoreByPreference ranks rows by keyword overlap between the stated
// preference and the product's name, category, and description.
func scoreByPreference(data sheets.TabData, preference string) sheets.TabData {
	terms := strings.Fields(strings.ToLower(preference))

	type scored struct {
		row  sheets.Row
		hits int
	}
	var matches []scored
	for _, row := range data {
		haystack := strings.ToLower(row.Lookup("name") + " " + row.Lookup("category") + " " + row.Lookup("description"))
		hits := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, scored{row: row, hits: hits})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].hits > matches[j].hits })

	out := make(sheets.TabData, len(matches))
	for i, m := range matches {
		out[i] = m.row
	}
	return out
}

// --- Shared helpers ---

// emailPattern accepts anything shaped like user@host.tld.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type reqField struct {
	name  string
	value string
}

// missingFields returns the names of blank required fields, in declared order
// so the error message is deterministic.
func missingFields(fields []reqField) []string {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// stringParam returns the named parameter as a trimmed string. Non-string
// values (JSON numbers, booleans) are formatted rather than dropped.
func stringParam(params map[string]any, name string) string {
	v, ok := params[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// sourceFail maps a gateway error onto the result taxonomy.
func sourceFail(err error) Result {
	switch {
	case errors.Is(err, sheets.ErrTabNotFound):
		return fail(CodeTabNotFound, "%s", err)
	case errors.Is(err, sheets.ErrInvalidData):
		return fail(CodeInvalidData, "%s", err)
	default:
		return fail(CodeSourceUnavailable, "%s", err)
	}
}
