package executor

import (
	"context"
	"strings"
	"time"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

// bookableSlots is the fixed storefront schedule: hourly starts with a break
// at noon.
var bookableSlots = []string{"09:00", "10:00", "11:00", "13:00", "14:00", "15:00", "16:00"}

// SlotStrategy produces the candidate start times for a service on a date,
// before booked slots are subtracted.
type SlotStrategy interface {
	Slots(service sheets.Row, hours sheets.Row, date time.Time) []string
}

// FixedSlots is the default strategy: the same seven start times every open
// day, regardless of service duration or posted hours.
type FixedSlots struct{}

// Slots returns a fresh copy of the fixed list.
func (FixedSlots) Slots(_ sheets.Row, _ sheets.Row, _ time.Time) []string {
	out := make([]string, len(bookableSlots))
	copy(out, bookableSlots)
	return out
}

// availability reports the free start times for a service on a date.
func (e *Executor) availability(ctx context.Context, storeID string, params map[string]any) Result {
	serviceName := stringParam(params, "service_name")
	dateStr := stringParam(params, "date")

	if missing := missingFields([]reqField{{"service_name", serviceName}, {"date", dateStr}}); len(missing) > 0 {
		return fail(CodeValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return fail(CodeValidation, "date %q is not formatted YYYY-MM-DD", dateStr)
	}

	check, failRes := e.openSlots(ctx, storeID, serviceName, date)
	if failRes != nil {
		return *failRes
	}
	return ok(map[string]any{
		"service":         check.serviceName,
		"date":            dateStr,
		"available_slots": check.slots,
	})
}

// slotCheck is the successful outcome of an openSlots run.
type slotCheck struct {
	service     sheets.Row
	serviceName string
	slots       []string
}

// openSlots computes the free start times for a service on a date. The
// closed-day check runs before any slot math so a closed store answers
// "closed", not "no slots left". A nil second return means success.
func (e *Executor) openSlots(ctx context.Context, storeID, serviceName string, date time.Time) (slotCheck, *Result) {
	services, err := e.gw.Read(ctx, storeID, sheets.TabServices, nil)
	if err != nil {
		return slotCheck{}, failPtr(sourceFail(err))
	}
	service, found := matchService(services, serviceName)
	if !found {
		return slotCheck{}, failPtr(fail(CodeNotFound, "service %q not found; available services: %s",
			serviceName, strings.Join(serviceNames(services), ", ")))
	}
	canonical := rowServiceName(service)

	hours, err := e.gw.Read(ctx, storeID, sheets.TabHours, nil)
	if err != nil {
		return slotCheck{}, failPtr(sourceFail(err))
	}
	weekday := date.Weekday().String()
	day, hasDay := matchDay(hours, weekday)
	if hasDay && isClosed(day) {
		return slotCheck{}, failPtr(fail(CodeNotAvailable, "Store is closed on %s", weekday))
	}
	// No Hours row for this weekday means the owner left it blank; treat the
	// day as open. Closing by default would silently block every booking on
	// a part-filled sheet.

	bookings, err := e.gw.Read(ctx, storeID, sheets.TabBookings, nil)
	if err != nil {
		return slotCheck{}, failPtr(sourceFail(err))
	}
	taken := bookedTimes(bookings, canonical, date.Format("2006-01-02"))

	open := make([]string, 0, len(bookableSlots))
	for _, slot := range e.slots.Slots(service, day, date) {
		if !taken[slot] {
			open = append(open, slot)
		}
	}
	return slotCheck{service: service, serviceName: canonical, slots: open}, nil
}

func failPtr(r Result) *Result { return &r }

// matchService finds a service row by case-insensitive name.
func matchService(services sheets.TabData, name string) (sheets.Row, bool) {
	want := strings.TrimSpace(name)
	for _, row := range services {
		if strings.EqualFold(rowServiceName(row), want) {
			return row, true
		}
	}
	return nil, false
}

func rowServiceName(row sheets.Row) string {
	return strings.TrimSpace(row.Lookup("name", "service_name", "service"))
}

func serviceNames(services sheets.TabData) []string {
	names := make([]string, 0, len(services))
	for _, row := range services {
		if n := rowServiceName(row); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// matchDay finds the Hours row for a weekday by case-insensitive name.
func matchDay(hours sheets.TabData, weekday string) (sheets.Row, bool) {
	for _, row := range hours {
		if strings.EqualFold(strings.TrimSpace(row.Lookup("day", "weekday")), weekday) {
			return row, true
		}
	}
	return nil, false
}

// isClosed recognizes the usual spreadsheet spellings of a closed day.
func isClosed(day sheets.Row) bool {
	switch strings.ToLower(strings.TrimSpace(day.Lookup("closed"))) {
	case "true", "yes", "closed", "1", "x":
		return true
	}
	// Some sheets write "Closed" in the open column instead.
	open := strings.ToLower(strings.TrimSpace(day.Lookup("open")))
	return open == "closed" || open == "-"
}

// bookedTimes collects the start times already taken for a service on a date.
func bookedTimes(bookings sheets.TabData, service, date string) map[string]bool {
	taken := make(map[string]bool)
	for _, row := range bookings {
		if !strings.EqualFold(strings.TrimSpace(row.Lookup("service", "service_name")), service) {
			continue
		}
		if strings.TrimSpace(row.Lookup("date")) != date {
			continue
		}
		if t := strings.TrimSpace(row.Lookup("time")); t != "" {
			taken[t] = true
		}
	}
	return taken
}
