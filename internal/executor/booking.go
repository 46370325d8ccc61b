package executor

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/metrics"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
)

// createBooking validates the request, re-checks availability against fresh
// bookings, and appends a confirmed row. Validation runs before any read so
// a malformed request never touches the source.
func (e *Executor) createBooking(ctx context.Context, storeID string, params map[string]any) Result {
	serviceName := stringParam(params, "service_name")
	dateStr := stringParam(params, "date")
	timeStr := stringParam(params, "time")
	customerName := stringParam(params, "customer_name")
	customerEmail := stringParam(params, "customer_email")
	customerPhone := stringParam(params, "customer_phone")

	missing := missingFields([]reqField{
		{"service_name", serviceName},
		{"date", dateStr},
		{"time", timeStr},
		{"customer_name", customerName},
		{"customer_email", customerEmail},
	})
	if len(missing) > 0 {
		metrics.Bookings.WithLabelValues("rejected").Inc()
		return fail(CodeValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if !emailPattern.MatchString(customerEmail) {
		metrics.Bookings.WithLabelValues("rejected").Inc()
		return fail(CodeValidation, "invalid email address %q", customerEmail)
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		metrics.Bookings.WithLabelValues("rejected").Inc()
		return fail(CodeValidation, "date %q is not formatted YYYY-MM-DD", dateStr)
	}

	// Never trust availability from an earlier turn; another customer may
	// have taken the slot since.
	check, failRes := e.openSlots(ctx, storeID, serviceName, date)
	if failRes != nil {
		metrics.Bookings.WithLabelValues("rejected").Inc()
		return *failRes
	}
	if !slices.Contains(check.slots, timeStr) {
		metrics.Bookings.WithLabelValues("rejected").Inc()
		return fail(CodeNotAvailable, "%s on %s at %s is not available; open slots: %s",
			check.serviceName, dateStr, timeStr, strings.Join(check.slots, ", "))
	}

	code := confirmationCode()
	row := sheets.Row{
		"service":           check.serviceName,
		"date":              dateStr,
		"time":              timeStr,
		"customer_name":     customerName,
		"customer_email":    customerEmail,
		"customer_phone":    customerPhone,
		"status":            "confirmed",
		"confirmation_code": code,
		"created_at":        e.clock.Now().UTC().Format(time.RFC3339),
	}
	if err := e.gw.Append(ctx, storeID, sheets.TabBookings, row); err != nil {
		metrics.Bookings.WithLabelValues("error").Inc()
		return sourceFail(err)
	}

	metrics.Bookings.WithLabelValues("confirmed").Inc()
	return ok(map[string]any{
		"service":           check.serviceName,
		"date":              dateStr,
		"time":              timeStr,
		"customer_name":     customerName,
		"status":            "confirmed",
		"confirmation_code": code,
	})
}

// confirmationCode derives a short human-readable token from a UUID.
func confirmationCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
