// Package sheets talks to the web-app endpoint that fronts a store's
// spreadsheet. Each store connects one workbook; tabs hold the domain data
// (Hours, Services, Products, Bookings, Leads).
package sheets

import (
	"errors"
	"strings"
)

// Tab names fixed by the workbook template every store copies.
const (
	TabHours    = "Hours"
	TabServices = "Services"
	TabProducts = "Products"
	TabBookings = "Bookings"
	TabLeads    = "Leads"
)

// Row is a single spreadsheet row keyed by column header.
type Row map[string]string

// TabData is the ordered contents of one spreadsheet tab, header row excluded.
type TabData []Row

// Failure kinds surfaced by the source. Callers match with errors.Is.
var (
	ErrSourceUnavailable = errors.New("sheet source unavailable")
	ErrTabNotFound       = errors.New("tab not found")
	ErrInvalidData       = errors.New("invalid sheet data")
)

// Lookup returns the value of the first column whose canonical name matches
// one of the given names. Canonical form ignores case, spaces, underscores
// and hyphens, so "Service Name", "service_name" and "servicename" all meet.
func (r Row) Lookup(names ...string) string {
	for _, want := range names {
		cw := canonicalColumn(want)
		for col, val := range r {
			if canonicalColumn(col) == cw {
				return val
			}
		}
	}
	return ""
}

func canonicalColumn(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, s)
}

// Project returns a copy of the dataset reduced to the requested columns.
// Rows are never dropped; a requested column absent from a row comes back
// as the empty string. An empty column list returns a full copy.
func (d TabData) Project(columns []string) TabData {
	if len(columns) == 0 {
		return d.Clone()
	}
	out := make(TabData, len(d))
	for i, row := range d {
		pr := make(Row, len(columns))
		for _, col := range columns {
			pr[col] = row.Lookup(col)
		}
		out[i] = pr
	}
	return out
}

// Clone deep-copies the dataset so callers can mutate the result freely.
func (d TabData) Clone() TabData {
	if d == nil {
		return nil
	}
	out := make(TabData, len(d))
	for i, row := range d {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}
