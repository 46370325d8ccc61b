// Package direct maps widget button actions onto executor functions. The
// widget's structured forms name fields for humans (name, email, service);
// the routing table renames them to the parameter names the functions take.
// The table is fixed at compile time and unknown actions are rejected
// before any work happens.
package direct

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownAction marks a direct-call action outside the routing table.
var ErrUnknownAction = errors.New("unknown action")

type route struct {
	function string
	renames  map[string]string // widget field -> function parameter
}

var routes = map[string]route{
	"confirm_booking": {
		function: "create_booking",
		renames: map[string]string{
			"name":    "customer_name",
			"email":   "customer_email",
			"phone":   "customer_phone",
			"service": "service_name",
		},
	},
	"book_service": {
		function: "check_availability",
		renames:  map[string]string{"service": "service_name"},
	},
	"submit_lead": {
		function: "submit_lead",
	},
	"list_products": {
		function: "get_products",
	},
}

// Actions returns the supported action names, sorted.
func Actions() []string {
	names := make([]string, 0, len(routes))
	for name := range routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CanHandle reports whether the action is in the routing table.
func CanHandle(action string) bool {
	_, ok := routes[action]
	return ok
}

// Route translates an action and its fields into the function name and
// parameter map the executor expects. Fields without a rename pass through
// unchanged; a renamed field wins over a passthrough with the same target
// name.
func Route(action string, fields map[string]any) (string, map[string]any, error) {
	r, ok := routes[action]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	params := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, renamed := r.renames[k]; renamed {
			continue
		}
		params[k] = v
	}
	for k, v := range fields {
		if target, renamed := r.renames[k]; renamed {
			params[target] = v
		}
	}
	return r.function, params, nil
}
