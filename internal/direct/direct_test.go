package direct

import (
	"errors"
	"reflect"
	"testing"
)

func TestRoute_ConfirmBookingRenamesCustomerFields(t *testing.T) {
	function, params, err := Route("confirm_booking", map[string]any{
		"service": "Haircut",
		"date":    "2025-06-03",
		"time":    "10:00",
		"name":    "Dana Reyes",
		"email":   "dana@example.com",
		"phone":   "555-0101",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	if function != "create_booking" {
		t.Errorf("function = %q, want create_booking", function)
	}
	want := map[string]any{
		"service_name":   "Haircut",
		"date":           "2025-06-03",
		"time":           "10:00",
		"customer_name":  "Dana Reyes",
		"customer_email": "dana@example.com",
		"customer_phone": "555-0101",
	}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}

func TestRoute_BookServiceChecksAvailability(t *testing.T) {
	function, params, err := Route("book_service", map[string]any{
		"service": "Haircut",
		"date":    "2025-06-03",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	if function != "check_availability" {
		t.Errorf("function = %q, want check_availability", function)
	}
	if params["service_name"] != "Haircut" {
		t.Errorf("service_name = %v, want Haircut", params["service_name"])
	}
	if _, leaked := params["service"]; leaked {
		t.Error("widget field name leaked through the rename")
	}
}

func TestRoute_SubmitLeadPassesThrough(t *testing.T) {
	fields := map[string]any{
		"name":    "Dana Reyes",
		"email":   "dana@example.com",
		"message": "Gift cards?",
	}

	function, params, err := Route("submit_lead", fields)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	if function != "submit_lead" {
		t.Errorf("function = %q, want submit_lead", function)
	}
	if !reflect.DeepEqual(params, fields) {
		t.Errorf("params = %v, want unchanged %v", params, fields)
	}
}

func TestRoute_UnknownAction(t *testing.T) {
	_, _, err := Route("wipe_bookings", nil)

	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
}

func TestRoute_DoesNotMutateInput(t *testing.T) {
	fields := map[string]any{"service": "Haircut"}

	_, _, err := Route("book_service", fields)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	if _, ok := fields["service_name"]; ok {
		t.Error("Route wrote into the caller's map")
	}
	if fields["service"] != "Haircut" {
		t.Error("Route removed the caller's field")
	}
}

func TestCanHandle(t *testing.T) {
	for _, action := range Actions() {
		if !CanHandle(action) {
			t.Errorf("CanHandle(%q) = false for a listed action", action)
		}
	}
	if CanHandle("get_store_info") {
		t.Error("CanHandle accepted an executor function that is not a widget action")
	}
}

func TestActions_Sorted(t *testing.T) {
	want := []string{"book_service", "confirm_booking", "list_products", "submit_lead"}
	if got := Actions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Actions() = %v, want %v", got, want)
	}
}
