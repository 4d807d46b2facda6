package compose

import "testing"

func TestFromJSONScalars(t *testing.T) {
	if got := FromJSON("hello").Display(); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := FromJSON(true).Display(); got != "true" {
		t.Fatalf("got %q", got)
	}
	if got := FromJSON(float64(3)).Display(); got != "3" {
		t.Fatalf("whole floats render without fraction, got %q", got)
	}
	if got := FromJSON(float64(0.5)).Display(); got != "0.5" {
		t.Fatalf("got %q", got)
	}
}

func TestFromJSONOptionObject(t *testing.T) {
	v := FromJSON(map[string]any{"id": "en", "label": "English"})
	if v.Kind() != KindOption {
		t.Fatalf("expected option, got kind %v", v.Kind())
	}
	if v.Display() != "English" {
		t.Fatalf("option display prefers label, got %q", v.Display())
	}

	idOnly := FromJSON(map[string]any{"id": "en"})
	if idOnly.Display() != "en" {
		t.Fatalf("got %q", idOnly.Display())
	}

	empty := FromJSON(map[string]any{"other": 1})
	if !empty.IsEmpty() {
		t.Fatalf("object without id/label should be empty")
	}
}

func TestFromJSONArray(t *testing.T) {
	v := FromJSON([]any{"a", map[string]any{"id": "b", "label": "B"}})
	if v.Kind() != KindList {
		t.Fatalf("expected list, got kind %v", v.Kind())
	}
	if got := v.Display(); got != "a, B" {
		t.Fatalf("got %q", got)
	}
}

func TestIsEmpty(t *testing.T) {
	if !FromJSON(nil).IsEmpty() {
		t.Fatalf("nil should be empty")
	}
	if !String("   ").IsEmpty() {
		t.Fatalf("whitespace scalar should be empty")
	}
	if !List().IsEmpty() {
		t.Fatalf("empty list should be empty")
	}
	if String("x").IsEmpty() {
		t.Fatalf("non-empty scalar reported empty")
	}
}

func TestResolveValues(t *testing.T) {
	values := ResolveValues(map[string]any{
		"prompt": "write docs",
		"count":  float64(2),
	})
	if values["prompt"].Display() != "write docs" {
		t.Fatalf("got %q", values["prompt"].Display())
	}
	if values["count"].Display() != "2" {
		t.Fatalf("got %q", values["count"].Display())
	}
}
