package compose

import (
	"fmt"
	"strconv"
	"strings"
)

type ValueKind int

const (
	KindEmpty ValueKind = iota
	KindScalar
	KindOption
	KindList
)

// Option is a structured option record as selected in the form.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Value is the closed set of shapes a form field can produce. Loose JSON is
// resolved into a Value exactly once at the form boundary so the composer
// never touches interface{} again.
type Value struct {
	kind   ValueKind
	scalar string
	option Option
	items  []Value
}

func String(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{}
	}
	return Value{kind: KindScalar, scalar: s}
}

func OptionValue(id, label string) Value {
	if strings.TrimSpace(id) == "" && strings.TrimSpace(label) == "" {
		return Value{}
	}
	return Value{kind: KindOption, option: Option{ID: id, Label: label}}
}

func List(items ...Value) Value {
	kept := make([]Value, 0, len(items))
	for _, it := range items {
		if !it.IsEmpty() {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return Value{}
	}
	return Value{kind: KindList, items: kept}
}

// FromJSON resolves a decoded JSON value into the closed variant set.
// Objects with id/label become options; other objects keep whichever of
// label/id they carry; arrays resolve element-wise.
func FromJSON(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{}
	case string:
		return String(v)
	case bool:
		return String(strconv.FormatBool(v))
	case float64:
		return String(formatFloat(v))
	case map[string]any:
		id, _ := v["id"].(string)
		label, _ := v["label"].(string)
		if id == "" && label == "" {
			return Value{}
		}
		return OptionValue(id, label)
	case []any:
		items := make([]Value, 0, len(v))
		for _, el := range v {
			items = append(items, FromJSON(el))
		}
		return List(items...)
	default:
		return String(strings.TrimSpace(fmt.Sprint(v)))
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindScalar:
		return strings.TrimSpace(v.scalar) == ""
	case KindOption:
		return v.option.ID == "" && v.option.Label == ""
	case KindList:
		return len(v.items) == 0
	default:
		return true
	}
}

func (v Value) Scalar() string { return v.scalar }

func (v Value) Option() Option { return v.option }

func (v Value) Items() []Value { return v.items }

// Display is the single-line rendering: an option prefers its label, a list
// joins element renderings with ", ".
func (v Value) Display() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindOption:
		if v.option.Label != "" {
			return v.option.Label
		}
		return v.option.ID
	case KindList:
		parts := make([]string, 0, len(v.items))
		for _, it := range v.items {
			parts = append(parts, it.Display())
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// Values maps field name to its resolved value for one compose call.
type Values map[string]Value

// ResolveValues converts a raw JSON object (as bound from the request body)
// into Values in one pass.
func ResolveValues(raw map[string]any) Values {
	out := make(Values, len(raw))
	for k, v := range raw {
		out[k] = FromJSON(v)
	}
	return out
}
