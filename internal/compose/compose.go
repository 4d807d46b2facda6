// Package compose turns structured form state into the single text prompt
// handed to the generation pipeline. Composition is pure: no I/O, no clock,
// identical inputs always yield byte-identical output.
package compose

import (
	"sort"
	"strings"
)

type FieldKind string

const (
	FieldText        FieldKind = "text"
	FieldTextarea    FieldKind = "textarea"
	FieldSelect      FieldKind = "select"
	FieldMultiSelect FieldKind = "multiselect"
	FieldNumber      FieldKind = "number"
	FieldToggle      FieldKind = "toggle"
)

type FieldSection string

const (
	SectionPrompt FieldSection = "prompt"
	SectionBody   FieldSection = "body"
	SectionExtra  FieldSection = "extra"
)

// PrimaryPromptField is always rendered into the prompt text even when its
// section routes it into the request body.
const PrimaryPromptField = "prompt"

const defaultOrder = 999

type FieldSpec struct {
	Name    string
	Label   string
	Kind    FieldKind
	Section FieldSection
	Order   int // 0 means unset; unset sorts last
	Options []Option
}

func (f FieldSpec) effectiveOrder() int {
	if f.Order <= 0 {
		return defaultOrder
	}
	return f.Order
}

// Compose renders the prompt: ordered "Label: value" segments joined by blank
// lines, then the optional output-language instruction block.
func Compose(fields []FieldSpec, values Values, selectedLanguage string) string {
	ordered := make([]FieldSpec, len(fields))
	copy(ordered, fields)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].effectiveOrder() < ordered[j].effectiveOrder()
	})

	segments := make([]string, 0, len(ordered))
	for _, field := range ordered {
		value, ok := values[field.Name]
		if !ok || value.IsEmpty() {
			continue
		}
		if (field.Section == SectionBody || field.Section == SectionExtra) && field.Name != PrimaryPromptField {
			continue
		}
		segments = append(segments, formatField(field, value))
	}

	prompt := strings.Join(segments, "\n\n")
	if block := languageBlock(selectedLanguage); block != "" {
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += block
	}
	return prompt
}

func formatField(field FieldSpec, value Value) string {
	label := strings.TrimSpace(field.Label)
	if label == "" {
		label = field.Name
	}

	if field.Kind == FieldMultiSelect || (value.Kind() == KindList && field.Kind == "") {
		return encodeBlock(label, value)
	}

	var rendered string
	switch {
	case field.Kind == FieldSelect:
		rendered = resolveOptionLabel(field.Options, value)
	default:
		rendered = value.Display()
	}

	if field.Name == PrimaryPromptField {
		rendered = stripPromptPrefix(rendered)
	}
	return label + ": " + rendered
}

// encodeBlock renders array-valued fields as a self-describing line-oriented
// block instead of a label-prefixed line.
func encodeBlock(label string, value Value) string {
	items := value.Items()
	if value.Kind() != KindList {
		items = []Value{value}
	}
	var b strings.Builder
	b.WriteString(label)
	b.WriteString(":")
	for _, item := range items {
		b.WriteString("\n- ")
		if item.Kind() == KindOption {
			opt := item.Option()
			switch {
			case opt.Label != "" && opt.ID != "":
				b.WriteString(opt.Label)
				b.WriteString(" [")
				b.WriteString(opt.ID)
				b.WriteString("]")
			case opt.Label != "":
				b.WriteString(opt.Label)
			default:
				b.WriteString(opt.ID)
			}
			continue
		}
		b.WriteString(item.Display())
	}
	return b.String()
}

// resolveOptionLabel maps a raw selected value onto the declared option set's
// display label, falling back to whatever the value itself renders as.
func resolveOptionLabel(options []Option, value Value) string {
	raw := value.Display()
	if value.Kind() == KindOption {
		opt := value.Option()
		if opt.Label != "" {
			return opt.Label
		}
		raw = opt.ID
	}
	for _, opt := range options {
		if opt.ID == raw {
			if opt.Label != "" {
				return opt.Label
			}
			return opt.ID
		}
	}
	return raw
}

// stripPromptPrefix drops a redundant leading "User Prompt:" from the primary
// text field so re-composition never doubles it up.
func stripPromptPrefix(s string) string {
	trimmed := strings.TrimSpace(s)
	const prefix = "user prompt:"
	if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
		return strings.TrimSpace(trimmed[len(prefix):])
	}
	return trimmed
}
