package gantry

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strconv"
)

// Schema is the subset of JSON Schema the contract collaborator hands the
// validation stages. Validation accumulates every failure in one pass —
// callers always see the full list, never only the first.
type Schema struct {
	Type       string             `json:"type,omitempty" yaml:"type,omitempty"`
	Format     string             `json:"format,omitempty" yaml:"format,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required   []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Enum       []string           `json:"enum,omitempty" yaml:"enum,omitempty"`

	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Minimum   *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
}

// Object is shorthand for an object schema with the given properties.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

// String is shorthand for a string schema with an optional format.
func String(format ...string) *Schema {
	s := &Schema{Type: "string"}
	if len(format) > 0 {
		s.Format = format[0]
	}
	return s
}

// ValidateJSON checks raw JSON bytes against the schema, returning every
// field failure found. The source tag ("body") is recorded on each failure.
func (s *Schema) ValidateJSON(raw []byte, source string) []FieldError {
	if s == nil {
		return nil
	}
	if len(raw) == 0 {
		if s.Type == "object" && len(s.Required) > 0 {
			return []FieldError{{Source: source, Field: "", Reason: "missing body"}}
		}
		return nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return []FieldError{{Source: source, Field: "", Reason: "malformed JSON"}}
	}

	var errs []FieldError
	s.check(value, source, "", &errs)
	return errs
}

// ValidateString checks a single textual input (a path parameter, query
// value, or header) against the schema.
func (s *Schema) ValidateString(value, source, field string) []FieldError {
	if s == nil {
		return nil
	}
	var errs []FieldError
	switch s.Type {
	case "", "string":
		s.check(value, source, field, &errs)
	case "integer", "number":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			errs = append(errs, FieldError{Source: source, Field: field, Reason: "expected " + s.Type})
			return errs
		}
		s.check(n, source, field, &errs)
	case "boolean":
		b, err := strconv.ParseBool(value)
		if err != nil {
			errs = append(errs, FieldError{Source: source, Field: field, Reason: "expected boolean"})
			return errs
		}
		s.check(b, source, field, &errs)
	default:
		errs = append(errs, FieldError{Source: source, Field: field, Reason: "unsupported parameter type " + s.Type})
	}
	return errs
}

// check validates a decoded JSON value, appending failures to errs. Field
// paths are dotted ("address.city"); the empty path means the root value.
func (s *Schema) check(value any, source, field string, errs *[]FieldError) {
	fail := func(reason string) {
		*errs = append(*errs, FieldError{Source: source, Field: field, Reason: reason})
	}

	switch s.Type {
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			fail("expected object")
			return
		}
		for _, name := range s.Required {
			if _, present := obj[name]; !present {
				*errs = append(*errs, FieldError{Source: source, Field: joinField(field, name), Reason: "missing"})
			}
		}
		for name, prop := range s.Properties {
			v, present := obj[name]
			if !present {
				continue
			}
			prop.check(v, source, joinField(field, name), errs)
		}

	case "string":
		str, ok := value.(string)
		if !ok {
			fail("expected string")
			return
		}
		s.checkString(str, fail)

	case "integer":
		n, ok := value.(float64)
		if !ok {
			fail("expected integer")
			return
		}
		if n != math.Trunc(n) {
			fail("expected integer")
			return
		}
		s.checkNumber(n, fail)

	case "number":
		n, ok := value.(float64)
		if !ok {
			fail("expected number")
			return
		}
		s.checkNumber(n, fail)

	case "boolean":
		if _, ok := value.(bool); !ok {
			fail("expected boolean")
		}

	case "array":
		items, ok := value.([]any)
		if !ok {
			fail("expected array")
			return
		}
		if s.Items != nil {
			for i, item := range items {
				s.Items.check(item, source, fmt.Sprintf("%s[%d]", field, i), errs)
			}
		}
	}
}

func (s *Schema) checkString(str string, fail func(string)) {
	if s.MinLength != nil && len(str) < *s.MinLength {
		fail(fmt.Sprintf("must be at least %d characters", *s.MinLength))
	}
	if s.MaxLength != nil && len(str) > *s.MaxLength {
		fail(fmt.Sprintf("must be at most %d characters", *s.MaxLength))
	}
	if s.Pattern != "" {
		if matched, err := regexp.MatchString(s.Pattern, str); err == nil && !matched {
			fail("must match pattern " + s.Pattern)
		}
	}
	if len(s.Enum) > 0 {
		found := false
		for _, e := range s.Enum {
			if e == str {
				found = true
				break
			}
		}
		if !found {
			fail("not an allowed value")
		}
	}
	if s.Format == "email" {
		if _, err := mail.ParseAddress(str); err != nil {
			fail("malformed email")
		}
	}
}

func (s *Schema) checkNumber(n float64, fail func(string)) {
	if s.Minimum != nil && n < *s.Minimum {
		fail(fmt.Sprintf("must be at least %g", *s.Minimum))
	}
	if s.Maximum != nil && n > *s.Maximum {
		fail(fmt.Sprintf("must be at most %g", *s.Maximum))
	}
}

func joinField(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
