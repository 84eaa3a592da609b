package tasks

import (
	"fmt"

	"github.com/arcspire/mediasync/internal/shared"
)

// FieldType enumerates the value types a task input field can declare.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInt     FieldType = "int"
	FieldBool    FieldType = "bool"
	FieldStrings FieldType = "[]string"
)

// Field declares one input field of a task schema.
type Field struct {
	Name     string
	Type     FieldType
	Usage    string
	Required bool
	Default  any
	// Enum restricts string and []string fields to the listed values.
	Enum []string
}

// Schema is a declarative validator for task input. Validation happens once,
// before a handler runs; handlers only ever see typed, defaulted [Input].
type Schema struct {
	Fields []Field
}

// Input is validated, typed task input keyed by field name.
type Input map[string]any

// String returns a string field's value, or "" when absent.
func (in Input) String(name string) string {
	v, _ := in[name].(string)
	return v
}

// Int returns an int field's value, or 0 when absent.
func (in Input) Int(name string) int {
	v, _ := in[name].(int)
	return v
}

// Bool returns a bool field's value, or false when absent.
func (in Input) Bool(name string) bool {
	v, _ := in[name].(bool)
	return v
}

// Strings returns a []string field's value, or nil when absent.
func (in Input) Strings(name string) []string {
	v, _ := in[name].([]string)
	return v
}

// Validate checks raw input against the schema and produces typed, defaulted
// input or a [shared.ValidationError]. Unknown fields are rejected.
func (s Schema) Validate(raw map[string]any) (Input, error) {
	known := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = true
	}
	for name := range raw {
		if !known[name] {
			return nil, &shared.ValidationError{Field: name, Reason: "unknown field"}
		}
	}

	out := make(Input, len(s.Fields))
	for _, f := range s.Fields {
		value, present := raw[f.Name]
		if !present || value == nil {
			if f.Required {
				return nil, &shared.ValidationError{Field: f.Name, Reason: "required"}
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}

		coerced, err := coerce(f, value)
		if err != nil {
			return nil, err
		}
		out[f.Name] = coerced
	}

	return out, nil
}

func coerce(f Field, value any) (any, error) {
	switch f.Type {
	case FieldString:
		str, ok := value.(string)
		if !ok {
			return nil, &shared.ValidationError{Field: f.Name, Reason: fmt.Sprintf("expected string, got %T", value)}
		}
		if err := checkEnum(f, str); err != nil {
			return nil, err
		}
		return str, nil

	case FieldInt:
		switch n := value.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			// JSON numbers decode as float64.
			if n != float64(int(n)) {
				return nil, &shared.ValidationError{Field: f.Name, Reason: "expected integer"}
			}
			return int(n), nil
		default:
			return nil, &shared.ValidationError{Field: f.Name, Reason: fmt.Sprintf("expected int, got %T", value)}
		}

	case FieldBool:
		b, ok := value.(bool)
		if !ok {
			return nil, &shared.ValidationError{Field: f.Name, Reason: fmt.Sprintf("expected bool, got %T", value)}
		}
		return b, nil

	case FieldStrings:
		var items []string
		switch list := value.(type) {
		case []string:
			items = list
		case []any:
			for _, item := range list {
				str, ok := item.(string)
				if !ok {
					return nil, &shared.ValidationError{Field: f.Name, Reason: fmt.Sprintf("expected string element, got %T", item)}
				}
				items = append(items, str)
			}
		default:
			return nil, &shared.ValidationError{Field: f.Name, Reason: fmt.Sprintf("expected string list, got %T", value)}
		}
		for _, item := range items {
			if err := checkEnum(f, item); err != nil {
				return nil, err
			}
		}
		return items, nil

	default:
		return nil, &shared.ValidationError{Field: f.Name, Reason: fmt.Sprintf("unknown field type %q", f.Type)}
	}
}

func checkEnum(f Field, value string) error {
	if len(f.Enum) == 0 {
		return nil
	}
	for _, allowed := range f.Enum {
		if value == allowed {
			return nil
		}
	}
	return &shared.ValidationError{Field: f.Name, Reason: fmt.Sprintf("%q is not one of %v", value, f.Enum)}
}
