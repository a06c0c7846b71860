// Package schema validates event properties against declared shapes.
//
// Dispatch is by event_type: a type with a shape file gets strict field
// validation, any other type passes its properties through as an opaque
// map. New event types therefore need no migration or registration to
// start flowing; declaring a shape later tightens them up.
package schema

import (
	"errors"
	"fmt"
)

// ErrShapeNotFound marks an event type with no declared shape. The
// validator treats it as "open schema", not as a failure.
var ErrShapeNotFound = errors.New("shape not found")

// FieldType is the set of value kinds a shape can require. "any" accepts
// every JSON value and exists so a field can be required without being
// constrained.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
	TypeAny    FieldType = "any"
)

var validFieldTypes = map[FieldType]bool{
	TypeString: true,
	TypeNumber: true,
	TypeBool:   true,
	TypeObject: true,
	TypeArray:  true,
	TypeAny:    true,
}

// FieldSpec constrains a single property.
type FieldSpec struct {
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required"`
}

// Shape is the declared structure for one event type's properties.
// Fields not listed in the shape are allowed and ignored; shapes constrain
// what they name, they do not close the map.
type Shape struct {
	EventType string               `yaml:"event_type"`
	Fields    map[string]FieldSpec `yaml:"fields"`
}

// Validate checks the shape definition itself, not event data.
func (s *Shape) Validate() error {
	if s.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	for name, spec := range s.Fields {
		if name == "" {
			return fmt.Errorf("field name must not be empty")
		}
		if spec.Type == "" {
			return fmt.Errorf("field %q: type is required", name)
		}
		if !validFieldTypes[spec.Type] {
			return fmt.Errorf("field %q: unknown type %q", name, spec.Type)
		}
	}
	return nil
}
