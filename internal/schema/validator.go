package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ValidationError reports which properties failed and why. Problems maps
// field name to the complaint.
type ValidationError struct {
	EventType string
	Problems  map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("properties do not match shape for %q (%d problems)", e.EventType, len(e.Problems))
}

// Details exposes field-level problems for structured error responses.
func (e *ValidationError) Details() map[string]string {
	return e.Problems
}

// Validator applies shape validation when a shape exists and passes
// everything else through untouched.
type Validator struct {
	registry *Registry
}

// NewValidator creates a validator over a registry. A nil registry
// disables shape checking entirely (all types are open).
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks properties for the given event type. Unknown event
// types and a disabled registry both mean pass-through.
func (v *Validator) Validate(ctx context.Context, eventType string, properties map[string]interface{}) error {
	if v.registry == nil {
		return nil
	}

	shape, err := v.registry.Get(ctx, eventType)
	if errors.Is(err, ErrShapeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	problems := make(map[string]string)
	for name, spec := range shape.Fields {
		value, present := properties[name]
		if !present {
			if spec.Required {
				problems[name] = "required property is missing"
			}
			continue
		}
		if !typeMatches(spec.Type, value) {
			problems[name] = fmt.Sprintf("expected %s", spec.Type)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{EventType: eventType, Problems: problems}
	}
	return nil
}

// typeMatches checks a decoded JSON value against a field type. JSON
// numbers decode as float64; integers are not distinguished.
func typeMatches(ft FieldType, value interface{}) bool {
	if value == nil {
		// null never satisfies a typed constraint except "any".
		return ft == TypeAny
	}
	switch ft {
	case TypeAny:
		return true
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeObject:
		_, ok := value.(map[string]interface{})
		return ok
	case TypeArray:
		_, ok := value.([]interface{})
		return ok
	}
	return false
}
