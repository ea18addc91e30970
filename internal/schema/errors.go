package schema

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrMapping marks every entity <-> property-map translation failure.
	ErrMapping = errors.New("entity mapping failed")

	// ErrUnregistered is returned when an entity type was never registered.
	ErrUnregistered = errors.New("entity type not registered")
)

// MappingError reports a failed translation for one type (and optionally one
// field). errors.Is(err, ErrMapping) holds for every MappingError.
type MappingError struct {
	Type  reflect.Type
	Field string
	Err   error
}

func (e *MappingError) Error() string {
	name := "<nil>"
	if e.Type != nil {
		name = e.Type.String()
	}
	if e.Field != "" {
		return fmt.Sprintf("schema: %s.%s: %v", name, e.Field, e.Err)
	}
	return fmt.Sprintf("schema: %s: %v", name, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

func (e *MappingError) Is(target error) bool { return target == ErrMapping }

func mappingErr(t reflect.Type, field string, format string, args ...any) error {
	return &MappingError{Type: t, Field: field, Err: fmt.Errorf(format, args...)}
}
