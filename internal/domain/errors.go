package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks lookups that cannot succeed with the same input.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument marks inputs outside the accepted domain.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidReference marks a reference dataset that violates the table invariants.
	ErrInvalidReference = errors.New("invalid reference data")
)

// NotFoundKind tells which lookup failed.
type NotFoundKind string

const (
	NotFoundMunicipality  NotFoundKind = "municipality"
	NotFoundActivity      NotFoundKind = "activity"
	NotFoundActivityClass NotFoundKind = "activity_class"
)

// NotFoundError is returned by the classifiers.
type NotFoundError struct {
	Kind  NotFoundKind
	Name  string
	Class MunicipalityClass
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case NotFoundMunicipality:
		return fmt.Sprintf("municipality %q not found", e.Name)
	case NotFoundActivity:
		return fmt.Sprintf("business activity %q not found", e.Name)
	case NotFoundActivityClass:
		return fmt.Sprintf("business activity %q has no contribution group for municipality class %q", e.Name, e.Class)
	default:
		return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
	}
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvalidArgumentError is returned when a value is outside its domain.
type InvalidArgumentError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}
