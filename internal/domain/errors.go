package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// NameExistsError reports a unique-name collision.
type NameExistsError struct {
	Name string
}

func (e NameExistsError) Error() string {
	if e.Name == "" {
		return "name already exists"
	}
	return fmt.Sprintf("name %q already exists", e.Name)
}

// Is enables errors.Is matching on NameExistsError.
func (e NameExistsError) Is(target error) bool {
	_, ok := target.(NameExistsError)
	if ok {
		return true
	}
	_, ok = target.(*NameExistsError)
	return ok
}

// ErrNameExists is the sentinel error for unique-name collisions.
var ErrNameExists = NameExistsError{}

// ErrNotOwner is returned when a user attempts an owner-only operation on a
// document somebody else owns.
var ErrNotOwner = errors.New("not the document owner")

// ValidationError reports schema violations found while validating a value.
type ValidationError struct {
	Violations []string
}

func (e ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "value does not match schema"
	}
	return fmt.Sprintf("value does not match schema: %s", e.Violations[0])
}

// Is enables errors.Is matching on ValidationError.
func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

// ErrValidation is the sentinel error for schema violations.
var ErrValidation = ValidationError{}
