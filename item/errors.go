package item

import (
	"errors"
	"fmt"
)

// Sentinel errors for matching with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

// Client-facing messages.
const (
	MsgNameRequired      = "Name is required"
	MsgNameString        = "Name must be a string"
	MsgDescriptionString = "Description must be a string"
	MsgNotFound          = "Not found"
)

// ValidationError reports a missing or malformed field in a request body.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports that no item is stored under ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("item %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
