package core

import (
	"errors"
	"fmt"
)

// Error classes. Pipelines wrap every error they return in exactly one of these
// so that callers can map failures without inspecting messages.
var (
	// ErrValidation indicates a client fault. Nothing was started.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExternal indicates an embedding, vector store, language model or
	// storage dependency failed.
	ErrExternal = errors.New("external service failure")
)

// Domain validation errors
var (
	// ErrEmptyContent indicates a required text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an unknown conversation role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidBookingStatus indicates an unknown booking status.
	ErrInvalidBookingStatus = errors.New("invalid booking status")

	// ErrInvalidStatusTransition indicates a booking status change that the lifecycle forbids.
	ErrInvalidStatusTransition = errors.New("invalid booking status transition")

	// ErrIncompleteBooking indicates a booking without name, email, date or time.
	ErrIncompleteBooking = errors.New("booking requires name, email, date and time")
)

// Invalid wraps err as a validation error.
func Invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Invalidf formats a validation error.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// External wraps err as a failure of the dependency named by op.
// Errors that already carry a class are returned unchanged.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrExternal) || errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrExternal, op, err)
}
