package service

import (
	"errors"
	"fmt"

	"nim-chat/internal/sampling"
)

var (
	// ErrInvalidInput is returned when input validation fails. Every
	// ValidationError matches it.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a request names no live chat session.
	ErrNotFound = errors.New("not found")
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")
	// ErrMissingCredential is returned when no API key is configured.
	ErrMissingCredential = sampling.ErrMissingCredential
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// externalError marks err as a failure of the inference endpoint while keeping
// the original cause reachable through errors.As.
func externalError(err error, msg string) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrExternalService, err)
}
