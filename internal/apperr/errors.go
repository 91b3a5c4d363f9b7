package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound signals a missing thread, document, or message.
var ErrNotFound = errors.New("not found")

// AuthError means no usable credential was available for a model or
// embedding call. It is never retried automatically.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication required: %s", e.Reason)
}

func NewAuthError(reason string) *AuthError {
	return &AuthError{Reason: reason}
}

// IsAuth reports whether err is an authentication error.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ValidationError rejects malformed input before anything is persisted.
// Fields lists the offending field names.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, ", "))
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ProviderError wraps a non-success response from the embedding or
// completion API. Partial work behind it must never look successful.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

// IsProvider reports whether err is a provider error.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
