package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnknownProvider     = fmt.Errorf("%w: unknown provider", ErrInvalidInput)
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderSubmission  = errors.New("provider submission failed")
	ErrProviderGeneration  = errors.New("generation failed")
	ErrProviderFailure     = errors.New("provider failure")
	ErrNotFound            = errors.New("not found")
)

// InvalidInput wraps ErrInvalidInput with a human readable message.
func InvalidInput(msg string) error {
	if msg == "" {
		return ErrInvalidInput
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// UnknownProvider reports a provider key missing from the catalogue.
func UnknownProvider(key ProviderKey) error {
	return fmt.Errorf("%w %q", ErrUnknownProvider, string(key))
}

// ProviderError carries the backend status code and message. Kind is one of
// the sentinel errors above; Cause is the underlying transport error if any.
// errors.Is matches against both.
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
	Details    map[string]any
	Kind       error
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *ProviderError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// GenerationFailed builds the error surfaced for a failed or canceled job.
// The provider message is kept verbatim.
func GenerationFailed(id, message string) error {
	if message == "" {
		message = DefaultFailureMessage
	}
	return &ProviderError{Op: "prediction " + id, Message: message, Kind: ErrProviderGeneration}
}
