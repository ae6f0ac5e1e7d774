// Package errors provides structured error handling for weavelens.
//
// Errors are classified by Kind so callers can distinguish transient
// external failures (store unreachable, embedder timeout) from local
// per-item failures that degrade to a skip. Content conditions such as
// empty text or a duplicate hash are not errors at all; they are
// reflected in run statistics only.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the subsystem and failure mode.
type Kind string

const (
	// KindStore indicates the vector/keyword store is unreachable or failing.
	KindStore Kind = "STORE"
	// KindEmbedder indicates the embedding service failed or timed out.
	KindEmbedder Kind = "EMBEDDER"
	// KindOCR indicates the OCR engine failed or is unavailable.
	KindOCR Kind = "OCR"
	// KindIO indicates a local file or disk failure.
	KindIO Kind = "IO"
	// KindValidation indicates invalid caller input.
	KindValidation Kind = "VALIDATION"
	// KindInternal indicates an unexpected internal failure.
	KindInternal Kind = "INTERNAL"
)

// Error is the structured error type for weavelens.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates the operation may succeed if retried.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by Kind, enabling errors.Is against sentinel kinds.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Retryable: retryable(kind)}
}

// Wrap creates an Error wrapping a cause. Returns nil if err is nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err, Retryable: retryable(kind)}
}

// StoreError wraps a store failure. Store errors are retryable.
func StoreError(message string, cause error) *Error {
	return &Error{Kind: KindStore, Message: message, Cause: cause, Retryable: true}
}

// EmbedderError wraps an embedding service failure. Retryable.
func EmbedderError(message string, cause error) *Error {
	return &Error{Kind: KindEmbedder, Message: message, Cause: cause, Retryable: true}
}

// OCRError wraps an OCR engine failure.
func OCRError(message string, cause error) *Error {
	return &Error{Kind: KindOCR, Message: message, Cause: cause}
}

// ValidationError reports invalid caller input.
func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// KindOf extracts the Kind from an error chain.
// Returns KindInternal for errors that are not *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsTransient reports whether the error is a transient external failure
// that the caller may retry (store, embedder, OCR infrastructure).
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

func retryable(kind Kind) bool {
	switch kind {
	case KindStore, KindEmbedder:
		return true
	default:
		return false
	}
}
