// Package errors provides common domain error types for reelkit.
//
// This package defines sentinel errors for the editor's expected failure
// conditions. Using typed errors enables consistent handling with errors.Is().
//
// Usage:
//
//	import rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
//
//	// Return a domain error
//	return fmt.Errorf("chunk %d: %w", idx, rkerrors.ErrNotFound)
//
//	// Check for domain errors
//	if rkerrors.IsNotFound(err) {
//	    // handle not found case
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate layer name).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrMalformedTranscript indicates the transcript source violates ordering or timing rules.
	ErrMalformedTranscript = errors.New("malformed transcript")

	// ErrMissingAnchor indicates a rendering anchor has not been registered yet.
	// Callers treat it as "not yet rendered" and retry on the next tick.
	ErrMissingAnchor = errors.New("missing anchor")

	// ErrUnresolvedFont indicates a requested font variant is absent.
	// Font resolution falls back to the regular variant instead of failing.
	ErrUnresolvedFont = errors.New("unresolved font")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether any error in err's chain is ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsMalformedTranscript reports whether any error in err's chain is ErrMalformedTranscript.
func IsMalformedTranscript(err error) bool {
	return errors.Is(err, ErrMalformedTranscript)
}

// IsMissingAnchor reports whether any error in err's chain is ErrMissingAnchor.
func IsMissingAnchor(err error) bool {
	return errors.Is(err, ErrMissingAnchor)
}

// IsUnresolvedFont reports whether any error in err's chain is ErrUnresolvedFont.
func IsUnresolvedFont(err error) bool {
	return errors.Is(err, ErrUnresolvedFont)
}
