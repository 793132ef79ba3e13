// Package apperr defines the error taxonomy shared by every stage of the
// transcript pipeline. Component packages declare their own sentinels that wrap
// one of these, so callers can test either the specific or the general class
// with errors.Is.
package apperr

import "errors"

var (
	// ErrInvalidConfiguration marks caller errors detected before any I/O,
	// such as chunking parameters with overlap >= max tokens.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrCapability marks failures of an external capability (embedding,
	// completion, vector index, transcript provider). Recoverable.
	ErrCapability = errors.New("capability error")

	// ErrParse marks malformed structured output from a completion.
	ErrParse = errors.New("parse error")

	// ErrNotFound marks a lookup of an event, transcript or summary that does
	// not exist.
	ErrNotFound = errors.New("not found")
)
