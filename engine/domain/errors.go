package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval and orchestration failure taxonomy.
var (
	// ErrRetrievalUnavailable signals one retriever is down. Recoverable:
	// the pipeline degrades to the surviving retriever.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrNoResults signals both retrievers failed or returned nothing.
	// Recoverable at the orchestrator level by a "no information found" reply.
	ErrNoResults = errors.New("no results available")

	// ErrAgentUnavailable signals a single agent failed after retry.
	// The composed response notes the gap.
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrOrchestrationFailure signals no agent produced any output.
	// Surfaced to the caller as a turn-level error.
	ErrOrchestrationFailure = errors.New("orchestration failure")

	// ErrSessionNotFound should never occur under get-or-create semantics;
	// raising it indicates an implementation bug in a memory store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownRole is returned by the agent factory for unrecognised roles.
	ErrUnknownRole = errors.New("unknown agent role")
)

// Sentinel errors for query validation failures.
var (
	ErrInvalidQuery   = errors.New("invalid query")
	ErrQueryTooLong   = errors.New("query too long")
	ErrQueryInjection = errors.New("query contains suspicious content")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
