// Package errors implements the pipeline error taxonomy with per-kind retry
// behavior, plus the circuit breaker and retry executor used by the
// orchestrator.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a pipeline failure. Each kind has defined behavior for
// retry policy and propagation.
type Kind int

const (
	// KindValidation indicates malformed input shape (task, image reference,
	// schema mismatch at our own boundary). Never retried.
	KindValidation Kind = iota

	// KindNetwork indicates a transient I/O failure during a fetch.
	KindNetwork

	// KindTimeout indicates a deadline was exceeded.
	KindTimeout

	// KindExtraction indicates the model capability failed or returned data
	// that does not conform to the declared schema.
	KindExtraction

	// KindRateLimit indicates throttling by an external service.
	KindRateLimit

	// KindCircuitOpen indicates a fail-fast rejection while a dependency is
	// known-unhealthy. Not retried inline; try again after the cooldown.
	KindCircuitOpen

	// KindUnsupportedFormat indicates a requested export format has no
	// template. Surfaced immediately.
	KindUnsupportedFormat
)

var kindNames = map[Kind]string{
	KindValidation:        "validation",
	KindNetwork:           "network",
	KindTimeout:           "timeout",
	KindExtraction:        "extraction",
	KindRateLimit:         "rate_limit",
	KindCircuitOpen:       "circuit_open",
	KindUnsupportedFormat: "unsupported_format",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// PipelineError wraps an error with its kind classification and, when known,
// the task it belongs to.
type PipelineError struct {
	Kind       Kind
	Message    string
	Underlying error
	TaskID     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PipelineError) Unwrap() error {
	return e.Underlying
}

// Is matches another PipelineError of the same kind.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return e.Kind == pe.Kind
	}
	return false
}

// New creates a PipelineError with the given kind and message.
func New(kind Kind, message string, underlying error) *PipelineError {
	return &PipelineError{
		Kind:       kind,
		Message:    message,
		Underlying: underlying,
	}
}

// WithTaskID attaches the owning task id to the error.
func (e *PipelineError) WithTaskID(id string) *PipelineError {
	e.TaskID = id
	return e
}

// WithRetryAfter attaches a server-suggested retry delay to the error.
func (e *PipelineError) WithRetryAfter(d time.Duration) *PipelineError {
	e.RetryAfter = d
	return e
}

// Wrap wraps err with a kind classification. An err that is already a
// PipelineError keeps its original kind.
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}

	var pe *PipelineError
	if errors.As(err, &pe) {
		return &PipelineError{
			Kind:       pe.Kind,
			Message:    message,
			Underlying: err,
			TaskID:     pe.TaskID,
			RetryAfter: pe.RetryAfter,
		}
	}

	return New(kind, message, err)
}

// GetKind extracts the kind from an error, defaulting to KindValidation for
// unclassified errors so they are never silently retried.
func GetKind(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindValidation
}

// IsRetryable reports whether errors of this kind may be retried.
func (k Kind) IsRetryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindExtraction, KindRateLimit:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether the error's kind may be retried.
func IsRetryable(err error) bool {
	return GetKind(err).IsRetryable()
}

// Common sentinel errors.
var (
	ErrTimeout           = New(KindTimeout, "operation timed out", nil)
	ErrRateLimited       = New(KindRateLimit, "rate limited", nil)
	ErrCircuitOpen       = New(KindCircuitOpen, "circuit open", nil)
	ErrInvalidInput      = New(KindValidation, "invalid input", nil)
	ErrUnsupportedFormat = New(KindUnsupportedFormat, "unsupported format", nil)
)
