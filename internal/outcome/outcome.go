// Package outcome provides the structured result type returned by every
// engine operation. Expected business conditions (validation failures,
// dependency failures, cancellation, conflicts) travel as values, never as
// panics and never conflated with each other.
package outcome

import (
	"context"
	"errors"
)

// Status distinguishes success, domain failure, and cancellation.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
)

// FailureKind refines a failure into the engine's error taxonomy.
type FailureKind string

const (
	// FailValidation: bad input rejected before any work began.
	FailValidation FailureKind = "validation"
	// FailDependency: an external call (extraction, storage, classifier)
	// failed. Recorded and folded into partial results.
	FailDependency FailureKind = "dependency"
	// FailNotFound: the requested entity does not exist.
	FailNotFound FailureKind = "not_found"
	// FailConflict: a duplicate-creation race. Callers resolve it by
	// re-reading; it should rarely surface past the store layer.
	FailConflict FailureKind = "conflict"
)

// Outcome is the sum type {Success(value), Failure(reason), Cancelled}.
type Outcome[T any] struct {
	Status Status      `json:"status"`
	Value  T           `json:"value,omitempty"`
	Kind   FailureKind `json:"kind,omitempty"`
	// Reason is human-readable; callers always get a plain explanation,
	// never a raw error chain.
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// OK wraps a successful value.
func OK[T any](v T) Outcome[T] {
	return Outcome[T]{Status: StatusSuccess, Value: v}
}

// Fail wraps a domain failure with its taxonomy kind and a readable reason.
func Fail[T any](kind FailureKind, reason string, err error) Outcome[T] {
	return Outcome[T]{Status: StatusFailure, Kind: kind, Reason: reason, Err: err}
}

// Validation is a convenience for input rejected before any work.
func Validation[T any](reason string) Outcome[T] {
	return Outcome[T]{Status: StatusFailure, Kind: FailValidation, Reason: reason}
}

// Cancelled marks a caller-cancelled operation. Partial progress, if any,
// rides along in Value.
func Cancelled[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Status: StatusCancelled, Value: v, Reason: reason}
}

// FromErr classifies err: context cancellation becomes StatusCancelled,
// anything else a dependency failure.
func FromErr[T any](err error, reason string) Outcome[T] {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var zero T
		return Cancelled(zero, reason)
	}
	return Fail[T](FailDependency, reason, err)
}

// Success reports whether the outcome carries a usable value.
func (o Outcome[T]) Success() bool { return o.Status == StatusSuccess }

// IsCancelled reports whether the operation was cancelled by the caller.
func (o Outcome[T]) IsCancelled() bool { return o.Status == StatusCancelled }

// IsValidation reports whether the failure was an input-validation reject.
func (o Outcome[T]) IsValidation() bool {
	return o.Status == StatusFailure && o.Kind == FailValidation
}
