package core

import (
	"context"
	"errors"
	"fmt"
)

// EvaluationErrorKind classifies failures at the evaluator boundary
type EvaluationErrorKind string

const (
	EvalTimeout   EvaluationErrorKind = "timeout"
	EvalMalformed EvaluationErrorKind = "malformed"
	EvalExternal  EvaluationErrorKind = "external"
)

// EvaluationError is returned by evaluators and the dispatcher. Transient errors are retried.
type EvaluationError struct {
	Kind      EvaluationErrorKind
	Evaluator string
	Transient bool
	Cause     error
}

func (e *EvaluationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("evaluator %s: %s: %v", e.Evaluator, e.Kind, e.Cause)
	}
	return fmt.Sprintf("evaluator %s: %s", e.Evaluator, e.Kind)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// NewTimeoutError builds a transient timeout failure
func NewTimeoutError(evaluator string, cause error) *EvaluationError {
	return &EvaluationError{Kind: EvalTimeout, Evaluator: evaluator, Transient: true, Cause: cause}
}

// NewMalformedError builds a permanent failure for input the evaluator rejects
func NewMalformedError(evaluator string, cause error) *EvaluationError {
	return &EvaluationError{Kind: EvalMalformed, Evaluator: evaluator, Cause: cause}
}

// NewExternalError builds an external-service failure
func NewExternalError(evaluator string, transient bool, cause error) *EvaluationError {
	return &EvaluationError{Kind: EvalExternal, Evaluator: evaluator, Transient: transient, Cause: cause}
}

// AsEvaluationError normalizes any evaluator failure. Context deadline errors become timeouts,
// anything unknown becomes a permanent external error.
func AsEvaluationError(evaluator string, err error) *EvaluationError {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(evaluator, err)
	}
	return NewExternalError(evaluator, false, err)
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	var evalErr *EvaluationError
	return errors.As(err, &evalErr) && evalErr.Transient
}
