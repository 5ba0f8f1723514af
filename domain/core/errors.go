package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrRunNotFound    = fmt.Errorf("%w: run", ErrNotFound)
	ErrCorpusNotFound = fmt.Errorf("%w: corpus", ErrNotFound)

	// Validation errors
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrEmptyOptions    = fmt.Errorf("%w: no options", ErrInvalidScenario)
	ErrDuplicateOption = fmt.Errorf("%w: duplicate option id", ErrInvalidScenario)
	ErrNonFinite       = fmt.Errorf("%w: non-finite attribute", ErrInvalidScenario)

	// Statistical errors
	ErrDegenerate = errors.New("empty sample pool")

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")
	ErrHashMismatch     = errors.New("hash mismatch")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewScenarioError(scenarioID string, err error) error {
	return fmt.Errorf("scenario %s: %w", scenarioID, err)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidScenario)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrNonDeterministic) ||
		errors.Is(err, ErrHashMismatch)
}
