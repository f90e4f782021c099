package domain

import (
	"errors"
	"fmt"
)

// Common domain errors.
var (
	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidFilter indicates that a filter value is not recognised.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrEmptyValue indicates that a required value is empty.
	ErrEmptyValue = errors.New("empty value")

	// ErrScoreOutOfRange indicates a criterion score above its maximum or
	// below zero.
	ErrScoreOutOfRange = errors.New("score out of range")
)

// FetchErrorPrefix prefixes the single user-visible fetch error.
const FetchErrorPrefix = "Error fetching data: "

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// ScoreError reports a criterion score that does not fit the scale.
type ScoreError struct {
	Criterion Criterion
	Value     float64
	Max       float64
}

// Error implements the error interface for ScoreError.
func (e *ScoreError) Error() string {
	return fmt.Sprintf("%s score %v must be between 0 and %v", e.Criterion.Label(), e.Value, e.Max)
}

// Unwrap returns ErrScoreOutOfRange.
func (e *ScoreError) Unwrap() error { return ErrScoreOutOfRange }

// CheckScores verifies every raw score lies within [0, max] for the scale.
func (s Scale) CheckScores(raw CriterionValues) error {
	for i, v := range raw {
		if v < 0 || v > s.Maxima[i] {
			return &ScoreError{Criterion: Criterion(i), Value: v, Max: s.Maxima[i]}
		}
	}
	return nil
}
