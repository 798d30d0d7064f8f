package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound = errors.New("resource not found")

	// Configuration errors
	ErrUnknownMeasurement    = errors.New("measurement not configured for analysis")
	ErrMissingColumn         = errors.New("measurement missing from input schema")
	ErrUnknownQuantileMethod = errors.New("unknown quantile method")
	ErrBaselineNotOrdered    = errors.New("baseline method absent from method order")
	ErrBaselineMissing       = errors.New("baseline method not present in data")

	// Numeric errors
	ErrEmptySample      = errors.New("empty sample")
	ErrInvalidQuantile  = errors.New("quantile probability outside [0, 1]")
	ErrInsufficientData = errors.New("insufficient data for analysis")
)

// NewValidationError builds a field-scoped validation error
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// IsConfigurationError reports whether err is one of the fatal configuration sentinels.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrUnknownMeasurement) ||
		errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrUnknownQuantileMethod) ||
		errors.Is(err, ErrBaselineNotOrdered)
}
