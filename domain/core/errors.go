package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Unit resolution errors
	ErrUnitsAmbiguous        = errors.New("spectrum units ambiguous")
	ErrUnitsResolutionFailed = errors.New("unit resolution failed under both interpretations")
	ErrUnknownUnits          = errors.New("spectrum units unknown")

	// Sanity gate errors
	ErrSanityCheckFailure = errors.New("sanity check failure")

	// Configuration errors
	ErrConfigInvalid = errors.New("invalid grid configuration")

	// Execution errors
	ErrComputeTimeout   = errors.New("cell exceeded wall-clock budget")
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")
	ErrSeedMismatch     = errors.New("seed mismatch")
)

// NewSanityError builds a sanity failure naming the violated check and the
// measured value, so an abort can be reproduced without re-running the pipeline.
func NewSanityError(check string, measured, threshold float64) error {
	return fmt.Errorf("%w: %s measured %g exceeds threshold %g", ErrSanityCheckFailure, check, measured, threshold)
}

// NewConfigError builds a configuration validation failure for a named option.
func NewConfigError(option string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfigInvalid, option, reason)
}

// Error checking helpers
func IsSanityCheckFailure(err error) bool {
	return errors.Is(err, ErrSanityCheckFailure)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigInvalid)
}

func IsUnitsError(err error) bool {
	return errors.Is(err, ErrUnitsAmbiguous) ||
		errors.Is(err, ErrUnitsResolutionFailed) ||
		errors.Is(err, ErrUnknownUnits)
}
