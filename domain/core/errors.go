package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors: the parameters themselves are defective and
	// the simulation must not start.
	ErrConfiguration       = errors.New("invalid study configuration")
	ErrUnknownDistribution = fmt.Errorf("%w: unknown distribution", ErrConfiguration)
	ErrUndeclaredNode      = fmt.Errorf("%w: node referenced by an edge but not declared", ErrConfiguration)
	ErrDuplicateNode       = fmt.Errorf("%w: node declared more than once", ErrConfiguration)

	// Graph errors
	ErrCyclicGraph = errors.New("dependency graph contains a cycle")

	// Arithmetic errors: a single draw or recurrence cannot be evaluated.
	ErrArithmetic     = errors.New("arithmetic failure")
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrArithmetic)
	ErrInvalidBounds  = fmt.Errorf("%w: invalid sampling bounds", ErrArithmetic)

	// Sampling errors: a dropout request exceeds the available rows.
	ErrSampling = errors.New("sampling failure")

	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrRecordNotFound = fmt.Errorf("%w: patient record", ErrNotFound)
)

// Error constructors with context
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfiguration, field, reason)
}

func NewUnknownDistributionError(variable string, distribution string) error {
	return fmt.Errorf("%w %q for variable %s", ErrUnknownDistribution, distribution, variable)
}

func NewCyclicGraphError(remaining []string) error {
	return fmt.Errorf("%w: no orderable node among %v", ErrCyclicGraph, remaining)
}

func NewSamplingError(reason string) error {
	return fmt.Errorf("%w: %s", ErrSampling, reason)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsArithmeticError(err error) bool {
	return errors.Is(err, ErrArithmetic)
}

func IsSamplingError(err error) bool {
	return errors.Is(err, ErrSampling)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
