package expreplay

import (
	"errors"
	"fmt"
)

var (
	errEmptyCache          = errors.New("no samples in cache")
	errInsufficientSamples = errors.New("insufficient samples in cache")
)

// ExpReplayError implements errors returned by an ExperienceReplayer
type ExpReplayError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *ExpReplayError) Error() string {
	return fmt.Sprintf("%v: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

// IsEmptyBuffer returns whether the error was caused by sampling from an
// empty buffer
func IsEmptyBuffer(err error) bool {
	var expErr *ExpReplayError
	if errors.As(err, &expErr) {
		return errors.Is(expErr.Err, errEmptyCache)
	}
	return false
}

// IsInsufficientSamples returns whether the error was caused by sampling
// from a buffer holding fewer samples than the sample batch size. Callers
// treat this as a signal to skip the learning step, not as a failure.
func IsInsufficientSamples(err error) bool {
	var expErr *ExpReplayError
	if errors.As(err, &expErr) {
		return errors.Is(expErr.Err, errInsufficientSamples)
	}
	return false
}
