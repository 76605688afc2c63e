// Package vaderr defines the error taxonomy shared by the segmentation packages.
//
// Every error returned by the core wraps exactly one of the sentinels below, so
// callers can branch with errors.Is: ErrInvalidInput is always fixable by the
// caller and never leaves state behind, ErrPrediction comes from the predictor
// and is safe to retry with the same input.
package vaderr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed frames, unsupported sample rates, bad
	// configuration and out-of-bounds timestamps.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPrediction marks failures of the probability predictor.
	ErrPrediction = errors.New("prediction failed")
)

// Invalid builds an ErrInvalidInput error with a formatted detail.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Prediction wraps err as a predictor failure. Errors already classified are
// returned unchanged.
func Prediction(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPrediction) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPrediction, err)
}
