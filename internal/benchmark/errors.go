package benchmark

import (
	"errors"
	"fmt"
)

// Errors returned while building runs and normalizing cases.
//
// The typed errors below match these sentinels with errors.Is:
//
//	if errors.Is(err, benchmark.ErrMalformedExtra) {
//	    // exclude the case from comparison, keep it stored
//	}
var (
	// ErrInvalidRun is matched by every ValidationError.
	ErrInvalidRun = errors.New("invalid benchmark run")

	// ErrUnsupportedUnit is returned when a case unit has no known
	// conversion to operations per second.
	ErrUnsupportedUnit = errors.New("unsupported unit")

	// ErrMalformedExtra is returned when the extra text does not follow the
	// "mean: <float> <unit>" / "rounds: <int>" grammar.
	ErrMalformedExtra = errors.New("malformed extra text")

	// ErrMalformedRange is returned when range text is present but is not
	// "stddev: <float>".
	ErrMalformedRange = errors.New("malformed range text")
)

// ValidationError reports a run that violates the measurement model.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid run: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRun }

// UnsupportedUnitError reports a case unit the normalizer cannot convert.
type UnsupportedUnitError struct {
	Unit string
}

func (e *UnsupportedUnitError) Error() string {
	return fmt.Sprintf("unsupported unit %q", e.Unit)
}

func (e *UnsupportedUnitError) Is(target error) bool { return target == ErrUnsupportedUnit }

// MalformedExtraError reports which line of the extra text failed to parse.
// Line is 1-based; 0 means the line count itself was wrong.
type MalformedExtraError struct {
	Line int
	Text string
}

func (e *MalformedExtraError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("malformed extra text %q: want 2 lines", e.Text)
	}
	return fmt.Sprintf("malformed extra text line %d: %q", e.Line, e.Text)
}

func (e *MalformedExtraError) Is(target error) bool { return target == ErrMalformedExtra }

// MalformedRangeError reports range text that is neither empty nor a stddev.
type MalformedRangeError struct {
	Text string
}

func (e *MalformedRangeError) Error() string {
	return fmt.Sprintf("malformed range text %q", e.Text)
}

func (e *MalformedRangeError) Is(target error) bool { return target == ErrMalformedRange }

// IsCaseError reports whether err is a per-case parse failure. Such errors
// exclude one case from comparison and never abort the rest of the run.
func IsCaseError(err error) bool {
	return errors.Is(err, ErrUnsupportedUnit) ||
		errors.Is(err, ErrMalformedExtra) ||
		errors.Is(err, ErrMalformedRange)
}
