package main

import (
	"errors"

	"github.com/benchtrail/benchtrail/internal/history"
)

// Process exit codes.
const (
	exitOK         = 0
	exitRegression = 1
	exitFailure    = 2
	exitRetry      = 3
)

// errRegression is returned by recording commands when the run should fail
// the job. The verdict table has already been printed.
var errRegression = errors.New("performance regression past failure threshold")

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRegression):
		return exitRegression
	case history.IsRetryable(err):
		return exitRetry
	default:
		return exitFailure
	}
}
