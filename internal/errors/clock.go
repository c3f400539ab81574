package errors

import (
	stdErrors "errors"
	"fmt"
	"time"
)

// ClockRegressionError reports that the clock returned a time earlier than a
// previously stored reading. It is fatal: throttling can no longer be trusted.
type ClockRegressionError struct {
	Previous time.Time
	Current  time.Time
}

func (e *ClockRegressionError) Error() string {
	return fmt.Sprintf("clock moved backwards by %s", e.Previous.Sub(e.Current))
}

// NewClockRegressionError creates a ClockRegressionError for the two readings.
func NewClockRegressionError(previous, current time.Time) *ClockRegressionError {
	return &ClockRegressionError{Previous: previous, Current: current}
}

// IsClockRegressionError reports whether err is a ClockRegressionError (even when wrapped).
func IsClockRegressionError(err error) bool {
	var clockErr *ClockRegressionError
	return stdErrors.As(err, &clockErr)
}
