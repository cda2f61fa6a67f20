package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyCapture is returned by the scrape step when the scraper produced
// no result and no error.
var ErrEmptyCapture = errors.New("capture produced no data")

// StepError records which step of a capture failed.
type StepError struct {
	Step string
	Err  error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the name of the step that produced err, or "" if err
// did not come from a pipeline.
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
