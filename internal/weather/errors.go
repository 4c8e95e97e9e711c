package weather

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is returned before any fetch starts when dates or
	// selections are malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyInput is returned when a run has no stations to fetch.
	ErrEmptyInput = fmt.Errorf("%w: empty station set", ErrInvalidInput)
)

// FetchError records why one fetch task failed.
type FetchError struct {
	StationID string
	Chunk     DateChunk
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.StationID, e.Chunk, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AggregateError is the terminal error of a run in which at least one fetch
// task failed. Rows from successful tasks are discarded.
type AggregateError struct {
	Failures []*FetchError
}

// Count returns the number of failed tasks.
func (e *AggregateError) Count() int {
	return len(e.Failures)
}

// Message lists every failure on its own line, in plan order.
func (e *AggregateError) Message() string {
	lines := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		lines = append(lines, f.Error())
	}
	return strings.Join(lines, "\n")
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("%d fetch(es) failed:\n  %s",
		e.Count(), strings.ReplaceAll(e.Message(), "\n", "\n  "))
}

// Unwrap exposes every task error to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
