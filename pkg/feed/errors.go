package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMorePages is returned by LoadMore when the cursor is exhausted.
	ErrNoMorePages = errors.New("no more pages")

	// ErrLoadInProgress is returned by LoadMore while another load is outstanding.
	ErrLoadInProgress = errors.New("load already in progress")
)

// LoadError records a data source failure for a given cursor.
// The controller state is unchanged when a LoadError is returned.
type LoadError struct {
	Cursor string
	Err    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load page at cursor %q: %v", e.Cursor, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *LoadError) Unwrap() error {
	return e.Err
}
