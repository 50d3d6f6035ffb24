package engine

import "fmt"

// ErrNoItems signals that a solution was requested without any items.
var ErrNoItems = fmt.Errorf("no item IDs provided for the solution")

// ErrNotASolution indicates that the item passed as a solution is of a different type.
type ErrNotASolution struct {
	ID   string
	Type string
}

// Error returns the error message.
func (e ErrNotASolution) Error() string {
	return fmt.Sprintf("item %s is a %s, not a solution", e.ID, e.Type)
}

// ErrInvalidSolutionData indicates that the data section of a solution item cannot be read.
type ErrInvalidSolutionData struct {
	ID    string
	Cause error
}

// Error returns the error message.
func (e ErrInvalidSolutionData) Error() string {
	return fmt.Sprintf("invalid data in solution %s (%v)", e.ID, e.Cause)
}

// Unwrap returns the underlying error.
func (e ErrInvalidSolutionData) Unwrap() error {
	return e.Cause
}
