package portal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAPI is returned when the portal answers a request with an error document.
type ErrAPI struct {
	Operation string
	Code      int
	Message   string
	Details   []string
}

// Error returns the error message.
func (e ErrAPI) Error() string {
	msg := fmt.Sprintf("%s failed with code %d: %s", e.Operation, e.Code, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// ErrNotFound indicates that the requested item or group does not exist or is not accessible.
type ErrNotFound struct {
	Kind string
	ID   string
}

// Error returns the error message.
func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsNotFound returns true if the error, or any error it wraps, is an ErrNotFound.
func IsNotFound(err error) bool {
	var notFound ErrNotFound
	return errors.As(err, &notFound)
}
