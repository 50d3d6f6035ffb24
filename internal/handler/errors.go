package handler

import (
	"fmt"
	"strings"
)

// ErrHandlerNotFound indicates that no handler is registered for an item type.
type ErrHandlerNotFound struct {
	Type       string
	ValidTypes []string
}

// Error returns the error message.
func (e ErrHandlerNotFound) Error() string {
	return fmt.Sprintf(
		"the following item type is not supported: %s (only the following types are supported: %s)",
		e.Type,
		strings.Join(e.ValidTypes, ", "),
	)
}
