package registry

import "fmt"

// ErrDuplicateItemType indicates that there are two handlers for the same item type.
type ErrDuplicateItemType struct {
	Type string
}

// Error returns the error message.
func (e ErrDuplicateItemType) Error() string {
	return fmt.Sprintf("duplicate handler for item type %s found", e.Type)
}
