package sequence

import (
	"fmt"
	"strings"
)

// ErrCyclicDependency indicates that the templates cannot be ordered because their dependencies form at least one
// cycle.
type ErrCyclicDependency struct {
	// IDs holds the items that lie on a dependency cycle.
	IDs []string
	// Unsorted holds every item that could not be scheduled, including items that merely depend on a cycle.
	Unsorted []string
}

// Error returns the error message.
func (e ErrCyclicDependency) Error() string {
	return fmt.Sprintf("cyclic dependency graph detected: %s", strings.Join(e.IDs, ", "))
}
