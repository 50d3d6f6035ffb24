// Package util holds small helpers shared across packages.
package util

import (
	"github.com/goccy/go-json"
	"go.arcalot.io/lang"
)

// JSONEncode encodes a value as JSON or panics.
func JSONEncode(value any) string {
	return string(lang.Must2(json.Marshal(value)))
}
