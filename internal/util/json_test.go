package util_test

import (
	"testing"

	"go.arcalot.io/assert"
	"go.solutions.arcgis.dev/engine/internal/util"
)

func TestJSONEncode(t *testing.T) {
	assert.Equals(t, util.JSONEncode("30s"), `"30s"`)
	assert.Equals(t, util.JSONEncode(8), "8")
}
