package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringWithoutInjectedValues(t *testing.T) {
	t.Parallel()

	// Test builds carry no ldflags, so both fields hold the fallback.
	assert.Equal(t, "unknown (built unknown)", String())
}
