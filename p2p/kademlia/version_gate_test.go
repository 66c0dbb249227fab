package kademlia

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionMismatch(t *testing.T) {
	t.Cleanup(func() { SetRequiredVersion("") })

	SetRequiredVersion("")
	_, mismatch := versionMismatch("anything")
	assert.False(t, mismatch)
	_, mismatch = versionMismatch("")
	assert.False(t, mismatch)

	SetRequiredVersion(" v1.2.0 ")
	required, mismatch := versionMismatch("v1.2.0")
	assert.Equal(t, "v1.2.0", required)
	assert.False(t, mismatch)

	_, mismatch = versionMismatch("v1.1.0")
	assert.True(t, mismatch)
	_, mismatch = versionMismatch("")
	assert.True(t, mismatch)
}
