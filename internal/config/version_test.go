package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtLeastMinClientVersion(t *testing.T) {
	assert.True(t, AtLeastMinClientVersion("1.0.0"))
	assert.True(t, AtLeastMinClientVersion("1.2.3"))
	assert.False(t, AtLeastMinClientVersion("0.9.9"))
}

func TestAtLeastMinClientVersionToleratesGarbage(t *testing.T) {
	// An unparseable client version hint shouldn't fail the connection —
	// it's informational, not enforced.
	assert.True(t, AtLeastMinClientVersion("not-a-version"))
}
