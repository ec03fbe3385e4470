package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	a := HashString("GPT-4o model details")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashString("GPT-4o model details"))
	assert.NotEqual(t, a, HashString("GPT-4o model data"))
}

func TestHashPartsSeparatesFields(t *testing.T) {
	assert.NotEqual(t, HashParts("ab", "c"), HashParts("a", "bc"))
	assert.Equal(t, HashParts("x", "y"), HashParts("x", "y"))
}
