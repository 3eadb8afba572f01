package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.False(t, Contains[int64](nil, 1))
}

func TestAppendUnique(t *testing.T) {
	got := AppendUnique([]string{"me", "u2"}, "u2", "u3", "u3")
	assert.Equal(t, []string{"me", "u2", "u3"}, got)
}
