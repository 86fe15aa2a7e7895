package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)

	_, ok := c.Get("a")
	assert.True(t, ok)

	c.Add("c", 3)
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	v, _ = c.Get("c")
	assert.Equal(t, 3, v)
}

func TestAddReplacesAndRemove(t *testing.T) {
	c := New[string, int](0)
	assert.Equal(t, 1, c.Cap())

	c.Add("a", 1)
	c.Add("a", 2)
	v, _ := c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	c.Remove("a")
	c.Remove("missing")
	assert.Equal(t, 0, c.Len())
}
