package gantry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gantryhttp/gantry"
)

func TestParams_basic(t *testing.T) {
	t.Parallel()

	p := gantry.NewParams()
	assert.True(t, p.IsEmpty())
	assert.Equal(t, 0, p.Len())

	p.Push("id", "42")
	p.Push("rest", "a/b/c")

	assert.False(t, p.IsEmpty())
	assert.Equal(t, 2, p.Len())

	v, ok := p.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	v, ok = p.Get("rest")
	assert.True(t, ok)
	assert.Equal(t, "a/b/c", v)

	_, ok = p.Get("missing")
	assert.False(t, ok)
}

func TestParams_firstMatchWins(t *testing.T) {
	t.Parallel()

	p := gantry.NewParams()
	p.Push("id", "first")
	p.Push("id", "second")

	v, ok := p.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "first", v)
}

func TestParams_allPreservesOrder(t *testing.T) {
	t.Parallel()

	p := gantry.NewParams()
	p.Push("a", "1")
	p.Push("b", "2")
	p.Push("c", "3")

	pairs := p.All()
	assert.Equal(t, []gantry.Param{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2"},
		{Name: "c", Value: "3"},
	}, pairs)
}

func TestParams_rawValues(t *testing.T) {
	t.Parallel()

	p := gantry.NewParams()
	p.Push("name", "a%20b")

	v, _ := p.Get("name")
	assert.Equal(t, "a%20b", v, "values are raw bytes, never decoded")
}
