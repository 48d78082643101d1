package gantry_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryhttp/gantry"
)

func TestMintRequestID(t *testing.T) {
	t.Parallel()

	a := gantry.MintRequestID()
	b := gantry.MintRequestID()

	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestQueryValue(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		query   string
		name    string
		expect  string
		present bool
	}{
		"simple":          {"a=1&b=2", "b", "2", true},
		"first of pair":   {"a=1&b=2", "a", "1", true},
		"missing":         {"a=1", "c", "", false},
		"empty value":     {"a=&b=2", "a", "", true},
		"no equals":       {"flag&b=2", "flag", "", false},
		"raw not decoded": {"q=a%20b", "q", "a%20b", true},
		"empty query":     {"", "a", "", false},
		"value with '='":  {"next=x=y", "next", "x=y", true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			v, ok := gantry.QueryValue(tc.query, tc.name)
			assert.Equal(t, tc.present, ok)
			assert.Equal(t, tc.expect, v)
		})
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	segs, err := gantry.SplitPath("/a/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, segs)

	segs, err = gantry.SplitPath("/a/b/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", ""}, segs, "trailing slashes are significant")

	segs, err = gantry.SplitPath("/")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, segs)

	_, err = gantry.SplitPath("relative")
	assert.Error(t, err)
}
