package gantry_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryhttp/gantry"
)

func TestRouter_staticMatch(t *testing.T) {
	t.Parallel()

	r := gantry.NewRouter()
	require.NoError(t, r.Insert(http.MethodGet, "/v1/health", "health"))

	m, err := r.Match(http.MethodGet, "/v1/health")
	require.NoError(t, err)
	assert.Equal(t, "health", m.OperationID)
	assert.True(t, m.Params.IsEmpty())
}

func TestRouter_paramCapture(t *testing.T) {
	t.Parallel()

	r := gantry.NewRouter()
	require.NoError(t, r.Insert(http.MethodGet, "/users/{id}/posts/{post}", "posts.get"))

	m, err := r.Match(http.MethodGet, "/users/42/posts/7")
	require.NoError(t, err)
	assert.Equal(t, "posts.get", m.OperationID)

	id, ok := m.Params.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	post, ok := m.Params.Get("post")
	assert.True(t, ok)
	assert.Equal(t, "7", post)
}

func TestRouter_specificity(t *testing.T) {
	t.Parallel()

	r := gantry.NewRouter()
	require.NoError(t, r.Insert(http.MethodGet, "/files/special", "static"))
	require.NoError(t, r.Insert(http.MethodGet, "/files/{name}", "param"))
	require.NoError(t, r.Insert(http.MethodGet, "/files/*rest", "wildcard"))

	tests := map[string]struct {
		path   string
		expect string
		params map[string]string
	}{
		"static wins over param and wildcard": {
			path:   "/files/special",
			expect: "static",
		},
		"param wins over wildcard": {
			path:   "/files/readme",
			expect: "param",
			params: map[string]string{"name": "readme"},
		},
		"wildcard catches deeper paths": {
			path:   "/files/a/b/c",
			expect: "wildcard",
			params: map[string]string{"rest": "a/b/c"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			m, err := r.Match(http.MethodGet, tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, m.OperationID)
			for k, v := range tc.params {
				got, ok := m.Params.Get(k)
				assert.True(t, ok)
				assert.Equal(t, v, got)
			}
		})
	}
}

func TestRouter_paramNeverMatchesEmptySegment(t *testing.T) {
	t.Parallel()

	r := gantry.NewRouter()
	require.NoError(t, r.Insert(http.MethodGet, "/users/{id}", "users.get"))

	_, err := r.Match(http.MethodGet, "/users//")
	assert.ErrorIs(t, err, gantry.ErrNotFound)
}

func TestRouter_trailingSlashIsSignificant(t *testing.T) {
	t.Parallel()

	r := gantry.NewRouter()
	require.NoError(t, r.Insert(http.MethodGet, "/items", "items"))
	require.NoError(t, r.Insert(http.MethodGet, "/items/", "items.slash"))

	m, err := r.Match(http.MethodGet, "/items")
	require.NoError(t, err)
	assert.Equal(t, "items", m.OperationID)

	m, err = r.Match(http.MethodGet, "/items/")
	require.NoError(t, err)
	assert.Equal(t, "items.slash", m.OperationID)
}

func TestRouter_noDecoding(t *testing.T) {
	t.Parallel()

	r := gantry.NewRouter()
	require.NoError(t, r.Insert(http.MethodGet, "/docs/{name}", "docs.get"))

	m, err := r.Match(http.MethodGet, "/docs/a%2Fb")
	require.NoError(t, err)

	name, _ := m.Params.Get("name")
	assert.Equal(t, "a%2Fb", name, "the router matches raw bytes")
}

func TestRouter_methodNotAllowed(t *testing.T) {
	t.Parallel()

	r := gantry.NewRouter()
	require.NoError(t, r.Insert(http.MethodGet, "/users", "users.list"))
	require.NoError(t, r.Insert(http.MethodPost, "/users", "users.create"))

	_, err := r.Match(http.MethodDelete, "/users")

	var mna *gantry.MethodNotAllowedError
	require.ErrorAs(t, err, &mna)
	assert.Equal(t, []string{http.MethodGet, http.MethodPost}, mna.Allow)
}

func TestRouter_notFound(t *testing.T) {
	t.Parallel()

	r := gantry.NewRouter()
	require.NoError(t, r.Insert(http.MethodGet, "/users", "users.list"))

	_, err := r.Match(http.MethodGet, "/nope")
	assert.ErrorIs(t, err, gantry.ErrNotFound)
}

func TestRouter_insertErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		setup  [][3]string
		insert [3]string
		expect error
	}{
		"duplicate route": {
			setup:  [][3]string{{http.MethodGet, "/users", "a"}},
			insert: [3]string{http.MethodGet, "/users", "b"},
			expect: gantry.ErrDuplicateRoute,
		},
		"conflicting param name": {
			setup:  [][3]string{{http.MethodGet, "/users/{id}", "a"}},
			insert: [3]string{http.MethodPost, "/users/{uid}", "b"},
			expect: gantry.ErrConflictingParam,
		},
		"conflicting wildcard name": {
			setup:  [][3]string{{http.MethodGet, "/files/*rest", "a"}},
			insert: [3]string{http.MethodGet, "/files/*tail", "b"},
			expect: gantry.ErrConflictingParam,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := gantry.NewRouter()
			for _, s := range tc.setup {
				require.NoError(t, r.Insert(s[0], s[1], s[2]))
			}
			err := r.Insert(tc.insert[0], tc.insert[1], tc.insert[2])
			assert.ErrorIs(t, err, tc.expect)
		})
	}
}

func TestRouter_patternErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"no leading slash":       "users",
		"unnamed param":          "/users/{}",
		"unnamed catch-all":      "/files/*",
		"non-terminal catch-all": "/files/*rest/extra",
	}

	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := gantry.NewRouter()
			assert.Error(t, r.Insert(http.MethodGet, path, "op"))
		})
	}
}

func TestRouter_sameRouteTwoMethods(t *testing.T) {
	t.Parallel()

	r := gantry.NewRouter()
	require.NoError(t, r.Insert(http.MethodGet, "/users/{id}", "users.get"))
	require.NoError(t, r.Insert(http.MethodDelete, "/users/{id}", "users.delete"))
	assert.Equal(t, 2, r.Len())

	m, err := r.Match(http.MethodDelete, "/users/9")
	require.NoError(t, err)
	assert.Equal(t, "users.delete", m.OperationID)
}

func TestRouter_backtracking(t *testing.T) {
	t.Parallel()

	// A static branch that dead-ends must not leak captures made while
	// trying the param branch.
	r := gantry.NewRouter()
	require.NoError(t, r.Insert(http.MethodGet, "/a/b/c", "static.deep"))
	require.NoError(t, r.Insert(http.MethodGet, "/a/{x}/d", "param.deep"))

	m, err := r.Match(http.MethodGet, "/a/b/d")
	require.NoError(t, err)
	assert.Equal(t, "param.deep", m.OperationID)

	x, ok := m.Params.Get("x")
	assert.True(t, ok)
	assert.Equal(t, "b", x)
	assert.Equal(t, 1, m.Params.Len())
}
