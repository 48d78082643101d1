package gantry_test

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryhttp/gantry"
)

// testToken builds a JWT-shaped token with the given subject claim. The
// signature is junk; the pipeline only reads the payload.
func testToken(sub string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"` + sub + `"}`))
	return "eyJhbGciOiJIUzI1NiJ9." + payload + ".sig"
}

func reqWithHeaders(h map[string]string) *gantry.Request {
	req := &gantry.Request{Method: http.MethodGet, Path: "/", Header: make(http.Header)}
	for k, v := range h {
		req.Header.Set(k, v)
	}
	return req
}

func TestResolveIdentity(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		headers map[string]string
		expect  gantry.Identity
	}{
		"no credentials": {
			headers: nil,
			expect:  gantry.Anonymous(),
		},
		"bearer token": {
			headers: map[string]string{"Authorization": "Bearer " + testToken("alice")},
			expect:  gantry.Identity{Kind: gantry.IdentityUser, Subject: "alice"},
		},
		"api key": {
			headers: map[string]string{"X-Api-Key": "key123.s3cret"},
			expect:  gantry.Identity{Kind: gantry.IdentityAPIKey, Subject: "key123"},
		},
		"spiffe id": {
			headers: map[string]string{"X-Spiffe-Id": "spiffe://cluster.local/ns/default/sa/web"},
			expect:  gantry.Identity{Kind: gantry.IdentitySpiffe, Subject: "spiffe://cluster.local/ns/default/sa/web"},
		},
		"spiffe wins over bearer": {
			headers: map[string]string{
				"X-Spiffe-Id":   "spiffe://cluster.local/ns/default/sa/web",
				"Authorization": "Bearer " + testToken("alice"),
			},
			expect: gantry.Identity{Kind: gantry.IdentitySpiffe, Subject: "spiffe://cluster.local/ns/default/sa/web"},
		},
		"bearer wins over api key": {
			headers: map[string]string{
				"Authorization": "Bearer " + testToken("alice"),
				"X-Api-Key":     "key123.s3cret",
			},
			expect: gantry.Identity{Kind: gantry.IdentityUser, Subject: "alice"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			id, err := gantry.ResolveIdentity(reqWithHeaders(tc.headers))
			require.Nil(t, err)
			assert.Equal(t, tc.expect, id)
		})
	}
}

func TestResolveIdentity_malformed(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]string{
		"bad spiffe prefix":     {"X-Spiffe-Id": "http://not-spiffe"},
		"basic auth scheme":     {"Authorization": "Basic dXNlcjpwYXNz"},
		"two-part token":        {"Authorization": "Bearer abc.def"},
		"undecodable payload":   {"Authorization": "Bearer a.!!!.c"},
		"token with no subject": {"Authorization": "Bearer " + testToken("")},
		"api key no separator":  {"X-Api-Key": "justakey"},
		"api key empty id":      {"X-Api-Key": ".secret"},
	}

	for name, headers := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := gantry.ResolveIdentity(reqWithHeaders(headers))
			require.NotNil(t, err)
			assert.Equal(t, gantry.CodeUnauthenticated, err.Code)
		})
	}
}

func TestIdentity_Key(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "anonymous", gantry.Anonymous().Key())
	assert.Equal(t, "user:alice", gantry.Identity{Kind: gantry.IdentityUser, Subject: "alice"}.Key())
	assert.Equal(t, "api_key:key123", gantry.Identity{Kind: gantry.IdentityAPIKey, Subject: "key123"}.Key())
}
