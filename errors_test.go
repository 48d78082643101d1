package gantry_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryhttp/gantry"
)

func TestCode_Status(t *testing.T) {
	t.Parallel()

	tests := map[gantry.Code]int{
		gantry.CodeInvalidRequest:   http.StatusBadRequest,
		gantry.CodeUnauthenticated:  http.StatusUnauthorized,
		gantry.CodeForbidden:        http.StatusForbidden,
		gantry.CodeNotFound:         http.StatusNotFound,
		gantry.CodeMethodNotAllowed: http.StatusMethodNotAllowed,
		gantry.CodeValidationFailed: http.StatusUnprocessableEntity,
		gantry.CodeRateLimited:      http.StatusTooManyRequests,
		gantry.CodeInternal:         http.StatusInternalServerError,
		gantry.CodeUnavailable:      http.StatusServiceUnavailable,
		gantry.CodeTimeout:          http.StatusGatewayTimeout,
	}

	for code, status := range tests {
		assert.Equal(t, status, code.Status(), "code %s", code)
	}

	assert.Equal(t, http.StatusInternalServerError, gantry.Code("BOGUS").Status())
}

func TestError_message(t *testing.T) {
	t.Parallel()

	err := gantry.NewError(gantry.CodeNotFound, "user not found")
	assert.EqualError(t, err, "NOT_FOUND: user not found")
	assert.Equal(t, http.StatusNotFound, err.StatusCode())

	err = gantry.Errorf(gantry.CodeInvalidRequest, "bad %s", "input")
	assert.EqualError(t, err, "INVALID_REQUEST: bad input")
}

func TestError_wrapAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := gantry.WrapError(gantry.CodeInternal, "save failed", cause)

	assert.EqualError(t, err, "INTERNAL: save failed: disk full")
	assert.ErrorIs(t, err, cause)
}

func TestError_withDetails(t *testing.T) {
	t.Parallel()

	err := gantry.NewError(gantry.CodeValidationFailed, "request validation failed").
		WithDetails(
			gantry.FieldError{Source: "body", Field: "name", Reason: "missing"},
			gantry.FieldError{Source: "query", Field: "limit", Reason: "expected integer"},
		)

	require.Len(t, err.Details, 2)
	assert.Equal(t, "name", err.Details[0].Field)
	assert.Equal(t, "query", err.Details[1].Source)
}

func TestAsError(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err    error
		expect gantry.Code
	}{
		"typed error passes through": {
			err:    gantry.NewError(gantry.CodeForbidden, "no"),
			expect: gantry.CodeForbidden,
		},
		"wrapped typed error passes through": {
			err:    fmt.Errorf("outer: %w", gantry.NewError(gantry.CodeNotFound, "gone")),
			expect: gantry.CodeNotFound,
		},
		"deadline exceeded maps to timeout": {
			err:    context.DeadlineExceeded,
			expect: gantry.CodeTimeout,
		},
		"cancellation maps to timeout": {
			err:    context.Canceled,
			expect: gantry.CodeTimeout,
		},
		"plain error maps to internal": {
			err:    errors.New("boom"),
			expect: gantry.CodeInternal,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, gantry.AsError(tc.err).Code)
		})
	}
}
