package gantry

import (
	"context"
	"time"
)

// RequestContext is the per-request state threaded through every stage and
// handed to the handler. It is created at pipeline entry and must not be
// retained after the response is emitted.
//
// Cancellation rides the context.Context passed alongside it; stages check
// it at suspension points.
type RequestContext struct {
	// ID is the correlation id minted or adopted by the RequestId stage.
	ID string

	// Deadline is when the whole pipeline times out (zero if unbounded).
	Deadline time.Time

	// Identity is the resolved caller, Anonymous until the Identity stage
	// has run.
	Identity Identity

	// OperationID is the contract operation resolved by routing.
	OperationID string

	// Params holds path parameters captured by the router. Immutable.
	Params Params

	operation *Operation
	span      Span
	spanCtx   context.Context
	start     time.Time
	attrs     map[string]any
}

// Operation returns the resolved contract operation, or nil before routing.
func (rc *RequestContext) Operation() *Operation { return rc.operation }

// Start returns when the pipeline accepted the request.
func (rc *RequestContext) Start() time.Time { return rc.start }

// Set stores a value in the inter-stage attribute bag.
func (rc *RequestContext) Set(key string, value any) {
	if rc.attrs == nil {
		rc.attrs = make(map[string]any)
	}
	rc.attrs[key] = value
}

// Get retrieves a value from the attribute bag.
func (rc *RequestContext) Get(key string) (any, bool) {
	v, ok := rc.attrs[key]
	return v, ok
}
