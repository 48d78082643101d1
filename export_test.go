package gantry

import "github.com/prometheus/client_golang/prometheus"

// Test-only exports for internal functions.
var (
	ResolveIdentity = resolveIdentity
	QueryValue      = queryValue
	MintRequestID   = mintRequestID
	SplitPath       = splitPath
)

// Requests exposes the request counter for metric assertions.
func (s *PrometheusSink) Requests() *prometheus.CounterVec { return s.requests }
