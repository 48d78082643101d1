package gantry

import (
	"context"
	"log/slog"
	"time"
)

// Sample is one request's telemetry: the operation served, the final
// status, and wall time from pipeline entry to the telemetry stage.
type Sample struct {
	Operation string
	Status    int
	Latency   time.Duration
	RequestID string
}

// Sink receives telemetry samples. Implementations must be non-blocking:
// drop on backpressure rather than stall the pipeline, and count the drops.
type Sink interface {
	Observe(Sample)
}

// LogSink emits one structured log line per request. It is the default
// sink when none is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging through the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Observe implements Sink.
func (s *LogSink) Observe(sample Sample) {
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "request",
		slog.String("operation", sample.Operation),
		slog.Int("status", sample.Status),
		slog.Duration("latency", sample.Latency),
		slog.String("request_id", sample.RequestID),
	)
}

// emitTelemetry runs exactly once per request, on every path: success,
// short-circuit, failure, panic, and cancellation.
func (p *Pipeline) emitTelemetry(_ context.Context, rc *RequestContext, resp *Response, failErr error) {
	status := 0
	switch {
	case failErr != nil:
		status = AsError(failErr).StatusCode()
	case resp != nil:
		status = resp.Status
	}

	operation := rc.OperationID
	if operation == "" {
		operation = "unmatched"
	}

	p.sink.Observe(Sample{
		Operation: operation,
		Status:    status,
		Latency:   time.Since(rc.start),
		RequestID: rc.ID,
	})

	if rc.span != nil {
		rc.span.SetStatus(status)
		if failErr != nil {
			rc.span.RecordError(failErr)
		}
		rc.span.End()
	}
}
