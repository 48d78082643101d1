package gantry_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryhttp/gantry"
)

func TestLogSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := gantry.NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Observe(gantry.Sample{
		Operation: "users.get",
		Status:    http.StatusOK,
		Latency:   3 * time.Millisecond,
		RequestID: "req-1",
	})

	line := buf.String()
	assert.Contains(t, line, "operation=users.get")
	assert.Contains(t, line, "status=200")
	assert.Contains(t, line, "request_id=req-1")
}

func TestPrometheusSink(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := gantry.NewPrometheusSink(reg)
	require.NoError(t, err)

	sink.Observe(gantry.Sample{Operation: "ping", Status: 200, Latency: time.Millisecond})
	sink.Observe(gantry.Sample{Operation: "ping", Status: 200, Latency: time.Millisecond})
	sink.Observe(gantry.Sample{Operation: "ping", Status: 503, Latency: time.Millisecond})

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.Requests().WithLabelValues("ping", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.Requests().WithLabelValues("ping", "5xx")))

	// Double registration is rejected.
	_, err = gantry.NewPrometheusSink(reg)
	assert.Error(t, err)
}

func TestPrometheusSink_defaultSinkIntegration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := gantry.NewPrometheusSink(reg)
	require.NoError(t, err)

	registry := newTestRegistry(t)
	p := newTestPipeline(t, registry, func(cfg *gantry.PipelineConfig) {
		cfg.Sink = sink
	})

	p.Execute(t.Context(), getRequest("/ping"))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.Requests().WithLabelValues("ping", "2xx")))
}
