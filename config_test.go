package gantry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryhttp/gantry"
)

const sampleConfig = `
addr: ":9090"
drain_timeout: 15s
default_timeout: 2s
debug: true
cache:
  max_entries: 5000
  max_eval_time: 250ms
  negative_ttl: 10s
rate_limit:
  rate: 50
  burst: 100
  key: header
  key_header: X-Tenant
  max_idle: 10m
`

func TestParseConfig(t *testing.T) {
	t.Parallel()

	cfg, err := gantry.ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 15*time.Second, cfg.DrainTimeout.Std())
	assert.Equal(t, 2*time.Second, cfg.DefaultTimeout.Std())
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.StrictResponses)

	cc := cfg.CacheConfig()
	assert.Equal(t, 5000, cc.MaxEntries)
	assert.Equal(t, 250*time.Millisecond, cc.MaxEvalTime)
	assert.Equal(t, 10*time.Second, cc.NegativeTTL)

	rl := cfg.RateLimitConfig()
	require.NotNil(t, rl)
	assert.Equal(t, 50.0, rl.Rate)
	assert.Equal(t, 100, rl.Burst)
	assert.Equal(t, gantry.RateLimitByHeader, rl.Key)
	assert.Equal(t, "X-Tenant", rl.KeyHeader)
	assert.Equal(t, 10*time.Minute, rl.MaxIdle)
}

func TestParseConfig_partial(t *testing.T) {
	t.Parallel()

	cfg, err := gantry.ParseConfig([]byte(`addr: ":8080"`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Zero(t, cfg.DrainTimeout.Std())
	assert.Nil(t, cfg.RateLimitConfig())

	cc := cfg.CacheConfig()
	assert.Zero(t, cc.MaxEntries, "defaults are applied by the cache, not the loader")
}

func TestParseConfig_errors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown field":           `addres: ":8080"`,
		"bad duration":            `drain_timeout: soon`,
		"zero rate":               "rate_limit:\n  rate: 0",
		"header key without name": "rate_limit:\n  rate: 1\n  key: header",
		"unknown rate limit key":  "rate_limit:\n  rate: 1\n  key: bogus",
		"negative cache entries":  "cache:\n  max_entries: -1",
		"structurally invalid":    `addr: [unclosed`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := gantry.ParseConfig([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := gantry.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)

	_, err = gantry.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
