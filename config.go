package gantry

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the file-loadable server configuration. Zero values fall back
// to the same defaults the programmatic constructors use, so a partial
// YAML file is fine.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// DrainTimeout bounds graceful shutdown.
	DrainTimeout Duration `yaml:"drain_timeout"`

	// DefaultTimeout bounds requests whose operation declares no timeout.
	DefaultTimeout Duration `yaml:"default_timeout"`

	// Debug appends developer detail to error envelopes.
	Debug bool `yaml:"debug"`

	// StrictResponses turns response contract violations into 500s.
	StrictResponses bool `yaml:"strict_responses"`

	Cache     CacheFileConfig      `yaml:"cache"`
	RateLimit *RateLimitFileConfig `yaml:"rate_limit"`
}

// CacheFileConfig is the YAML shape of CacheConfig.
type CacheFileConfig struct {
	MaxEntries  int      `yaml:"max_entries"`
	MaxEvalTime Duration `yaml:"max_eval_time"`
	NegativeTTL Duration `yaml:"negative_ttl"`
}

// RateLimitFileConfig is the YAML shape of RateLimitConfig. Key is one of
// "identity", "addr", or "header".
type RateLimitFileConfig struct {
	Rate      float64  `yaml:"rate"`
	Burst     int      `yaml:"burst"`
	Key       string   `yaml:"key"`
	KeyHeader string   `yaml:"key_header"`
	MaxIdle   Duration `yaml:"max_idle"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration bytes. Unknown fields are
// rejected so typos fail loudly at startup.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("config: cache.max_entries must not be negative")
	}
	if c.RateLimit != nil {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("config: rate_limit.rate must be positive")
		}
		switch c.RateLimit.Key {
		case "", "identity", "addr":
		case "header":
			if c.RateLimit.KeyHeader == "" {
				return fmt.Errorf("config: rate_limit.key_header required when key is %q", c.RateLimit.Key)
			}
		default:
			return fmt.Errorf("config: unknown rate_limit.key %q", c.RateLimit.Key)
		}
	}
	return nil
}

// CacheConfig converts the file shape to the runtime shape.
func (c Config) CacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries:  c.Cache.MaxEntries,
		MaxEvalTime: c.Cache.MaxEvalTime.Std(),
		NegativeTTL: c.Cache.NegativeTTL.Std(),
	}
}

// RateLimitConfig converts the file shape to the runtime shape, or nil
// when rate limiting is not configured.
func (c Config) RateLimitConfig() *RateLimitConfig {
	if c.RateLimit == nil {
		return nil
	}
	rl := &RateLimitConfig{
		Rate:      c.RateLimit.Rate,
		Burst:     c.RateLimit.Burst,
		KeyHeader: c.RateLimit.KeyHeader,
		MaxIdle:   c.RateLimit.MaxIdle.Std(),
	}
	switch c.RateLimit.Key {
	case "addr":
		rl.Key = RateLimitByAddr
	case "header":
		rl.Key = RateLimitByHeader
	default:
		rl.Key = RateLimitByIdentity
	}
	return rl
}
