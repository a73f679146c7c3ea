package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alterlab/alterlab-go/pkg/client"
	"github.com/alterlab/alterlab-go/pkg/otel"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	UserAgent string `yaml:"user_agent"`

	Timeout time.Duration `yaml:"timeout"`

	MaxRetries    *int          `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`

	RateLimit *rateLimitConfig `yaml:"rate_limit"`

	Telemetry bool `yaml:"telemetry"`
}

type rateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Parse reads a YAML config file. Environment references like ${ALTERLAB_API_KEY}
// are expanded before decoding.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return parse(data)
}

func parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Timeout < 0 || cfg.RetryDelay < 0 || cfg.MaxRetryDelay < 0 {
		return errors.New("durations must not be negative")
	}

	if cfg.MaxRetries != nil && *cfg.MaxRetries < 1 {
		return errors.New("max_retries must be at least 1")
	}

	if r := cfg.RateLimit; r != nil {
		if r.RPS <= 0 {
			return errors.New("rate_limit.rps must be positive")
		}

		if r.Burst < 0 {
			return errors.New("rate_limit.burst must not be negative")
		}
	}

	return nil
}

// Options converts the file into client options. Unset fields keep the
// client defaults, including the environment fallbacks.
func (cfg *Config) Options() []client.RequestOption {
	var opts []client.RequestOption

	if cfg.APIKey != "" {
		opts = append(opts, client.WithToken(cfg.APIKey))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, client.WithURL(cfg.BaseURL))
	}

	if cfg.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(cfg.UserAgent))
	}

	if cfg.Timeout > 0 {
		opts = append(opts, client.WithTimeout(cfg.Timeout))
	}

	if cfg.MaxRetries != nil {
		opts = append(opts, client.WithMaxRetries(*cfg.MaxRetries))
	}

	if cfg.RetryDelay > 0 {
		opts = append(opts, client.WithRetryDelay(cfg.RetryDelay))
	}

	if cfg.MaxRetryDelay > 0 {
		opts = append(opts, client.WithMaxRetryDelay(cfg.MaxRetryDelay))
	}

	if r := cfg.RateLimit; r != nil {
		burst := max(r.Burst, 1)
		opts = append(opts, client.WithRateLimiter(rate.NewLimiter(rate.Limit(r.RPS), burst)))
	}

	if cfg.Telemetry {
		opts = append(opts,
			client.WithTelemetry(),
			client.WithLogger(otel.NewLogger()),
		)
	}

	return opts
}

func (cfg *Config) NewClient(opts ...client.RequestOption) (*client.Client, error) {
	return client.New(append(cfg.Options(), opts...)...)
}
