package client

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultURL = "https://api.alterlab.io"

	DefaultTimeout       = 120 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 1 * time.Second
	DefaultMaxRetryDelay = 30 * time.Second
)

type RequestConfig struct {
	URL   string
	Token string

	Client  *http.Client
	Logger  *slog.Logger
	Limiter *rate.Limiter

	UserAgent string

	Timeout time.Duration

	// MaxRetries is the total number of attempts made for a single call.
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	Telemetry bool
}

type RequestOption func(*RequestConfig)

func WithURL(url string) RequestOption {
	return func(c *RequestConfig) {
		c.URL = url
	}
}

func WithToken(token string) RequestOption {
	return func(c *RequestConfig) {
		c.Token = token
	}
}

func WithClient(client *http.Client) RequestOption {
	return func(c *RequestConfig) {
		c.Client = client
	}
}

func WithLogger(logger *slog.Logger) RequestOption {
	return func(c *RequestConfig) {
		c.Logger = logger
	}
}

// WithRateLimiter makes every attempt wait on the limiter before it is sent.
func WithRateLimiter(limiter *rate.Limiter) RequestOption {
	return func(c *RequestConfig) {
		c.Limiter = limiter
	}
}

func WithUserAgent(agent string) RequestOption {
	return func(c *RequestConfig) {
		c.UserAgent = agent
	}
}

func WithTimeout(timeout time.Duration) RequestOption {
	return func(c *RequestConfig) {
		c.Timeout = timeout
	}
}

func WithMaxRetries(retries int) RequestOption {
	return func(c *RequestConfig) {
		c.MaxRetries = retries
	}
}

func WithRetryDelay(delay time.Duration) RequestOption {
	return func(c *RequestConfig) {
		c.RetryDelay = delay
	}
}

func WithMaxRetryDelay(delay time.Duration) RequestOption {
	return func(c *RequestConfig) {
		c.MaxRetryDelay = delay
	}
}

// WithTelemetry wraps the HTTP transport with OpenTelemetry instrumentation.
// It only takes effect when passed to New.
func WithTelemetry() RequestOption {
	return func(c *RequestConfig) {
		c.Telemetry = true
	}
}

func newRequestConfig(opts ...RequestOption) *RequestConfig {
	c := &RequestConfig{
		UserAgent: "AlterLab-Go-SDK/" + Version,

		Timeout: DefaultTimeout,

		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.Token == "" {
		c.Token = os.Getenv("ALTERLAB_API_KEY")
	}

	if c.URL == "" {
		c.URL = os.Getenv("ALTERLAB_BASE_URL")
	}

	if c.URL == "" {
		c.URL = DefaultURL
	}

	c.URL = strings.TrimRight(c.URL, "/")

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.MaxRetries < 1 {
		c.MaxRetries = 1
	}

	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}

	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = c.RetryDelay
	}

	return c
}
