package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alterlab/alterlab-go/pkg/otel"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var defaultHTTPClient = &http.Client{
	Transport: http.DefaultTransport,
}

type transport struct {
	cfg *RequestConfig

	client  *resty.Client
	metrics *otel.Metrics
}

func newTransport(cfg *RequestConfig) *transport {
	hc := cfg.Client

	if hc == nil {
		hc = defaultHTTPClient
	}

	client := resty.NewWithClient(hc).
		SetLogger(&restyLogger{cfg.Logger}).
		SetBaseURL(cfg.URL).
		SetHeader("X-API-Key", cfg.Token).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &transport{
		cfg: cfg,

		client:  client,
		metrics: otel.DefaultMetrics(),
	}
}

// retryPolicy advances the exponential series once per attempt, so waits stay
// RetryDelay * 2^attempt. A Retry-After header replaces a single wait without
// restarting the series.
type retryPolicy struct {
	exp   *backoff.ExponentialBackOff
	after *time.Duration
}

func newRetryPolicy(cfg *RequestConfig) *retryPolicy {
	return &retryPolicy{
		exp: &backoff.ExponentialBackOff{
			InitialInterval:     cfg.RetryDelay,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         cfg.MaxRetryDelay,
		},
	}
}

func (p *retryPolicy) retryAfter(d time.Duration) {
	p.after = &d
}

func (p *retryPolicy) NextBackOff() time.Duration {
	next := p.exp.NextBackOff()

	if p.after != nil {
		next = *p.after
		p.after = nil
	}

	return next
}

func (p *retryPolicy) Reset() {
	p.exp.Reset()
	p.after = nil
}

// route replaces ids in path with a template so span names and metric
// attributes stay bounded.
func route(path string) (string, []attribute.KeyValue) {
	if id, ok := strings.CutPrefix(path, "/api/v1/jobs/"); ok && id != "" {
		return "/api/v1/jobs/{id}", []attribute.KeyValue{
			attribute.String("alterlab.job_id", id),
		}
	}

	return path, nil
}

func (t *transport) Get(ctx context.Context, path string) ([]byte, int, error) {
	return t.do(ctx, http.MethodGet, path, nil)
}

func (t *transport) Post(ctx context.Context, path string, body any) ([]byte, int, error) {
	return t.do(ctx, http.MethodPost, path, body)
}

func (t *transport) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	tmpl, attrs := route(path)

	ctx, span := otel.Tracer().Start(ctx, "alterlab "+method+" "+tmpl,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", tmpl),
			attribute.String("url.path", path),
		),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	var data []byte

	if body != nil {
		var err error

		if data, err = json.Marshal(body); err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
	}

	logger := t.cfg.Logger
	policy := newRetryPolicy(t.cfg)

	attempt := 0

	operation := func() (*resty.Response, error) {
		attempt++

		if t.cfg.Limiter != nil {
			if err := t.cfg.Limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		reqID := uuid.NewString()
		start := time.Now()

		actx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()

		req := t.client.R().
			SetContext(actx).
			SetHeader("X-Request-ID", reqID)

		if data != nil {
			req.SetBody(data)
		}

		logger.DebugContext(ctx, "alterlab.http.request",
			"req_id", reqID,
			"method", method,
			"path", path,
			"attempt", attempt,
			"content_length", len(data),
		)

		resp, err := req.Execute(method, path)

		if err != nil {
			if cerr := context.Cause(ctx); cerr != nil {
				return nil, backoff.Permanent(cerr)
			}

			logger.WarnContext(ctx, "alterlab.http.send_error",
				"req_id", reqID,
				"method", method,
				"path", path,
				"attempt", attempt,
				"error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)

			return nil, &NetworkError{Err: err}
		}

		status := resp.StatusCode()

		t.metrics.RecordRequest(ctx, method, tmpl, status)

		logger.DebugContext(ctx, "alterlab.http.response",
			"req_id", reqID,
			"method", method,
			"path", path,
			"status", status,
			"bytes", len(resp.Body()),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)

		if status < http.StatusBadRequest {
			return resp, nil
		}

		err = newAPIError(status, resp.Header(), resp.Body())

		if !retryable(status) {
			return nil, backoff.Permanent(err)
		}

		if wait, ok := parseRetryAfter(resp.Header().Get("Retry-After")); ok {
			policy.retryAfter(wait)
		}

		return nil, err
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(t.cfg.MaxRetries)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			t.metrics.RecordRetry(ctx, method, tmpl)

			logger.InfoContext(ctx, "alterlab.http.retry",
				"method", method,
				"path", path,
				"attempt", attempt,
				"wait_ms", wait.Milliseconds(),
				"error", err,
			)
		}),
	)

	if err != nil {
		err = unwrapRetryError(err)

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, 0, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode()))

	return resp.Body(), resp.StatusCode(), nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func unwrapRetryError(err error) error {
	var permanent *backoff.PermanentError

	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	return err
}

type restyLogger struct {
	logger *slog.Logger
}

func (l *restyLogger) Errorf(format string, v ...any) {
	l.logger.Error("alterlab.resty: " + fmt.Sprintf(format, v...))
}

func (l *restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn("alterlab.resty: " + fmt.Sprintf(format, v...))
}

func (l *restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug("alterlab.resty: " + fmt.Sprintf(format, v...))
}
