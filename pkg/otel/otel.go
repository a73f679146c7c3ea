package otel

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/alterlab/alterlab-go"

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

func Transport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base)
}

// NewLogger returns a slog logger that writes to the global OpenTelemetry log provider.
func NewLogger() *slog.Logger {
	return otelslog.NewLogger(instrumentationName)
}

type Metrics struct {
	requests metric.Int64Counter
	retries  metric.Int64Counter
	credits  metric.Int64Counter
}

func NewMetrics(meter metric.Meter) *Metrics {
	requests, _ := meter.Int64Counter("alterlab.client.requests",
		metric.WithDescription("HTTP attempts sent to the AlterLab API"),
	)

	retries, _ := meter.Int64Counter("alterlab.client.retries",
		metric.WithDescription("Attempts that were retried after a transient failure"),
	)

	credits, _ := meter.Int64Counter("alterlab.client.credits",
		metric.WithDescription("Credits billed for completed scrapes"),
	)

	return &Metrics{
		requests: requests,
		retries:  retries,
		credits:  credits,
	}
}

var metrics = sync.OnceValue(func() *Metrics {
	return NewMetrics(otel.Meter(instrumentationName))
})

func DefaultMetrics() *Metrics {
	return metrics()
}

func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int) {
	if m.requests == nil {
		return
	}

	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	))
}

func (m *Metrics) RecordRetry(ctx context.Context, method, route string) {
	if m.retries == nil {
		return
	}

	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
	))
}

func (m *Metrics) RecordCredits(ctx context.Context, tier string, credits int) {
	if m.credits == nil || credits <= 0 {
		return
	}

	m.credits.Add(ctx, int64(credits), metric.WithAttributes(
		attribute.String("alterlab.tier", tier),
	))
}
