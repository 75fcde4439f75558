package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Metrics holds all application metrics
type Metrics struct {
	enabled bool
	meter   metric.Meter

	// Cache metrics
	CacheLookups metric.Int64Counter
	CacheEntries metric.Int64Gauge

	// Refresh metrics
	Refreshes        metric.Int64Counter
	RefreshDuration  metric.Float64Histogram
	RefreshesDropped metric.Int64Counter

	// Validation metrics
	ValidationRejects metric.Int64Counter

	// Confidence metrics
	ConfidenceServed metric.Int64Counter

	// Store query metrics
	Queries       metric.Int64Counter
	QueryDuration metric.Float64Histogram

	// Publish metrics
	PublishCalls    metric.Int64Counter
	PublishDuration metric.Float64Histogram

	// Subscriber bus metrics
	SubscriberNotifies metric.Int64Counter
	SubscriberPanics   metric.Int64Counter

	// Circuit breaker metrics
	CircuitBreakerState metric.Int64Gauge

	// Error metrics
	Errors metric.Int64Counter
}

// NewMetrics creates a new Metrics instance. When disabled, all recording
// methods are no-ops.
func NewMetrics(serviceName string, enabled bool) (*Metrics, error) {
	if !enabled {
		return &Metrics{}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	m := &Metrics{
		enabled: true,
		meter:   provider.Meter(serviceName),
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

// initMetrics initializes all metric instruments
func (m *Metrics) initMetrics() error {
	var err error

	m.CacheLookups, err = m.meter.Int64Counter(
		"pricing.cache.lookups",
		metric.WithDescription("Cache lookups by freshness classification"),
	)
	if err != nil {
		return err
	}

	m.CacheEntries, err = m.meter.Int64Gauge(
		"pricing.cache.entries",
		metric.WithDescription("Current number of cached price entries"),
	)
	if err != nil {
		return err
	}

	m.Refreshes, err = m.meter.Int64Counter(
		"pricing.refreshes",
		metric.WithDescription("Fetch-and-cache executions by trigger and status"),
	)
	if err != nil {
		return err
	}

	m.RefreshDuration, err = m.meter.Float64Histogram(
		"pricing.refresh.duration",
		metric.WithDescription("Fetch-and-cache duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.RefreshesDropped, err = m.meter.Int64Counter(
		"pricing.refreshes.dropped",
		metric.WithDescription("Background refreshes dropped due to a saturated queue"),
	)
	if err != nil {
		return err
	}

	m.ValidationRejects, err = m.meter.Int64Counter(
		"pricing.validation.rejects",
		metric.WithDescription("Price values rejected by validation"),
	)
	if err != nil {
		return err
	}

	m.ConfidenceServed, err = m.meter.Int64Counter(
		"pricing.confidence.served",
		metric.WithDescription("Confidence level of served price records"),
	)
	if err != nil {
		return err
	}

	m.Queries, err = m.meter.Int64Counter(
		"pricing.store.queries",
		metric.WithDescription("Row store queries by table and status"),
	)
	if err != nil {
		return err
	}

	m.QueryDuration, err = m.meter.Float64Histogram(
		"pricing.store.query.duration",
		metric.WithDescription("Row store query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.PublishCalls, err = m.meter.Int64Counter(
		"pricing.publish.calls",
		metric.WithDescription("Price update publish attempts by target and status"),
	)
	if err != nil {
		return err
	}

	m.PublishDuration, err = m.meter.Float64Histogram(
		"pricing.publish.duration",
		metric.WithDescription("Price update publish duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.SubscriberNotifies, err = m.meter.Int64Counter(
		"pricing.subscribers.notified",
		metric.WithDescription("Subscriber callbacks invoked after cache writes"),
	)
	if err != nil {
		return err
	}

	m.SubscriberPanics, err = m.meter.Int64Counter(
		"pricing.subscribers.panics",
		metric.WithDescription("Subscriber callbacks that panicked and were isolated"),
	)
	if err != nil {
		return err
	}

	m.CircuitBreakerState, err = m.meter.Int64Gauge(
		"pricing.circuit_breaker.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return err
	}

	m.Errors, err = m.meter.Int64Counter(
		"pricing.errors",
		metric.WithDescription("Errors by category and severity"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordCacheLookup records a cache lookup with its freshness classification
func (m *Metrics) RecordCacheLookup(ctx context.Context, freshness string) {
	if !m.enabled {
		return
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("freshness", freshness)))
}

// SetCacheEntries records the current cache entry count
func (m *Metrics) SetCacheEntries(ctx context.Context, count int64) {
	if !m.enabled {
		return
	}
	m.CacheEntries.Record(ctx, count)
}

// RecordRefresh records a fetch-and-cache execution
func (m *Metrics) RecordRefresh(ctx context.Context, trigger, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("trigger", trigger),
		attribute.String("status", status),
	}
	m.Refreshes.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.RefreshDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordRefreshDropped records a background refresh dropped at submission
func (m *Metrics) RecordRefreshDropped(ctx context.Context) {
	if !m.enabled {
		return
	}
	m.RefreshesDropped.Add(ctx, 1)
}

// RecordValidationReject records a rejected price value
func (m *Metrics) RecordValidationReject(ctx context.Context, reason string) {
	if !m.enabled {
		return
	}
	m.ValidationRejects.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordConfidence records the confidence level of a served record
func (m *Metrics) RecordConfidence(ctx context.Context, level string) {
	if !m.enabled {
		return
	}
	m.ConfidenceServed.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}

// RecordQuery records a row store query
func (m *Metrics) RecordQuery(ctx context.Context, table, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("table", table),
		attribute.String("status", status),
	}
	m.Queries.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.QueryDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordPublish records a price update publish attempt
func (m *Metrics) RecordPublish(ctx context.Context, target, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("target", target),
		attribute.String("status", status),
	}
	m.PublishCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.PublishDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordSubscriberNotify records subscriber callbacks invoked for one broadcast
func (m *Metrics) RecordSubscriberNotify(ctx context.Context, count int64) {
	if !m.enabled {
		return
	}
	m.SubscriberNotifies.Add(ctx, count)
}

// RecordSubscriberPanic records an isolated subscriber panic
func (m *Metrics) RecordSubscriberPanic(ctx context.Context) {
	if !m.enabled {
		return
	}
	m.SubscriberPanics.Add(ctx, 1)
}

// SetCircuitBreakerState sets circuit breaker state
// 0 = closed, 1 = open, 2 = half-open
func (m *Metrics) SetCircuitBreakerState(ctx context.Context, service string, state int64) {
	if !m.enabled {
		return
	}
	m.CircuitBreakerState.Record(ctx, state, metric.WithAttributes(attribute.String("service", service)))
}

// RecordError records an error by category and severity
func (m *Metrics) RecordError(ctx context.Context, category, severity string) {
	if !m.enabled {
		return
	}
	m.Errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("severity", severity),
	))
}

// Handler returns the HTTP handler for Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
