package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/flowkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	if log != nil {
		log.Info("meter initialized", map[string]any{
			"service":  config.ServiceName,
			"endpoint": config.Endpoint,
			"interval": config.Interval.String(),
		})
	}

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the engine's metric instruments.
type Metrics struct {
	runTotal     metric.Int64Counter
	runDuration  metric.Float64Histogram
	stepActive   metric.Int64UpDownCounter
	stepTotal    metric.Int64Counter
	stepDuration metric.Float64Histogram
	stepRetries  metric.Int64Counter
	cacheHits    metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runTotal, err := meter.Int64Counter("run.total",
		metric.WithDescription("Total number of pipeline runs by final state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating run.total counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram("run.duration",
		metric.WithDescription("Duration of pipeline runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating run.duration histogram: %w", err)
	}

	stepActive, err := meter.Int64UpDownCounter("step.active",
		metric.WithDescription("Number of steps currently executing"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step.active gauge: %w", err)
	}

	stepTotal, err := meter.Int64Counter("step.total",
		metric.WithDescription("Total number of step executions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step.total counter: %w", err)
	}

	stepDuration, err := meter.Float64Histogram("step.duration",
		metric.WithDescription("Duration of step executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step.duration histogram: %w", err)
	}

	stepRetries, err := meter.Int64Counter("step.retries",
		metric.WithDescription("Total step retry attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step.retries counter: %w", err)
	}

	cacheHits, err := meter.Int64Counter("step.cache_hits",
		metric.WithDescription("Step executions answered from the result cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step.cache_hits counter: %w", err)
	}

	return &Metrics{
		runTotal:     runTotal,
		runDuration:  runDuration,
		stepActive:   stepActive,
		stepTotal:    stepTotal,
		stepDuration: stepDuration,
		stepRetries:  stepRetries,
		cacheHits:    cacheHits,
	}, nil
}

// RecordStepStart increments the active step count.
func (m *Metrics) RecordStepStart(ctx context.Context) {
	m.stepActive.Add(ctx, 1)
}

// RecordStepEnd records one finished step execution.
func (m *Metrics) RecordStepEnd(ctx context.Context, stepName, outcome string, duration time.Duration, cached bool, retries int) {
	attrs := metric.WithAttributes(
		attribute.String("step", stepName),
		attribute.String("outcome", outcome),
	)
	m.stepActive.Add(ctx, -1)
	m.stepTotal.Add(ctx, 1, attrs)
	m.stepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("step", stepName),
	))
	if cached {
		m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("step", stepName)))
	}
	if retries > 0 {
		m.stepRetries.Add(ctx, int64(retries), metric.WithAttributes(attribute.String("step", stepName)))
	}
}

// RecordRunEnd records one finished pipeline run.
func (m *Metrics) RecordRunEnd(ctx context.Context, pipeline, state string, duration time.Duration) {
	m.runTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("state", state),
	))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("pipeline", pipeline),
	))
}
