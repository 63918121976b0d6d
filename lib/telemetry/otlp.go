package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	defaultMetricInterval = 5 * time.Second
	exporterDialTimeout   = 3 * time.Second
)

// newResource describes the running job. Process arguments are left out,
// they may carry connection strings. OTEL_RESOURCE_ATTRIBUTES overrides the
// service name.
func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	r, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithProcessPID(),
		resource.WithProcessExecutableName(),
		resource.WithProcessRuntimeVersion(),
	)
	if errors.Is(err, resource.ErrPartialResource) {
		return r, nil
	}
	return r, err
}

type protocol string

const (
	protocolGRPC protocol = "grpc"
	protocolHTTP protocol = "http"
)

// exporterTarget is the connection of one signal, the grpc endpoint wins
// when both are set.
type exporterTarget struct {
	protocol protocol
	endpoint string
	headers  map[string]string
	insecure bool
	gzip     bool
}

func (c OtlpConnConfig) target() (exporterTarget, error) {
	t := exporterTarget{
		protocol: protocolHTTP,
		endpoint: c.HttpEndpoint,
		headers:  c.Headers,
		insecure: c.Insecure,
	}
	if c.GrpcEndpoint != "" {
		t.protocol, t.endpoint = protocolGRPC, c.GrpcEndpoint
	}
	switch c.Compression {
	case "", "none":
	case "gzip":
		t.gzip = true
	default:
		return t, fmt.Errorf("unsupported otlp compression %q", c.Compression)
	}
	return t, nil
}

func (t exporterTarget) log(logger *slog.Logger, signal string) {
	logger.Info("otlp exporter initialized",
		"signal", signal,
		"type", string(t.protocol),
		"endpoint", t.endpoint,
		"headers", len(t.headers) > 0,
		"insecure", t.insecure,
	)
}

func newSpanExporter(ctx context.Context, t exporterTarget) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	if t.protocol == protocolGRPC {
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpointURL(t.endpoint),
			otlptracegrpc.WithHeaders(t.headers),
		}
		if t.insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if t.gzip {
			opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
		}
		return otlptracegrpc.New(ctx, opts...)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(t.endpoint),
		otlptracehttp.WithHeaders(t.headers),
	}
	if t.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if t.gzip {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	return otlptracehttp.New(ctx, opts...)
}

func newMetricExporter(ctx context.Context, t exporterTarget) (metric.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	if t.protocol == protocolGRPC {
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpointURL(t.endpoint),
			otlpmetricgrpc.WithHeaders(t.headers),
		}
		if t.insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		if t.gzip {
			opts = append(opts, otlpmetricgrpc.WithCompressor("gzip"))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(t.endpoint),
		otlpmetrichttp.WithHeaders(t.headers),
	}
	if t.insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if t.gzip {
		opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
	}
	return otlpmetrichttp.New(ctx, opts...)
}

// newTraceProvider batches spans. Jobs are short lived, Shutdown flushes
// whatever the batcher still holds.
func newTraceProvider(ctx context.Context, r *resource.Resource, c OtlpConnConfig, logger *slog.Logger) (*trace.TracerProvider, error) {
	target, err := c.target()
	if err != nil {
		return nil, err
	}
	exporter, err := newSpanExporter(ctx, target)
	if err != nil {
		return nil, err
	}
	target.log(logger, "traces")
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
	), nil
}

func newMetricProvider(ctx context.Context, r *resource.Resource, config Config, logger *slog.Logger) (*metric.MeterProvider, error) {
	target, err := config.Otlp.Metrics.target()
	if err != nil {
		return nil, err
	}
	exporter, err := newMetricExporter(ctx, target)
	if err != nil {
		return nil, err
	}
	target.log(logger, "metrics")
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(config.metricInterval()))),
		metric.WithResource(r),
	), nil
}
