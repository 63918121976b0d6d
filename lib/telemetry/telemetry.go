// Package telemetry wires OpenTelemetry traces and metrics to an OTLP
// collector. Without Setup every instrument in libgal is a no-op.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"libgal/lib/configutil"
	"libgal/lib/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ConfigFile is looked up from the working directory upwards by SetupFromEnv.
const ConfigFile = "telemetry.json5"

type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	// Config is the configuration Setup ran with.
	Config Config
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type OtlpConnConfig struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
	// Insecure disables TLS, for collectors running next to the job.
	Insecure bool `json:"insecure"`
	// Compression is "gzip" or empty.
	Compression string `json:"compression"`
}

func (c OtlpConnConfig) configured() bool {
	return c.GrpcEndpoint != "" || c.HttpEndpoint != ""
}

type OtlpConfig struct {
	Traces  OtlpConnConfig `json:"traces"`
	Metrics OtlpConnConfig `json:"metrics"`
}

type Config struct {
	Otlp OtlpConfig `json:"otlp"`
	// MetricInterval is the export period in seconds, 5 when unset.
	MetricInterval int `json:"metric_interval"`
	// ProcessInterval is the process sampling period in seconds, 30 when
	// unset and disabled when negative.
	ProcessInterval int `json:"process_interval"`
}

func (c Config) metricInterval() time.Duration {
	if c.MetricInterval > 0 {
		return time.Duration(c.MetricInterval) * time.Second
	}
	return defaultMetricInterval
}

func (c Config) processInterval() time.Duration {
	switch {
	case c.ProcessInterval < 0:
		return 0
	case c.ProcessInterval == 0:
		return defaultProcessInterval
	}
	return time.Duration(c.ProcessInterval) * time.Second
}

// SetupFromEnv searches up the filesystem from the working directory for
// telemetry.json5 and sets telemetry up with it.
func SetupFromEnv(ctx context.Context, serviceName string, logger *slog.Logger) (Telemetry, error) {
	config, path, err := configutil.ReadRecursively[Config](ConfigFile)
	if err != nil {
		return Telemetry{}, err
	}
	configutil.ExpandEnv(&config, nil)
	logging.Or(logger).Info("telemetry config loaded", "path", path)
	return Setup(ctx, serviceName, config, logger)
}

// Setup installs global tracer and meter providers. Signals without an
// endpoint are left on the no-op providers.
func Setup(ctx context.Context, serviceName string, config Config, logger *slog.Logger) (Telemetry, error) {
	logger = logging.Or(logger)
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(ctx, serviceName)
	if err != nil {
		return Telemetry{}, err
	}

	tel := Telemetry{Config: config}
	if config.Otlp.Traces.configured() {
		tel.TracerProvider, err = newTraceProvider(ctx, r, config.Otlp.Traces, logger)
		if err != nil {
			return Telemetry{}, err
		}
		otel.SetTracerProvider(tel.TracerProvider)
	}
	if config.Otlp.Metrics.configured() {
		tel.MeterProvider, err = newMetricProvider(ctx, r, config, logger)
		if err != nil {
			tel.Shutdown(ctx)
			return Telemetry{}, err
		}
		otel.SetMeterProvider(tel.MeterProvider)
	}
	return tel, nil
}
