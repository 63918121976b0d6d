package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"libgal/lib/logging"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		provider.Shutdown(context.Background())
	})
	return recorder
}

func TestInstrumentResty(t *testing.T) {
	recorder := recordSpans(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := resty.New().SetBaseURL(server.URL)
	InstrumentResty(client, "libgal/test", logging.Discard())

	res, err := client.R().Get("/")
	require.NoError(t, err)
	require.Equal(t, "ok", res.String())
	_, err = client.R().Get("/missing")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "http GET", spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestInstrumentRestyError(t *testing.T) {
	recorder := recordSpans(t)
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := resty.New()
	InstrumentResty(client, "libgal/test", logging.Discard())
	_, err := client.R().Get(server.URL)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestSetupWithoutEndpoints(t *testing.T) {
	tel, err := Setup(context.Background(), "libgal-test", Config{}, logging.Discard())
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestExporterTarget(t *testing.T) {
	target, err := OtlpConnConfig{
		GrpcEndpoint: "http://collector:4317",
		HttpEndpoint: "http://collector:4318/v1/traces",
		Headers:      map[string]string{"x-api-key": "k"},
		Insecure:     true,
		Compression:  "gzip",
	}.target()
	require.NoError(t, err)
	require.Equal(t, exporterTarget{
		protocol: protocolGRPC,
		endpoint: "http://collector:4317",
		headers:  map[string]string{"x-api-key": "k"},
		insecure: true,
		gzip:     true,
	}, target)

	target, err = OtlpConnConfig{HttpEndpoint: "https://collector/v1/metrics"}.target()
	require.NoError(t, err)
	require.Equal(t, protocolHTTP, target.protocol)
	require.False(t, target.gzip)

	_, err = OtlpConnConfig{HttpEndpoint: "https://collector", Compression: "zstd"}.target()
	require.ErrorContains(t, err, `unsupported otlp compression "zstd"`)
}

func TestIntervals(t *testing.T) {
	require.Equal(t, 5*time.Second, Config{}.metricInterval())
	require.Equal(t, time.Minute, Config{MetricInterval: 60}.metricInterval())
	require.Equal(t, 30*time.Second, Config{}.processInterval())
	require.Equal(t, 10*time.Second, Config{ProcessInterval: 10}.processInterval())
	require.Zero(t, Config{ProcessInterval: -1}.processInterval())
}

func TestSetupHttpTraces(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	config := Config{Otlp: OtlpConfig{Traces: OtlpConnConfig{HttpEndpoint: collector.URL + "/v1/traces"}}}
	tel, err := Setup(context.Background(), "libgal-test", config, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.Equal(t, config, tel.Config)

	_, span := otel.Tracer("libgal/test").Start(context.Background(), "load")
	span.End()
	require.NoError(t, tel.Shutdown(context.Background()))

	_, err = Setup(context.Background(), "libgal-test", Config{Otlp: OtlpConfig{
		Traces: OtlpConnConfig{HttpEndpoint: collector.URL, Compression: "lz4"},
	}}, logging.Discard())
	require.Error(t, err)
}

func TestSampleProcess(t *testing.T) {
	sample, err := SampleProcess(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.Positive(t, sample.RSSBytes)
	require.Positive(t, sample.HeapBytes)
	require.Positive(t, sample.Goroutines)
	require.GreaterOrEqual(t, sample.CPUPercent, 0.0)
	require.InDelta(t, 50, sample.HostMemPercent, 50)
}

func TestProcessGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	gauges, err := newProcessGauges(provider.Meter("libgal/test"))
	require.NoError(t, err)
	gauges.record(context.Background(), ProcessSample{CPUPercent: 12.5, RSSBytes: 2048, HeapBytes: 1024, Goroutines: 4, HostMemPercent: 40})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	values := map[string]any{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch data := m.Data.(type) {
		case metricdata.Gauge[int64]:
			values[m.Name] = data.DataPoints[0].Value
		case metricdata.Gauge[float64]:
			values[m.Name] = data.DataPoints[0].Value
		}
	}
	require.Equal(t, map[string]any{
		"libgal.process.cpu":        12.5,
		"libgal.process.rss":        int64(2048),
		"libgal.process.heap":       int64(1024),
		"libgal.process.goroutines": int64(4),
		"libgal.host.memory_used":   40.0,
	}, values)
}
