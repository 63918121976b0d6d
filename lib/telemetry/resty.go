package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"libgal/lib/logging"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

type messageIDKey struct{}

type restyInstrument struct {
	tracer trace.Tracer
	logger *slog.Logger
	nextID *uint64
}

// InstrumentResty starts a span per request made through client. At debug
// level every request also gets a message id that ties the start and end
// log lines together.
func InstrumentResty(client *resty.Client, tracerName string, logger *slog.Logger) {
	var counter uint64
	i := restyInstrument{
		tracer: otel.Tracer(tracerName),
		logger: logging.Or(logger),
		nextID: &counter,
	}
	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

func (i restyInstrument) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx, _ := i.tracer.Start(req.Context(), req.Method)
	if i.logger.Enabled(ctx, slog.LevelDebug) {
		id := strconv.FormatUint(atomic.AddUint64(i.nextID, 1), 10)
		i.logger.DebugContext(ctx, "start request", "method", req.Method, "url", req.URL, "message_id", id)
		ctx = context.WithValue(ctx, messageIDKey{}, id)
	}
	req.SetContext(ctx)
	return nil
}

func (i restyInstrument) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()

	// RawRequest is still nil in onBeforeRequest
	span.SetName(fmt.Sprintf("http %s", res.Request.Method))
	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	span.SetAttributes(attribute.Int("http.response_size", len(res.Body())))
	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
	}

	if id, ok := ctx.Value(messageIDKey{}).(string); ok {
		i.logger.DebugContext(ctx, "request done",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"message_id", id,
		)
	}
	return nil
}

func (i restyInstrument) onError(req *resty.Request, err error) {
	ctx := req.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")
	span.SetName(fmt.Sprintf("http %s", req.Method))

	args := []any{"method", req.Method, "url", req.URL, "err", err}
	if id, ok := ctx.Value(messageIDKey{}).(string); ok {
		args = append(args, "message_id", id)
	}
	i.logger.ErrorContext(ctx, "request failed", args...)

	if req.RawRequest != nil {
		span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
	}
}
