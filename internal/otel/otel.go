package otel

import (
	"context"
	"sync"

	eventbus "github.com/graphfetch/graphfetch/internal/eventbus"
	events "github.com/graphfetch/graphfetch/internal/events"
	opid "github.com/graphfetch/graphfetch/internal/opid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := &subscriber{tracer: otel.Tracer("graphfetch")}
	sub.register()

	return tp.Shutdown, nil
}

type subscriber struct {
	tracer     trace.Tracer
	opSpans    sync.Map // opid -> trace.Span
	fetchSpans sync.Map // opid -> trace.Span
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.OperationStart) {
		id, _ := opid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "graphql.operation")
		span.SetAttributes(
			attribute.String("graphql.operation.type", e.Kind),
			attribute.String("graphql.cache.policy", e.Policy),
			attribute.String("graphql.cache.key", e.Key),
		)
		s.opSpans.Store(id, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.OperationFinish) {
		id, _ := opid.FromContext(ctx)
		v, ok := s.opSpans.LoadAndDelete(id)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Bool("graphql.cache.hit", e.CacheHit))
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.FetchStart) {
		id, _ := opid.FromContext(ctx)
		parent := ctx
		if v, ok := s.opSpans.Load(id); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "http.fetch")
		span.SetAttributes(
			semconv.HTTPMethodKey.String("POST"),
			semconv.HTTPURLKey.String(e.URL),
		)
		s.fetchSpans.Store(id, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.FetchFinish) {
		id, _ := opid.FromContext(ctx)
		v, ok := s.fetchSpans.LoadAndDelete(id)
		if !ok {
			return
		}
		span := v.(trace.Span)
		if e.Status > 0 {
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		}
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})
}
