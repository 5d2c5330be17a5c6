package proxy

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codewandler/actorbus/core/envelope"
)

const tracerName = "github.com/codewandler/actorbus/core/proxy"

func startSpan(ctx context.Context, name string, kind trace.SpanKind, req envelope.Request) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(tracerName).Start(
		ctx,
		name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("actorbus.urn", req.ActorURN),
			attribute.String("actorbus.message_type", req.MessageType),
			attribute.String("actorbus.message_id", req.MessageID),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
