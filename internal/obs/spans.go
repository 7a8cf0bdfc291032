package obs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for tgcore spans.
var (
	AttrChatID      = attribute.Key("tgcore.chat.id")
	AttrMethod      = attribute.Key("tgcore.method")
	AttrUpdateID    = attribute.Key("tgcore.update.id")
	AttrOffset      = attribute.Key("tgcore.poller.offset")
	AttrFreezeUntil = attribute.Key("tgcore.throttle.freeze_until")
)

// StartSpan starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartClientSpan starts a span for an outbound Bot API call.
func StartClientSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
