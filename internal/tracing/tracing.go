// Package tracing wires up the process-wide OpenTelemetry TracerProvider,
// offers StartRPCSpan for wrapping a node-to-node RPC in a span, and feeds
// trace/span ids into httpkit's structured logger via a TraceExtractor.
// Nothing in chatmesh calls StartRPCSpan, so request logs carry trace ids
// only when a span is already on the request context.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatmesh/chatmesh/internal/httpkit"
)

// ServiceName is the span resource attribute every chatmesh node reports.
const ServiceName = "chatmesh-node"

// Provider wraps a sdktrace.TracerProvider for lifecycle management. Without
// a span exporter wired in (the corpus pulls in no otel exporter package)
// spans are created, sampled, and discarded on End — useful for in-process
// parent/child correlation and for feeding request logs, not for shipping
// traces anywhere. Swapping in a real exporter later is an
// sdktrace.WithBatcher(exp) option away.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup installs a process-wide TracerProvider and registers it with the
// global otel package so any component can call otel.Tracer(name).
func Setup(selfID int) *Provider {
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", ServiceName),
		attribute.Int("chatmesh.server_id", selfID),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}
}

// Shutdown flushes and releases the TracerProvider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

// Tracer returns a named tracer off the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartRPCSpan starts a span named for an inbound or outbound node RPC,
// tagging it with the peer server id.
func StartRPCSpan(ctx context.Context, rpcName string, peerID int) (context.Context, trace.Span) {
	ctx, span := Tracer("chatmesh/cluster").Start(ctx, fmt.Sprintf("rpc.%s", rpcName))
	span.SetAttributes(attribute.Int("chatmesh.peer_id", peerID))
	return ctx, span
}

// Extractor is an httpkit.TraceExtractor that reads the active span out of
// ctx, for correlating request logs with spans.
func Extractor(ctx context.Context) (traceID, spanID string, sampled bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), sc.IsSampled()
}

var _ httpkit.TraceExtractor = Extractor
