package tracing

import (
	"context"
	"testing"
)

func TestSetup_ShutdownRoundTrip(t *testing.T) {
	p := Setup(1)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestStartRPCSpan_ReturnsValidSpan(t *testing.T) {
	Setup(1)
	ctx, span := StartRPCSpan(context.Background(), "Heartbeat", 2)
	defer span.End()

	traceID, spanID, _ := Extractor(ctx)
	if traceID == "" || spanID == "" {
		t.Fatalf("expected non-empty trace/span ids, got %q %q", traceID, spanID)
	}
}

func TestExtractor_NoActiveSpan(t *testing.T) {
	traceID, spanID, sampled := Extractor(context.Background())
	if traceID != "" || spanID != "" || sampled {
		t.Fatalf("expected zero values for context with no span, got %q %q %v", traceID, spanID, sampled)
	}
}
