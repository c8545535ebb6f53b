package observability

import (
	"context"
	"testing"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/config"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

func TestFieldsCarryTraceContext(t *testing.T) {
	InstallPropagator()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	fields := InjectFields(ctx, map[string]string{"order_id": "o-1"})
	if fields["traceparent"] == "" {
		t.Fatalf("traceparent not injected: %v", fields)
	}
	if fields["order_id"] != "o-1" {
		t.Fatalf("existing field lost: %v", fields)
	}

	got := trace.SpanContextFromContext(ExtractFields(context.Background(), fields))
	if got.TraceID() != traceID {
		t.Fatalf("trace id = %s, want %s", got.TraceID(), traceID)
	}
	if !got.IsRemote() {
		t.Fatal("extracted span context should be remote")
	}
}

func TestInjectFieldsAllocatesNilMap(t *testing.T) {
	InstallPropagator()
	if fields := InjectFields(context.Background(), nil); fields == nil {
		t.Fatal("expected allocated map")
	}
}

func TestSetupIsNoopWithoutEndpoint(t *testing.T) {
	cfg := &config.Config{ServiceName: config.PaymentServiceName}
	ctx := context.Background()

	logShutdown, err := SetupLoggingSDK(ctx, cfg)
	if err != nil {
		t.Fatalf("logging setup: %v", err)
	}
	tp, traceShutdown, err := SetupTracingSDK(ctx, cfg)
	if err != nil {
		t.Fatalf("tracing setup: %v", err)
	}
	if tp != nil {
		t.Fatal("tracer provider should not be installed without an endpoint")
	}
	metricShutdown, err := SetupMetricsSDK(ctx, cfg)
	if err != nil {
		t.Fatalf("metrics setup: %v", err)
	}
	if err := JoinShutdown(logShutdown, traceShutdown, metricShutdown, nil)(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewLoggerBuilds(t *testing.T) {
	logger := NewLogger(config.PaymentServiceName, zapcore.WarnLevel)
	if logger == nil {
		t.Fatal("expected logger")
	}
	var _ Logger = logger
}
