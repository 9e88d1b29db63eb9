package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/jensholdgaard/zoo-auction/internal/config"
	"github.com/jensholdgaard/zoo-auction/internal/telemetry"
)

func TestNewNopProvider(t *testing.T) {
	p := telemetry.NewNopProvider()

	if p.TracerProvider == nil {
		t.Fatal("TracerProvider is nil")
	}
	if p.MeterProvider == nil {
		t.Fatal("MeterProvider is nil")
	}
	if p.LoggerProvider == nil {
		t.Fatal("LoggerProvider is nil")
	}
	if p.Logger == nil {
		t.Fatal("Logger is nil")
	}
}

func TestNopProvider_Shutdown(t *testing.T) {
	p := telemetry.NewNopProvider()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestSetup_Local(t *testing.T) {
	var buf bytes.Buffer
	p, err := telemetry.Setup(context.Background(), config.TelemetryConfig{
		ServiceName: "zoo-auction",
		LogLevel:    "warn",
	}, &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer func() { _ = p.Shutdown(context.Background()) }()

	p.Logger.Info("hidden")
	p.Logger.Warn("shown", slog.String("item_id", "1101"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "shown" || line["item_id"] != "1101" {
		t.Errorf("got log line %v", line)
	}
}

func TestSetup_BadLevel(t *testing.T) {
	_, err := telemetry.Setup(context.Background(), config.TelemetryConfig{LogLevel: "loud"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestLogWithTrace_NoSpan(t *testing.T) {
	logger := slog.Default()
	if got := telemetry.LogWithTrace(context.Background(), logger); got != logger {
		t.Error("LogWithTrace() without a span should return the same logger")
	}
}

func TestLogWithTrace_WithSpan(t *testing.T) {
	p := telemetry.NewNopProvider()
	ctx, span := p.TracerProvider.Tracer("test").Start(context.Background(), "test-span")
	defer span.End()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	telemetry.LogWithTrace(ctx, logger).Info("bid accepted")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal(err)
	}
	if line["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("got trace_id %v, want %s", line["trace_id"], span.SpanContext().TraceID())
	}
	if line["span_id"] == nil {
		t.Error("span_id missing")
	}
}
