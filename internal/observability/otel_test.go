package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupOpenTelemetryDisabledIsNoop(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	shutdown, err := SetupOpenTelemetry(context.Background(), log, OpenTelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupOpenTelemetryConsoleMetrics(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	shutdown, err := SetupOpenTelemetry(context.Background(), log, OpenTelemetryConfig{
		Enabled:        true,
		ServiceName:    "meco",
		ServiceVer:     "test",
		Environment:    "test",
		MetricsConsole: true,
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestConfiguredSamplerBounds(t *testing.T) {
	t.Parallel()

	always := sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()
	never := sdktrace.ParentBased(sdktrace.NeverSample()).Description()

	if got := configuredSampler(1.5).Description(); got != always {
		t.Fatalf("expected always sampler above 1, got %q", got)
	}
	if got := configuredSampler(-0.1).Description(); got != never {
		t.Fatalf("expected never sampler below 0, got %q", got)
	}
	if got := configuredSampler(0.5).Description(); got == always || got == never {
		t.Fatalf("expected ratio sampler for 0.5, got %q", got)
	}
}
