package stripe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type dispatchMetrics struct {
	received metric.Int64Counter
	handled  metric.Int64Counter
	rejected metric.Int64Counter
	ignored  metric.Int64Counter
}

func newDispatchMetrics() dispatchMetrics {
	meter := otel.Meter("github.com/thepragmaticdev/meco/internal/webhooks/stripe")
	received, _ := meter.Int64Counter("meco.webhooks.stripe.received")
	handled, _ := meter.Int64Counter("meco.webhooks.stripe.handled")
	rejected, _ := meter.Int64Counter("meco.webhooks.stripe.rejected")
	ignored, _ := meter.Int64Counter("meco.webhooks.stripe.ignored")
	return dispatchMetrics{
		received: received,
		handled:  handled,
		rejected: rejected,
		ignored:  ignored,
	}
}

func (m dispatchMetrics) recordReceived(ctx context.Context) {
	m.received.Add(ctx, 1)
}

func (m dispatchMetrics) recordHandled(ctx context.Context, eventType string) {
	m.handled.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m dispatchMetrics) recordRejected(ctx context.Context, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m dispatchMetrics) recordIgnored(ctx context.Context, eventType string) {
	m.ignored.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}
