package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

var (
	// ErrSignatureVerification indicates the payload signature does not match
	// the endpoint secret. Nothing in the payload can be trusted.
	ErrSignatureVerification = errors.New("signature verification failed")
	// ErrDeserialization indicates a verified payload that does not parse
	// into the expected event shape.
	ErrDeserialization = errors.New("event deserialization failed")
	// ErrObjectMissing indicates a verified event without its embedded object.
	ErrObjectMissing = errors.New("event object missing")
)

// Event types this endpoint acts on. Everything else is acknowledged and
// dropped.
const (
	eventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	eventInvoicePaymentFailed    = "invoice.payment_failed"
	eventSubscriptionDeleted     = "customer.subscription.deleted"
)

// Collaborator is the billing side the dispatcher hands verified events to.
type Collaborator interface {
	SyncSubscription(ctx context.Context, customerRef, subscriptionRef string) error
	HandleDelinquentCustomer(ctx context.Context, customerRef, subscriptionRef string) error
}

// Handler verifies Stripe webhook deliveries and dispatches them. Signature
// verification always happens before any payload field is read.
type Handler struct {
	collaborator Collaborator
	secret       string
	metrics      dispatchMetrics
}

// NewHandler constructs a webhook handler bound to the endpoint secret.
func NewHandler(collaborator Collaborator, secret string) *Handler {
	return &Handler{
		collaborator: collaborator,
		secret:       secret,
		metrics:      newDispatchMetrics(),
	}
}

// HandleEvent verifies one delivery and routes it to the collaborator.
// Deliveries are processed at-most-once, a failed dispatch surfaces the error
// and relies on the sender to redeliver.
func (h *Handler) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	h.metrics.recordReceived(ctx)

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		kind := classifyConstructError(err)
		h.metrics.recordRejected(ctx, kind.Error())
		return fmt.Errorf("%w: %v", kind, err)
	}

	eventType := string(event.Type)
	switch eventType {
	case eventInvoicePaymentSucceeded, eventInvoicePaymentFailed:
		return h.dispatchInvoice(ctx, event, eventType)
	case eventSubscriptionDeleted:
		return h.dispatchSubscriptionDeleted(ctx, event)
	default:
		h.metrics.recordIgnored(ctx, eventType)
		slog.InfoContext(ctx, "webhook event ignored", slog.String("type", eventType))
		return nil
	}
}

func (h *Handler) dispatchInvoice(ctx context.Context, event stripeapi.Event, eventType string) error {
	var invoice stripeapi.Invoice
	if err := unmarshalObject(event, &invoice); err != nil {
		h.metrics.recordRejected(ctx, err.Error())
		return err
	}
	if invoice.Customer == nil || invoice.Customer.ID == "" ||
		invoice.Subscription == nil || invoice.Subscription.ID == "" {
		h.metrics.recordRejected(ctx, ErrObjectMissing.Error())
		return fmt.Errorf("%w: invoice without customer or subscription reference", ErrObjectMissing)
	}

	if err := h.collaborator.SyncSubscription(ctx, invoice.Customer.ID, invoice.Subscription.ID); err != nil {
		return fmt.Errorf("sync subscription: %w", err)
	}

	h.metrics.recordHandled(ctx, eventType)
	slog.InfoContext(ctx, "webhook event dispatched",
		slog.String("type", eventType),
		slog.String("customer", invoice.Customer.ID))
	return nil
}

func (h *Handler) dispatchSubscriptionDeleted(ctx context.Context, event stripeapi.Event) error {
	var subscription stripeapi.Subscription
	if err := unmarshalObject(event, &subscription); err != nil {
		h.metrics.recordRejected(ctx, err.Error())
		return err
	}
	if subscription.Customer == nil || subscription.Customer.ID == "" {
		h.metrics.recordRejected(ctx, ErrObjectMissing.Error())
		return fmt.Errorf("%w: subscription without customer reference", ErrObjectMissing)
	}

	if err := h.collaborator.HandleDelinquentCustomer(ctx, subscription.Customer.ID, subscription.ID); err != nil {
		return fmt.Errorf("handle delinquent customer: %w", err)
	}

	h.metrics.recordHandled(ctx, eventSubscriptionDeleted)
	slog.WarnContext(ctx, "subscription deleted",
		slog.String("customer", subscription.Customer.ID),
		slog.String("subscription", subscription.ID))
	return nil
}

func unmarshalObject(event stripeapi.Event, target any) error {
	if len(event.Data.Raw) == 0 {
		return fmt.Errorf("%w: no embedded object", ErrObjectMissing)
	}
	if err := json.Unmarshal(event.Data.Raw, target); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return nil
}

func classifyConstructError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrTooOld):
		return ErrSignatureVerification
	default:
		return ErrDeserialization
	}
}
