package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

const testSecret = "whsec_test_secret"

type collaboratorCall struct {
	method       string
	customer     string
	subscription string
}

type fakeCollaborator struct {
	calls   []collaboratorCall
	syncErr error
}

func (f *fakeCollaborator) SyncSubscription(_ context.Context, customerRef, subscriptionRef string) error {
	f.calls = append(f.calls, collaboratorCall{method: "sync", customer: customerRef, subscription: subscriptionRef})
	return f.syncErr
}

func (f *fakeCollaborator) HandleDelinquentCustomer(_ context.Context, customerRef, subscriptionRef string) error {
	f.calls = append(f.calls, collaboratorCall{method: "delinquent", customer: customerRef, subscription: subscriptionRef})
	return nil
}

// signPayload produces a Stripe-Signature header value for the payload.
func signPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func invoiceEvent(eventType string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": %q,
		"data": {
			"object": {
				"id": "in_1",
				"object": "invoice",
				"customer": "cus_123",
				"subscription": "sub_456"
			}
		}
	}`, eventType))
}

func TestHandleEventDispatchesInvoiceEvents(t *testing.T) {
	t.Parallel()

	for _, eventType := range []string{"invoice.payment_succeeded", "invoice.payment_failed"} {
		t.Run(eventType, func(t *testing.T) {
			t.Parallel()

			collaborator := &fakeCollaborator{}
			handler := NewHandler(collaborator, testSecret)
			payload := invoiceEvent(eventType)

			err := handler.HandleEvent(context.Background(), payload, signPayload(payload, testSecret, time.Now()))
			if err != nil {
				t.Fatalf("handle event: %v", err)
			}

			if len(collaborator.calls) != 1 {
				t.Fatalf("unexpected call count: %d", len(collaborator.calls))
			}
			call := collaborator.calls[0]
			if call.method != "sync" || call.customer != "cus_123" || call.subscription != "sub_456" {
				t.Fatalf("unexpected dispatch: %+v", call)
			}
		})
	}
}

func TestHandleEventDispatchesSubscriptionDeleted(t *testing.T) {
	t.Parallel()

	collaborator := &fakeCollaborator{}
	handler := NewHandler(collaborator, testSecret)
	payload := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.deleted",
		"data": {
			"object": {
				"id": "sub_456",
				"object": "subscription",
				"customer": "cus_123"
			}
		}
	}`)

	err := handler.HandleEvent(context.Background(), payload, signPayload(payload, testSecret, time.Now()))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(collaborator.calls) != 1 {
		t.Fatalf("unexpected call count: %d", len(collaborator.calls))
	}
	call := collaborator.calls[0]
	if call.method != "delinquent" || call.customer != "cus_123" || call.subscription != "sub_456" {
		t.Fatalf("unexpected dispatch: %+v", call)
	}
}

func TestHandleEventRejectsBadSignatureBeforeDispatch(t *testing.T) {
	t.Parallel()

	collaborator := &fakeCollaborator{}
	handler := NewHandler(collaborator, testSecret)
	payload := invoiceEvent("invoice.payment_succeeded")

	err := handler.HandleEvent(context.Background(), payload, signPayload(payload, "whsec_wrong_secret", time.Now()))
	if !errors.Is(err, ErrSignatureVerification) {
		t.Fatalf("unexpected error for bad signature: %v", err)
	}
	if len(collaborator.calls) != 0 {
		t.Fatalf("collaborator invoked despite bad signature: %+v", collaborator.calls)
	}
}

func TestHandleEventRejectsStaleTimestamp(t *testing.T) {
	t.Parallel()

	handler := NewHandler(&fakeCollaborator{}, testSecret)
	payload := invoiceEvent("invoice.payment_succeeded")

	err := handler.HandleEvent(context.Background(), payload, signPayload(payload, testSecret, time.Now().Add(-time.Hour)))
	if !errors.Is(err, ErrSignatureVerification) {
		t.Fatalf("unexpected error for stale signature: %v", err)
	}
}

func TestHandleEventRejectsMissingHeader(t *testing.T) {
	t.Parallel()

	collaborator := &fakeCollaborator{}
	handler := NewHandler(collaborator, testSecret)

	err := handler.HandleEvent(context.Background(), invoiceEvent("invoice.payment_succeeded"), "")
	if !errors.Is(err, ErrSignatureVerification) {
		t.Fatalf("unexpected error for missing header: %v", err)
	}
	if len(collaborator.calls) != 0 {
		t.Fatalf("collaborator invoked despite missing header")
	}
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	t.Parallel()

	collaborator := &fakeCollaborator{}
	handler := NewHandler(collaborator, testSecret)
	payload := []byte(`{
		"id": "evt_3",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1", "object": "charge"}}
	}`)

	err := handler.HandleEvent(context.Background(), payload, signPayload(payload, testSecret, time.Now()))
	if err != nil {
		t.Fatalf("unknown event type must be acknowledged: %v", err)
	}
	if len(collaborator.calls) != 0 {
		t.Fatalf("collaborator invoked for unknown event type: %+v", collaborator.calls)
	}
}

func TestHandleEventRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	handler := NewHandler(&fakeCollaborator{}, testSecret)
	payload := []byte(`{"id": "evt_4", "type": `)

	err := handler.HandleEvent(context.Background(), payload, signPayload(payload, testSecret, time.Now()))
	if !errors.Is(err, ErrDeserialization) {
		t.Fatalf("unexpected error for malformed payload: %v", err)
	}
}

func TestHandleEventRejectsInvoiceWithoutReferences(t *testing.T) {
	t.Parallel()

	collaborator := &fakeCollaborator{}
	handler := NewHandler(collaborator, testSecret)
	payload := []byte(`{
		"id": "evt_5",
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_1", "object": "invoice"}}
	}`)

	err := handler.HandleEvent(context.Background(), payload, signPayload(payload, testSecret, time.Now()))
	if !errors.Is(err, ErrObjectMissing) {
		t.Fatalf("unexpected error for invoice without references: %v", err)
	}
	if len(collaborator.calls) != 0 {
		t.Fatalf("collaborator invoked without references")
	}
}

func TestHandleEventRedeliveryDispatchesAgain(t *testing.T) {
	t.Parallel()

	collaborator := &fakeCollaborator{}
	handler := NewHandler(collaborator, testSecret)
	payload := invoiceEvent("invoice.payment_succeeded")

	for i := 0; i < 2; i++ {
		signature := signPayload(payload, testSecret, time.Now())
		if err := handler.HandleEvent(context.Background(), payload, signature); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	// No dedup here: the billing side owns idempotency.
	if len(collaborator.calls) != 2 {
		t.Fatalf("expected one dispatch per delivery, got %d", len(collaborator.calls))
	}
}

func TestHandleEventPropagatesCollaboratorFailure(t *testing.T) {
	t.Parallel()

	syncErr := errors.New("billing unavailable")
	handler := NewHandler(&fakeCollaborator{syncErr: syncErr}, testSecret)
	payload := invoiceEvent("invoice.payment_succeeded")

	err := handler.HandleEvent(context.Background(), payload, signPayload(payload, testSecret, time.Now()))
	if !errors.Is(err, syncErr) {
		t.Fatalf("collaborator failure not surfaced: %v", err)
	}
}
