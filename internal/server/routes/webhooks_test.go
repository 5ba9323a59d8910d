package routes

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	stripewebhook "github.com/thepragmaticdev/meco/internal/webhooks/stripe"
)

const webhookTestSecret = "whsec_route_secret"

type recordingCollaborator struct {
	synced     int
	delinquent int
}

func (r *recordingCollaborator) SyncSubscription(_ context.Context, _, _ string) error {
	r.synced++
	return nil
}

func (r *recordingCollaborator) HandleDelinquentCustomer(_ context.Context, _, _ string) error {
	r.delinquent++
	return nil
}

func newWebhookEcho(collaborator stripewebhook.Collaborator) *echo.Echo {
	e := echo.New()
	NewWebhookRoutes(stripewebhook.NewHandler(collaborator, webhookTestSecret)).RegisterRoutes(e)
	return e
}

func stripeSignature(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(e *echo.Echo, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookAcceptsSignedInvoiceEvent(t *testing.T) {
	t.Parallel()

	collaborator := &recordingCollaborator{}
	e := newWebhookEcho(collaborator)
	payload := []byte(`{
		"id": "evt_1",
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_1", "object": "invoice", "customer": "cus_123", "subscription": "sub_456"}}
	}`)

	rec := postWebhook(e, payload, stripeSignature(payload, webhookTestSecret, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if collaborator.synced != 1 {
		t.Fatalf("subscription sync not dispatched")
	}
}

func TestStripeWebhookRejectsUnsignedDelivery(t *testing.T) {
	t.Parallel()

	collaborator := &recordingCollaborator{}
	e := newWebhookEcho(collaborator)
	payload := []byte(`{"id": "evt_1", "type": "invoice.payment_succeeded", "data": {"object": {}}}`)

	rec := postWebhook(e, payload, "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body domain.ApiError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body.Status != domain.StatusUnauthorized {
		t.Fatalf("unexpected error status: %q", body.Status)
	}
	if collaborator.synced != 0 || collaborator.delinquent != 0 {
		t.Fatalf("collaborator invoked despite missing signature")
	}
}

func TestStripeWebhookRejectsTamperedPayload(t *testing.T) {
	t.Parallel()

	collaborator := &recordingCollaborator{}
	e := newWebhookEcho(collaborator)
	payload := []byte(`{"id": "evt_1", "type": "invoice.payment_succeeded", "data": {"object": {"customer": "cus_123", "subscription": "sub_456"}}}`)
	signature := stripeSignature(payload, webhookTestSecret, time.Now())

	tampered := bytes.Replace(payload, []byte("cus_123"), []byte("cus_666"), 1)
	rec := postWebhook(e, tampered, signature)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if collaborator.synced != 0 {
		t.Fatalf("collaborator invoked for tampered payload")
	}
}

func TestStripeWebhookRejectsEventWithoutObject(t *testing.T) {
	t.Parallel()

	e := newWebhookEcho(&recordingCollaborator{})
	payload := []byte(`{"id": "evt_1", "type": "invoice.payment_succeeded", "data": {"object": {"id": "in_1", "object": "invoice"}}}`)

	rec := postWebhook(e, payload, stripeSignature(payload, webhookTestSecret, time.Now()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStripeWebhookAcknowledgesUnknownEventTypes(t *testing.T) {
	t.Parallel()

	collaborator := &recordingCollaborator{}
	e := newWebhookEcho(collaborator)
	payload := []byte(`{"id": "evt_1", "type": "payment_method.attached", "data": {"object": {"id": "pm_1"}}}`)

	rec := postWebhook(e, payload, stripeSignature(payload, webhookTestSecret, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown event, got %d", rec.Code)
	}
	if collaborator.synced != 0 || collaborator.delinquent != 0 {
		t.Fatalf("collaborator invoked for unknown event")
	}
}

func TestStripeWebhookDispatchesSubscriptionDeleted(t *testing.T) {
	t.Parallel()

	collaborator := &recordingCollaborator{}
	e := newWebhookEcho(collaborator)
	payload := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_456", "object": "subscription", "customer": "cus_123"}}
	}`)

	rec := postWebhook(e, payload, stripeSignature(payload, webhookTestSecret, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if collaborator.delinquent != 1 {
		t.Fatalf("delinquency handling not dispatched")
	}
}
