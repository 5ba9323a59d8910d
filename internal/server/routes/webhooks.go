package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	stripewebhook "github.com/thepragmaticdev/meco/internal/webhooks/stripe"
)

// SignatureHeader carries the Stripe payload signature.
const SignatureHeader = "Stripe-Signature"

// maxWebhookBytes matches the size Stripe recommends for webhook bodies.
const maxWebhookBytes = int64(65536)

// WebhookRoutes registers webhook endpoints.
type WebhookRoutes struct {
	stripe *stripewebhook.Handler
}

// NewWebhookRoutes constructs webhook routes.
func NewWebhookRoutes(stripe *stripewebhook.Handler) *WebhookRoutes {
	return &WebhookRoutes{stripe: stripe}
}

// RegisterRoutes registers the webhook endpoints.
func (w *WebhookRoutes) RegisterRoutes(s *echo.Echo) {
	s.POST("/webhooks/stripe", w.handleStripeWebhook)
}

func (w *WebhookRoutes) handleStripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, domain.ApiError{
			Status:  domain.StatusBadRequest,
			Message: "Unreadable payload.",
		})
	}

	err = w.stripe.HandleEvent(c.Request().Context(), payload, c.Request().Header.Get(SignatureHeader))
	switch {
	case err == nil:
		return c.NoContent(http.StatusOK)
	case errors.Is(err, stripewebhook.ErrSignatureVerification):
		return c.JSON(http.StatusUnauthorized, domain.ApiError{
			Status:  domain.StatusUnauthorized,
			Message: "Webhook signature verification failed.",
		})
	case errors.Is(err, stripewebhook.ErrDeserialization), errors.Is(err, stripewebhook.ErrObjectMissing):
		return c.JSON(http.StatusBadRequest, domain.ApiError{
			Status:  domain.StatusBadRequest,
			Message: "Malformed webhook event.",
		})
	default:
		return err
	}
}
