package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// Subscription is the gateway-neutral view of a payment subscription.
type Subscription struct {
	ID        string
	Customer  string
	Status    string
	PeriodEnd time.Time
	Amount    string
}

// Gateway abstracts the payment backend behind the billing service.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	FetchSubscription(ctx context.Context, subscriptionID string) (Subscription, error)
}

// StripeGateway talks to the Stripe API through a dedicated client so no
// global Stripe state leaks between services.
type StripeGateway struct {
	client *client.API
}

// NewStripeGateway builds a gateway bound to the given secret key.
func NewStripeGateway(apiKey string) *StripeGateway {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &StripeGateway{client: sc}
}

// CreateCustomer registers a Stripe customer and returns its reference.
func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx

	customer, err := g.client.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return customer.ID, nil
}

// FetchSubscription loads the current subscription state from Stripe.
func (g *StripeGateway) FetchSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.client.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return Subscription{}, fmt.Errorf("fetch stripe subscription: %w", err)
	}

	result := Subscription{
		ID:        sub.ID,
		Status:    string(sub.Status),
		PeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if sub.Customer != nil {
		result.Customer = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		result.Amount = formatAmount(price.UnitAmount, string(price.Currency))
	}
	return result, nil
}

func formatAmount(unitAmount int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(unitAmount)/100, currency)
}
