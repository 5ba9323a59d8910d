package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	"github.com/thepragmaticdev/meco/internal/app/ports"
)

const (
	actionBillingPaid         = "billing.paid"
	actionBillingFailed       = "billing.failed"
	actionSubscriptionDeleted = "subscription.deleted"
)

// subscription statuses that mean a payment attempt has failed.
var failedStatuses = map[string]struct{}{
	"past_due":           {},
	"unpaid":             {},
	"incomplete":         {},
	"incomplete_expired": {},
}

// Store is the slice of persistence the billing service needs.
type Store interface {
	GetAccountByStripeCustomer(ctx context.Context, customerID string) (domain.Account, error)
	UpdateAccountSubscription(ctx context.Context, id string, update ports.SubscriptionUpdate) error
	DisableAPIKeys(ctx context.Context, accountID string) (int64, error)
	AppendBillingLog(ctx context.Context, log domain.BillingLog) error
}

// Service reconciles local account state with the payment backend.
type Service struct {
	store   Store
	gateway Gateway
	now     func() time.Time
}

// NewService constructs the billing service.
func NewService(store Store, gateway Gateway) *Service {
	return &Service{store: store, gateway: gateway, now: time.Now}
}

// EnsureCustomer creates the payment-side customer record for a new account.
func (s *Service) EnsureCustomer(ctx context.Context, account domain.Account) (string, error) {
	if account.StripeCustomerID != "" {
		return account.StripeCustomerID, nil
	}
	return s.gateway.CreateCustomer(ctx, account.Username, account.FullName)
}

// SyncSubscription pulls the current subscription state for the customer and
// persists it on the owning account. The billing trail records a paid or
// failed entry depending on the synced status.
func (s *Service) SyncSubscription(ctx context.Context, customerRef, subscriptionRef string) error {
	account, err := s.store.GetAccountByStripeCustomer(ctx, customerRef)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("no account for customer %s: %w", customerRef, err)
		}
		return fmt.Errorf("load account: %w", err)
	}

	sub, err := s.gateway.FetchSubscription(ctx, subscriptionRef)
	if err != nil {
		return err
	}

	_, failed := failedStatuses[sub.Status]
	err = s.store.UpdateAccountSubscription(ctx, account.ID, ports.SubscriptionUpdate{
		CustomerID:     customerRef,
		SubscriptionID: sub.ID,
		Status:         sub.Status,
		PeriodEnd:      sub.PeriodEnd,
		Delinquent:     failed,
	})
	if err != nil {
		return fmt.Errorf("persist subscription: %w", err)
	}

	action := actionBillingPaid
	if failed {
		action = actionBillingFailed
	}
	s.appendBillingLog(ctx, account.ID, action, sub.Amount)

	slog.InfoContext(ctx, "subscription synced",
		slog.String("customer", customerRef),
		slog.String("subscription", sub.ID),
		slog.String("status", sub.Status))
	return nil
}

// HandleDelinquentCustomer reacts to a cancelled subscription by marking the
// account delinquent and freezing every API key it owns.
func (s *Service) HandleDelinquentCustomer(ctx context.Context, customerRef, subscriptionRef string) error {
	account, err := s.store.GetAccountByStripeCustomer(ctx, customerRef)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("no account for customer %s: %w", customerRef, err)
		}
		return fmt.Errorf("load account: %w", err)
	}

	err = s.store.UpdateAccountSubscription(ctx, account.ID, ports.SubscriptionUpdate{
		CustomerID:     customerRef,
		SubscriptionID: subscriptionRef,
		Status:         "canceled",
		Delinquent:     true,
	})
	if err != nil {
		return fmt.Errorf("mark delinquent: %w", err)
	}

	frozen, err := s.store.DisableAPIKeys(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("freeze api keys: %w", err)
	}

	s.appendBillingLog(ctx, account.ID, actionSubscriptionDeleted, "")

	slog.WarnContext(ctx, "customer marked delinquent",
		slog.String("customer", customerRef),
		slog.String("subscription", subscriptionRef),
		slog.Int64("keys_frozen", frozen))
	return nil
}

func (s *Service) appendBillingLog(ctx context.Context, accountID, action, amount string) {
	err := s.store.AppendBillingLog(ctx, domain.BillingLog{
		AccountID: accountID,
		Action:    action,
		Amount:    amount,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		slog.WarnContext(ctx, "append billing log failed",
			slog.String("action", action),
			slog.Any("error", err))
	}
}
