package ports

import (
	"context"
	"errors"
	"time"

	"github.com/thepragmaticdev/meco/internal/app/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert loses to a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// SubscriptionUpdate carries synced Stripe subscription state for one account.
type SubscriptionUpdate struct {
	CustomerID     string
	SubscriptionID string
	Status         string
	PeriodEnd      time.Time
	Delinquent     bool
}

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account domain.Account) error
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (domain.Account, error)
	GetAccountByStripeCustomer(ctx context.Context, customerID string) (domain.Account, error)
	UpdateAccountProfile(ctx context.Context, id, fullName string, emailSubscription, billingAlert bool) error
	UpdateAccountSubscription(ctx context.Context, id string, update SubscriptionUpdate) error
}

// APIKeyStore persists issued API keys. Only the hash of a key is stored.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key domain.APIKey, keyHash string) error
	UpdateAPIKey(ctx context.Context, key domain.APIKey) error
	ListAPIKeys(ctx context.Context, accountID string) ([]domain.APIKey, error)
	GetAPIKey(ctx context.Context, id, accountID string) (domain.APIKey, error)
	CountAPIKeys(ctx context.Context, accountID string) (int64, error)
	DeleteAPIKey(ctx context.Context, id, accountID string) error
	DisableAPIKeys(ctx context.Context, accountID string) (int64, error)
	AppendKeyLog(ctx context.Context, log domain.KeyLog) error
	ListKeyLogs(ctx context.Context, apiKeyID string, limit int64) ([]domain.KeyLog, error)
}

// AuditStore appends and reads the account audit trails.
type AuditStore interface {
	AppendBillingLog(ctx context.Context, log domain.BillingLog) error
	ListBillingLogs(ctx context.Context, accountID string, limit int64) ([]domain.BillingLog, error)
	AppendSecurityLog(ctx context.Context, log domain.SecurityLog) error
	ListSecurityLogs(ctx context.Context, accountID string, limit int64) ([]domain.SecurityLog, error)
}

// AppStore is the full persistence surface used by application services.
type AppStore interface {
	AccountStore
	APIKeyStore
	AuditStore
}
