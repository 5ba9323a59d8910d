package db

import "database/sql"

// Account is one accounts table row. Timestamps are stored as RFC3339 text.
type Account struct {
	ID                       string
	Username                 string
	PasswordHash             string
	FullName                 string
	EmailSubscriptionEnabled int64
	BillingAlertEnabled      int64
	StripeCustomerID         string
	StripeSubscriptionID     string
	SubscriptionStatus       string
	CurrentPeriodEnd         string
	Delinquent               int64
	CreatedAt                string
	UpdatedAt                string
}

// APIKey is one api_keys table row.
type APIKey struct {
	ID         string
	AccountID  string
	Name       string
	Prefix     string
	KeyHash    string
	ScopeImage int64
	ScopeGif   int64
	ScopeText  int64
	Enabled    int64
	CreatedAt  string
	LastUsedAt sql.NullString
}

// AccessPolicy is one api_key_access_policies table row.
type AccessPolicy struct {
	ID       int64
	APIKeyID string
	Name     string
	IPRange  string
}

// APIKeyLog is one api_key_logs table row.
type APIKeyLog struct {
	ID        int64
	APIKeyID  string
	Action    string
	CreatedAt string
}

// BillingLog is one billing_logs table row.
type BillingLog struct {
	ID        int64
	AccountID string
	Action    string
	Amount    string
	CreatedAt string
}

// SecurityLog is one security_logs table row.
type SecurityLog struct {
	ID        int64
	AccountID string
	Action    string
	IP        string
	UserAgent string
	CreatedAt string
}
