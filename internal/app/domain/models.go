package domain

import "time"

// Account is one registered billing account.
type Account struct {
	ID                       string
	Username                 string
	PasswordHash             string
	FullName                 string
	EmailSubscriptionEnabled bool
	BillingAlertEnabled      bool
	StripeCustomerID         string
	StripeSubscriptionID     string
	SubscriptionStatus       string
	CurrentPeriodEnd         time.Time
	Delinquent               bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Principal is the authenticated identity bound to one request.
type Principal struct {
	AccountID string
	Username  string
	Roles     []string
}

// Scope controls which services an API key may call.
type Scope struct {
	Image bool `json:"image"`
	Gif   bool `json:"gif"`
	Text  bool `json:"text"`
}

// AccessPolicy restricts API key usage to an IPv4 CIDR range.
type AccessPolicy struct {
	Name  string `json:"name"`
	Range string `json:"range"`
}

// APIKey is one issued key. Key holds the raw secret only at creation time
// and is never persisted.
type APIKey struct {
	ID             string
	AccountID      string
	Name           string
	Prefix         string
	Key            string
	Scope          Scope
	AccessPolicies []AccessPolicy
	Enabled        bool
	CreatedAt      time.Time
	LastUsedAt     time.Time
}

// KeyLog is one append-only audit record scoped to a single API key.
type KeyLog struct {
	APIKeyID  string
	Action    string
	CreatedAt time.Time
}

// BillingLog is one append-only billing audit record.
type BillingLog struct {
	AccountID string
	Action    string
	Amount    string
	CreatedAt time.Time
}

// SecurityLog is one append-only security audit record.
type SecurityLog struct {
	AccountID string
	Action    string
	IP        string
	UserAgent string
	CreatedAt time.Time
}

// Page is one newest-first slice of an audit log.
type Page[T any] struct {
	Content          []T `json:"content"`
	NumberOfElements int `json:"numberOfElements"`
}

// NewPage wraps rows into a page response.
func NewPage[T any](rows []T) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	return Page[T]{Content: rows, NumberOfElements: len(rows)}
}
