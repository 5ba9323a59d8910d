package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	"github.com/thepragmaticdev/meco/internal/app/ports"
	"github.com/thepragmaticdev/meco/internal/db"
)

// Store adapts the SQLite database to the application store ports.
type Store struct {
	database *db.Database
}

// NewStore constructs the SQLite-backed application store.
func NewStore(database *db.Database) *Store {
	return &Store{database: database}
}

var _ ports.AppStore = (*Store)(nil)

// CreateAccount inserts a new account. A lost race on the username
// uniqueness constraint surfaces as ports.ErrConflict.
func (s *Store) CreateAccount(ctx context.Context, account domain.Account) error {
	return translateErr(s.database.CreateAccount(ctx, db.Account{
		ID:                       account.ID,
		Username:                 account.Username,
		PasswordHash:             account.PasswordHash,
		FullName:                 account.FullName,
		EmailSubscriptionEnabled: boolToInt(account.EmailSubscriptionEnabled),
		BillingAlertEnabled:      boolToInt(account.BillingAlertEnabled),
		StripeCustomerID:         account.StripeCustomerID,
		StripeSubscriptionID:     account.StripeSubscriptionID,
		SubscriptionStatus:       account.SubscriptionStatus,
		CurrentPeriodEnd:         formatTime(account.CurrentPeriodEnd),
		Delinquent:               boolToInt(account.Delinquent),
		CreatedAt:                formatTime(account.CreatedAt),
		UpdatedAt:                formatTime(account.UpdatedAt),
	}))
}

// GetAccountByID fetches an account by id.
func (s *Store) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row, err := s.database.GetAccountByID(ctx, id)
	if err != nil {
		return domain.Account{}, translateErr(err)
	}
	return mapAccount(row), nil
}

// GetAccountByUsername fetches an account by username.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (domain.Account, error) {
	row, err := s.database.GetAccountByUsername(ctx, username)
	if err != nil {
		return domain.Account{}, translateErr(err)
	}
	return mapAccount(row), nil
}

// GetAccountByStripeCustomer fetches an account by Stripe customer reference.
func (s *Store) GetAccountByStripeCustomer(ctx context.Context, customerID string) (domain.Account, error) {
	row, err := s.database.GetAccountByStripeCustomer(ctx, customerID)
	if err != nil {
		return domain.Account{}, translateErr(err)
	}
	return mapAccount(row), nil
}

// UpdateAccountProfile updates the mutable profile fields.
func (s *Store) UpdateAccountProfile(ctx context.Context, id, fullName string, emailSubscription, billingAlert bool) error {
	err := s.database.UpdateAccountProfile(ctx, id, fullName,
		boolToInt(emailSubscription), boolToInt(billingAlert), formatTime(time.Now().UTC()))
	return translateErr(err)
}

// UpdateAccountSubscription persists synced Stripe subscription state.
func (s *Store) UpdateAccountSubscription(ctx context.Context, id string, update ports.SubscriptionUpdate) error {
	err := s.database.UpdateAccountSubscription(ctx, id,
		update.CustomerID, update.SubscriptionID, update.Status,
		formatTime(update.PeriodEnd), boolToInt(update.Delinquent), formatTime(time.Now().UTC()))
	return translateErr(err)
}

// CreateAPIKey inserts one key with its access policies.
func (s *Store) CreateAPIKey(ctx context.Context, key domain.APIKey, keyHash string) error {
	policies := make([]db.AccessPolicy, 0, len(key.AccessPolicies))
	for _, policy := range key.AccessPolicies {
		policies = append(policies, db.AccessPolicy{Name: policy.Name, IPRange: policy.Range})
	}
	return translateErr(s.database.CreateAPIKey(ctx, db.APIKey{
		ID:         key.ID,
		AccountID:  key.AccountID,
		Name:       key.Name,
		Prefix:     key.Prefix,
		KeyHash:    keyHash,
		ScopeImage: boolToInt(key.Scope.Image),
		ScopeGif:   boolToInt(key.Scope.Gif),
		ScopeText:  boolToInt(key.Scope.Text),
		Enabled:    boolToInt(key.Enabled),
		CreatedAt:  formatTime(key.CreatedAt),
	}, policies))
}

// UpdateAPIKey rewrites the mutable key fields and replaces access policies.
func (s *Store) UpdateAPIKey(ctx context.Context, key domain.APIKey) error {
	policies := make([]db.AccessPolicy, 0, len(key.AccessPolicies))
	for _, policy := range key.AccessPolicies {
		policies = append(policies, db.AccessPolicy{Name: policy.Name, IPRange: policy.Range})
	}
	return translateErr(s.database.UpdateAPIKey(ctx, db.APIKey{
		ID:         key.ID,
		AccountID:  key.AccountID,
		Name:       key.Name,
		ScopeImage: boolToInt(key.Scope.Image),
		ScopeGif:   boolToInt(key.Scope.Gif),
		ScopeText:  boolToInt(key.Scope.Text),
		Enabled:    boolToInt(key.Enabled),
	}, policies))
}

// ListAPIKeys lists keys for one account with their access policies.
func (s *Store) ListAPIKeys(ctx context.Context, accountID string) ([]domain.APIKey, error) {
	rows, err := s.database.ListAPIKeysByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	keys := make([]domain.APIKey, 0, len(rows))
	for _, row := range rows {
		key := mapAPIKey(row)
		policies, err := s.database.ListAccessPolicies(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		key.AccessPolicies = mapAccessPolicies(policies)
		keys = append(keys, key)
	}
	return keys, nil
}

// GetAPIKey fetches one key owned by the account.
func (s *Store) GetAPIKey(ctx context.Context, id, accountID string) (domain.APIKey, error) {
	row, err := s.database.GetAPIKey(ctx, id, accountID)
	if err != nil {
		return domain.APIKey{}, translateErr(err)
	}
	key := mapAPIKey(row)
	policies, err := s.database.ListAccessPolicies(ctx, row.ID)
	if err != nil {
		return domain.APIKey{}, err
	}
	key.AccessPolicies = mapAccessPolicies(policies)
	return key, nil
}

// CountAPIKeys counts keys owned by the account.
func (s *Store) CountAPIKeys(ctx context.Context, accountID string) (int64, error) {
	return s.database.CountAPIKeysByAccount(ctx, accountID)
}

// DeleteAPIKey removes one key owned by the account.
func (s *Store) DeleteAPIKey(ctx context.Context, id, accountID string) error {
	affected, err := s.database.DeleteAPIKey(ctx, id, accountID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// DisableAPIKeys freezes every key owned by the account.
func (s *Store) DisableAPIKeys(ctx context.Context, accountID string) (int64, error) {
	return s.database.DisableAPIKeysForAccount(ctx, accountID)
}

// AppendKeyLog appends one key audit record.
func (s *Store) AppendKeyLog(ctx context.Context, log domain.KeyLog) error {
	return s.database.InsertAPIKeyLog(ctx, db.APIKeyLog{
		APIKeyID:  log.APIKeyID,
		Action:    log.Action,
		CreatedAt: formatTime(log.CreatedAt),
	})
}

// ListKeyLogs returns newest-first audit records for one key.
func (s *Store) ListKeyLogs(ctx context.Context, apiKeyID string, limit int64) ([]domain.KeyLog, error) {
	rows, err := s.database.ListAPIKeyLogs(ctx, apiKeyID, limit)
	if err != nil {
		return nil, err
	}
	logs := make([]domain.KeyLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, domain.KeyLog{
			APIKeyID:  row.APIKeyID,
			Action:    row.Action,
			CreatedAt: parseTime(row.CreatedAt),
		})
	}
	return logs, nil
}

// AppendBillingLog appends one billing audit record.
func (s *Store) AppendBillingLog(ctx context.Context, log domain.BillingLog) error {
	return s.database.InsertBillingLog(ctx, db.BillingLog{
		AccountID: log.AccountID,
		Action:    log.Action,
		Amount:    log.Amount,
		CreatedAt: formatTime(log.CreatedAt),
	})
}

// ListBillingLogs returns newest-first billing records.
func (s *Store) ListBillingLogs(ctx context.Context, accountID string, limit int64) ([]domain.BillingLog, error) {
	rows, err := s.database.ListBillingLogs(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}
	logs := make([]domain.BillingLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, domain.BillingLog{
			AccountID: row.AccountID,
			Action:    row.Action,
			Amount:    row.Amount,
			CreatedAt: parseTime(row.CreatedAt),
		})
	}
	return logs, nil
}

// AppendSecurityLog appends one security audit record.
func (s *Store) AppendSecurityLog(ctx context.Context, log domain.SecurityLog) error {
	return s.database.InsertSecurityLog(ctx, db.SecurityLog{
		AccountID: log.AccountID,
		Action:    log.Action,
		IP:        log.IP,
		UserAgent: log.UserAgent,
		CreatedAt: formatTime(log.CreatedAt),
	})
}

// ListSecurityLogs returns newest-first security records.
func (s *Store) ListSecurityLogs(ctx context.Context, accountID string, limit int64) ([]domain.SecurityLog, error) {
	rows, err := s.database.ListSecurityLogs(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}
	logs := make([]domain.SecurityLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, domain.SecurityLog{
			AccountID: row.AccountID,
			Action:    row.Action,
			IP:        row.IP,
			UserAgent: row.UserAgent,
			CreatedAt: parseTime(row.CreatedAt),
		})
	}
	return logs, nil
}

func mapAccount(row db.Account) domain.Account {
	return domain.Account{
		ID:                       row.ID,
		Username:                 row.Username,
		PasswordHash:             row.PasswordHash,
		FullName:                 row.FullName,
		EmailSubscriptionEnabled: row.EmailSubscriptionEnabled != 0,
		BillingAlertEnabled:      row.BillingAlertEnabled != 0,
		StripeCustomerID:         row.StripeCustomerID,
		StripeSubscriptionID:     row.StripeSubscriptionID,
		SubscriptionStatus:       row.SubscriptionStatus,
		CurrentPeriodEnd:         parseTime(row.CurrentPeriodEnd),
		Delinquent:               row.Delinquent != 0,
		CreatedAt:                parseTime(row.CreatedAt),
		UpdatedAt:                parseTime(row.UpdatedAt),
	}
}

func mapAPIKey(row db.APIKey) domain.APIKey {
	key := domain.APIKey{
		ID:        row.ID,
		AccountID: row.AccountID,
		Name:      row.Name,
		Prefix:    row.Prefix,
		Scope: domain.Scope{
			Image: row.ScopeImage != 0,
			Gif:   row.ScopeGif != 0,
			Text:  row.ScopeText != 0,
		},
		Enabled:   row.Enabled != 0,
		CreatedAt: parseTime(row.CreatedAt),
	}
	if row.LastUsedAt.Valid {
		key.LastUsedAt = parseTime(row.LastUsedAt.String)
	}
	return key
}

func mapAccessPolicies(rows []db.AccessPolicy) []domain.AccessPolicy {
	policies := make([]domain.AccessPolicy, 0, len(rows))
	for _, row := range rows {
		policies = append(policies, domain.AccessPolicy{Name: row.Name, Range: row.IPRange})
	}
	return policies
}

func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ports.ErrNotFound
	case db.IsUniqueConstraint(err):
		return ports.ErrConflict
	default:
		return err
	}
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
