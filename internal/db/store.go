package db

import (
	"context"
	"database/sql"
	"fmt"
)

const createAccountQuery = `-- name: CreateAccount :exec
INSERT INTO accounts (
    id, username, password_hash, full_name,
    email_subscription_enabled, billing_alert_enabled,
    stripe_customer_id, stripe_subscription_id, subscription_status,
    current_period_end, delinquent, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateAccount inserts a new account row.
func (c *Database) CreateAccount(ctx context.Context, a Account) error {
	_, err := c.q.ExecContext(ctx, createAccountQuery,
		a.ID, a.Username, a.PasswordHash, a.FullName,
		a.EmailSubscriptionEnabled, a.BillingAlertEnabled,
		a.StripeCustomerID, a.StripeSubscriptionID, a.SubscriptionStatus,
		a.CurrentPeriodEnd, a.Delinquent, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

const accountColumns = `id, username, password_hash, full_name,
    email_subscription_enabled, billing_alert_enabled,
    stripe_customer_id, stripe_subscription_id, subscription_status,
    current_period_end, delinquent, created_at, updated_at`

const getAccountByIDQuery = `-- name: GetAccountByID :one
SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

// GetAccountByID fetches an account by id.
func (c *Database) GetAccountByID(ctx context.Context, id string) (Account, error) {
	return scanAccount(c.q.QueryRowContext(ctx, getAccountByIDQuery, id))
}

const getAccountByUsernameQuery = `-- name: GetAccountByUsername :one
SELECT ` + accountColumns + ` FROM accounts WHERE username = ?`

// GetAccountByUsername fetches an account by username.
func (c *Database) GetAccountByUsername(ctx context.Context, username string) (Account, error) {
	return scanAccount(c.q.QueryRowContext(ctx, getAccountByUsernameQuery, username))
}

const getAccountByStripeCustomerQuery = `-- name: GetAccountByStripeCustomer :one
SELECT ` + accountColumns + ` FROM accounts WHERE stripe_customer_id = ?`

// GetAccountByStripeCustomer fetches an account by its Stripe customer reference.
func (c *Database) GetAccountByStripeCustomer(ctx context.Context, customerID string) (Account, error) {
	return scanAccount(c.q.QueryRowContext(ctx, getAccountByStripeCustomerQuery, customerID))
}

const updateAccountProfileQuery = `-- name: UpdateAccountProfile :exec
UPDATE accounts
SET full_name = ?, email_subscription_enabled = ?, billing_alert_enabled = ?, updated_at = ?
WHERE id = ?`

// UpdateAccountProfile updates the mutable profile fields only.
func (c *Database) UpdateAccountProfile(ctx context.Context, id, fullName string, emailSubscription, billingAlert int64, updatedAt string) error {
	result, err := c.q.ExecContext(ctx, updateAccountProfileQuery, fullName, emailSubscription, billingAlert, updatedAt, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

const updateAccountSubscriptionQuery = `-- name: UpdateAccountSubscription :exec
UPDATE accounts
SET stripe_customer_id = ?, stripe_subscription_id = ?, subscription_status = ?,
    current_period_end = ?, delinquent = ?, updated_at = ?
WHERE id = ?`

// UpdateAccountSubscription persists the synced Stripe subscription state.
func (c *Database) UpdateAccountSubscription(ctx context.Context, id, customerID, subscriptionID, status, periodEnd string, delinquent int64, updatedAt string) error {
	result, err := c.q.ExecContext(ctx, updateAccountSubscriptionQuery,
		customerID, subscriptionID, status, periodEnd, delinquent, updatedAt, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

const createAPIKeyQuery = `-- name: CreateAPIKey :exec
INSERT INTO api_keys (
    id, account_id, name, prefix, key_hash,
    scope_image, scope_gif, scope_text, enabled, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const createAccessPolicyQuery = `-- name: CreateAccessPolicy :exec
INSERT INTO api_key_access_policies (api_key_id, name, ip_range) VALUES (?, ?, ?)`

// CreateAPIKey inserts one key with its access policies in a transaction.
func (c *Database) CreateAPIKey(ctx context.Context, key APIKey, policies []AccessPolicy) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create api key: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	q := newInstrumentedDBTX(tx, c.tracker)
	if _, err := q.ExecContext(ctx, createAPIKeyQuery,
		key.ID, key.AccountID, key.Name, key.Prefix, key.KeyHash,
		key.ScopeImage, key.ScopeGif, key.ScopeText, key.Enabled, key.CreatedAt,
	); err != nil {
		return err
	}
	for _, policy := range policies {
		if _, err := q.ExecContext(ctx, createAccessPolicyQuery, key.ID, policy.Name, policy.IPRange); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const updateAPIKeyQuery = `-- name: UpdateAPIKey :exec
UPDATE api_keys SET
    name = ?,
    scope_image = ?,
    scope_gif = ?,
    scope_text = ?,
    enabled = ?
WHERE id = ? AND account_id = ?`

const deleteAccessPoliciesQuery = `-- name: DeleteAccessPolicies :exec
DELETE FROM api_key_access_policies WHERE api_key_id = ?`

// UpdateAPIKey rewrites the mutable key fields and replaces its access
// policies in a transaction.
func (c *Database) UpdateAPIKey(ctx context.Context, key APIKey, policies []AccessPolicy) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update api key: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	q := newInstrumentedDBTX(tx, c.tracker)
	result, err := q.ExecContext(ctx, updateAPIKeyQuery,
		key.Name, key.ScopeImage, key.ScopeGif, key.ScopeText, key.Enabled,
		key.ID, key.AccountID,
	)
	if err != nil {
		return err
	}
	if err := requireRow(result); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, deleteAccessPoliciesQuery, key.ID); err != nil {
		return err
	}
	for _, policy := range policies {
		if _, err := q.ExecContext(ctx, createAccessPolicyQuery, key.ID, policy.Name, policy.IPRange); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const countAPIKeysByAccountQuery = `-- name: CountAPIKeysByAccount :one
SELECT COUNT(*) FROM api_keys WHERE account_id = ?`

// CountAPIKeysByAccount counts keys owned by the account.
func (c *Database) CountAPIKeysByAccount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := c.q.QueryRowContext(ctx, countAPIKeysByAccountQuery, accountID).Scan(&count)
	return count, err
}

const apiKeyColumns = `id, account_id, name, prefix, key_hash,
    scope_image, scope_gif, scope_text, enabled, created_at, last_used_at`

const listAPIKeysByAccountQuery = `-- name: ListAPIKeysByAccount :many
SELECT ` + apiKeyColumns + ` FROM api_keys WHERE account_id = ? ORDER BY created_at DESC, id`

// ListAPIKeysByAccount lists keys for one account, newest first.
func (c *Database) ListAPIKeysByAccount(ctx context.Context, accountID string) ([]APIKey, error) {
	rows, err := c.q.QueryContext(ctx, listAPIKeysByAccountQuery, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

const getAPIKeyQuery = `-- name: GetAPIKey :one
SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = ? AND account_id = ?`

// GetAPIKey fetches one key owned by the account.
func (c *Database) GetAPIKey(ctx context.Context, id, accountID string) (APIKey, error) {
	return scanAPIKey(c.q.QueryRowContext(ctx, getAPIKeyQuery, id, accountID))
}

const listAccessPoliciesQuery = `-- name: ListAccessPolicies :many
SELECT id, api_key_id, name, ip_range FROM api_key_access_policies WHERE api_key_id = ? ORDER BY id`

// ListAccessPolicies lists policies attached to one key.
func (c *Database) ListAccessPolicies(ctx context.Context, apiKeyID string) ([]AccessPolicy, error) {
	rows, err := c.q.QueryContext(ctx, listAccessPoliciesQuery, apiKeyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []AccessPolicy
	for rows.Next() {
		var p AccessPolicy
		if err := rows.Scan(&p.ID, &p.APIKeyID, &p.Name, &p.IPRange); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

const deleteAPIKeyQuery = `-- name: DeleteAPIKey :exec
DELETE FROM api_keys WHERE id = ? AND account_id = ?`

// DeleteAPIKey removes one key owned by the account.
func (c *Database) DeleteAPIKey(ctx context.Context, id, accountID string) (int64, error) {
	result, err := c.q.ExecContext(ctx, deleteAPIKeyQuery, id, accountID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const disableAPIKeysForAccountQuery = `-- name: DisableAPIKeysForAccount :exec
UPDATE api_keys SET enabled = 0 WHERE account_id = ?`

// DisableAPIKeysForAccount freezes every key owned by the account.
func (c *Database) DisableAPIKeysForAccount(ctx context.Context, accountID string) (int64, error) {
	result, err := c.q.ExecContext(ctx, disableAPIKeysForAccountQuery, accountID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertAPIKeyLogQuery = `-- name: InsertAPIKeyLog :exec
INSERT INTO api_key_logs (api_key_id, action, created_at) VALUES (?, ?, ?)`

// InsertAPIKeyLog appends one key audit record.
func (c *Database) InsertAPIKeyLog(ctx context.Context, log APIKeyLog) error {
	_, err := c.q.ExecContext(ctx, insertAPIKeyLogQuery, log.APIKeyID, log.Action, log.CreatedAt)
	return err
}

const listAPIKeyLogsQuery = `-- name: ListAPIKeyLogs :many
SELECT id, api_key_id, action, created_at
FROM api_key_logs WHERE api_key_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`

// ListAPIKeyLogs returns newest-first audit records for one key.
func (c *Database) ListAPIKeyLogs(ctx context.Context, apiKeyID string, limit int64) ([]APIKeyLog, error) {
	rows, err := c.q.QueryContext(ctx, listAPIKeyLogsQuery, apiKeyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []APIKeyLog
	for rows.Next() {
		var l APIKeyLog
		if err := rows.Scan(&l.ID, &l.APIKeyID, &l.Action, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

const insertBillingLogQuery = `-- name: InsertBillingLog :exec
INSERT INTO billing_logs (account_id, action, amount, created_at) VALUES (?, ?, ?, ?)`

// InsertBillingLog appends one billing audit record.
func (c *Database) InsertBillingLog(ctx context.Context, log BillingLog) error {
	_, err := c.q.ExecContext(ctx, insertBillingLogQuery, log.AccountID, log.Action, log.Amount, log.CreatedAt)
	return err
}

const listBillingLogsQuery = `-- name: ListBillingLogs :many
SELECT id, account_id, action, amount, created_at
FROM billing_logs WHERE account_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`

// ListBillingLogs returns newest-first billing records for one account.
func (c *Database) ListBillingLogs(ctx context.Context, accountID string, limit int64) ([]BillingLog, error) {
	rows, err := c.q.QueryContext(ctx, listBillingLogsQuery, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []BillingLog
	for rows.Next() {
		var l BillingLog
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Action, &l.Amount, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

const insertSecurityLogQuery = `-- name: InsertSecurityLog :exec
INSERT INTO security_logs (account_id, action, ip, user_agent, created_at) VALUES (?, ?, ?, ?, ?)`

// InsertSecurityLog appends one security audit record.
func (c *Database) InsertSecurityLog(ctx context.Context, log SecurityLog) error {
	_, err := c.q.ExecContext(ctx, insertSecurityLogQuery, log.AccountID, log.Action, log.IP, log.UserAgent, log.CreatedAt)
	return err
}

const listSecurityLogsQuery = `-- name: ListSecurityLogs :many
SELECT id, account_id, action, ip, user_agent, created_at
FROM security_logs WHERE account_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`

// ListSecurityLogs returns newest-first security records for one account.
func (c *Database) ListSecurityLogs(ctx context.Context, accountID string, limit int64) ([]SecurityLog, error) {
	rows, err := c.q.QueryContext(ctx, listSecurityLogsQuery, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []SecurityLog
	for rows.Next() {
		var l SecurityLog
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Action, &l.IP, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.FullName,
		&a.EmailSubscriptionEnabled, &a.BillingAlertEnabled,
		&a.StripeCustomerID, &a.StripeSubscriptionID, &a.SubscriptionStatus,
		&a.CurrentPeriodEnd, &a.Delinquent, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func scanAPIKey(row rowScanner) (APIKey, error) {
	var k APIKey
	err := row.Scan(
		&k.ID, &k.AccountID, &k.Name, &k.Prefix, &k.KeyHash,
		&k.ScopeImage, &k.ScopeGif, &k.ScopeText, &k.Enabled, &k.CreatedAt, &k.LastUsedAt,
	)
	return k, err
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
