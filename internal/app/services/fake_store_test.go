package services

import (
	"context"
	"sync"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	"github.com/thepragmaticdev/meco/internal/app/ports"
)

// fakeStore is an in-memory ports.AppStore for service tests.
type fakeStore struct {
	mu           sync.Mutex
	accounts     map[string]domain.Account
	keys         map[string]domain.APIKey
	keyHashes    map[string]string
	billingLogs  []domain.BillingLog
	securityLogs []domain.SecurityLog
	keyLogs      []domain.KeyLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:  map[string]domain.Account{},
		keys:      map[string]domain.APIKey{},
		keyHashes: map[string]string{},
	}
}

func (f *fakeStore) CreateAccount(_ context.Context, account domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.accounts {
		if existing.Username == account.Username {
			return ports.ErrConflict
		}
	}
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeStore) GetAccountByID(_ context.Context, id string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return domain.Account{}, ports.ErrNotFound
	}
	return account, nil
}

func (f *fakeStore) GetAccountByUsername(_ context.Context, username string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, account := range f.accounts {
		if account.Username == username {
			return account, nil
		}
	}
	return domain.Account{}, ports.ErrNotFound
}

func (f *fakeStore) GetAccountByStripeCustomer(_ context.Context, customerID string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, account := range f.accounts {
		if account.StripeCustomerID == customerID {
			return account, nil
		}
	}
	return domain.Account{}, ports.ErrNotFound
}

func (f *fakeStore) UpdateAccountProfile(_ context.Context, id, fullName string, emailSubscription, billingAlert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return ports.ErrNotFound
	}
	account.FullName = fullName
	account.EmailSubscriptionEnabled = emailSubscription
	account.BillingAlertEnabled = billingAlert
	f.accounts[id] = account
	return nil
}

func (f *fakeStore) UpdateAccountSubscription(_ context.Context, id string, update ports.SubscriptionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return ports.ErrNotFound
	}
	account.StripeCustomerID = update.CustomerID
	account.StripeSubscriptionID = update.SubscriptionID
	account.SubscriptionStatus = update.Status
	account.CurrentPeriodEnd = update.PeriodEnd
	account.Delinquent = update.Delinquent
	f.accounts[id] = account
	return nil
}

func (f *fakeStore) CreateAPIKey(_ context.Context, key domain.APIKey, keyHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key.Key = ""
	f.keys[key.ID] = key
	f.keyHashes[key.ID] = keyHash
	return nil
}

func (f *fakeStore) UpdateAPIKey(_ context.Context, key domain.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.keys[key.ID]
	if !ok || existing.AccountID != key.AccountID {
		return ports.ErrNotFound
	}
	existing.Name = key.Name
	existing.Scope = key.Scope
	existing.AccessPolicies = key.AccessPolicies
	existing.Enabled = key.Enabled
	f.keys[key.ID] = existing
	return nil
}

func (f *fakeStore) CountAPIKeys(_ context.Context, accountID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, key := range f.keys {
		if key.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListAPIKeys(_ context.Context, accountID string) ([]domain.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []domain.APIKey
	for _, key := range f.keys {
		if key.AccountID == accountID {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeStore) GetAPIKey(_ context.Context, id, accountID string) (domain.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[id]
	if !ok || key.AccountID != accountID {
		return domain.APIKey{}, ports.ErrNotFound
	}
	return key, nil
}

func (f *fakeStore) DeleteAPIKey(_ context.Context, id, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[id]
	if !ok || key.AccountID != accountID {
		return ports.ErrNotFound
	}
	delete(f.keys, id)
	delete(f.keyHashes, id)
	return nil
}

func (f *fakeStore) DisableAPIKeys(_ context.Context, accountID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var disabled int64
	for id, key := range f.keys {
		if key.AccountID == accountID && key.Enabled {
			key.Enabled = false
			f.keys[id] = key
			disabled++
		}
	}
	return disabled, nil
}

func (f *fakeStore) AppendKeyLog(_ context.Context, log domain.KeyLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyLogs = append(f.keyLogs, log)
	return nil
}

func (f *fakeStore) ListKeyLogs(_ context.Context, apiKeyID string, limit int64) ([]domain.KeyLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var logs []domain.KeyLog
	for i := len(f.keyLogs) - 1; i >= 0 && int64(len(logs)) < limit; i-- {
		if f.keyLogs[i].APIKeyID == apiKeyID {
			logs = append(logs, f.keyLogs[i])
		}
	}
	return logs, nil
}

func (f *fakeStore) AppendBillingLog(_ context.Context, log domain.BillingLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.billingLogs = append(f.billingLogs, log)
	return nil
}

func (f *fakeStore) ListBillingLogs(_ context.Context, accountID string, limit int64) ([]domain.BillingLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var logs []domain.BillingLog
	for i := len(f.billingLogs) - 1; i >= 0 && int64(len(logs)) < limit; i-- {
		if f.billingLogs[i].AccountID == accountID {
			logs = append(logs, f.billingLogs[i])
		}
	}
	return logs, nil
}

func (f *fakeStore) AppendSecurityLog(_ context.Context, log domain.SecurityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.securityLogs = append(f.securityLogs, log)
	return nil
}

func (f *fakeStore) ListSecurityLogs(_ context.Context, accountID string, limit int64) ([]domain.SecurityLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var logs []domain.SecurityLog
	for i := len(f.securityLogs) - 1; i >= 0 && int64(len(logs)) < limit; i-- {
		if f.securityLogs[i].AccountID == accountID {
			logs = append(logs, f.securityLogs[i])
		}
	}
	return logs, nil
}

func (f *fakeStore) keyActions(apiKeyID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var actions []string
	for _, log := range f.keyLogs {
		if log.APIKeyID == apiKeyID {
			actions = append(actions, log.Action)
		}
	}
	return actions
}

func (f *fakeStore) securityActions(accountID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var actions []string
	for _, log := range f.securityLogs {
		if log.AccountID == accountID {
			actions = append(actions, log.Action)
		}
	}
	return actions
}
