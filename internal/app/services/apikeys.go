package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	"github.com/thepragmaticdev/meco/internal/app/ports"
)

const (
	keyPrefix     = "mec_"
	keySecretLen  = 24
	keyPrefixLen  = 7
	keyNameMin    = 3
	keyNameMax    = 20
	maxKeyPerUser = 10

	actionKeyCreated = "key.created"
	actionKeyUpdated = "key.updated"
	actionKeyDeleted = "key.deleted"
	actionKeyEnabled = "key.enabled"
	actionKeyFrozen  = "key.disabled"
)

// CreateKeyCommand is transport-agnostic API key creation input.
type CreateKeyCommand struct {
	Name           string
	Scope          *domain.Scope
	AccessPolicies []domain.AccessPolicy
}

// UpdateKeyCommand is transport-agnostic API key update input. Enabled is
// optional so a rename does not silently re-enable a frozen key.
type UpdateKeyCommand struct {
	Name           string
	Scope          *domain.Scope
	AccessPolicies []domain.AccessPolicy
	Enabled        *bool
}

// APIKeyService issues, lists and revokes API keys. Raw secrets are returned
// exactly once at creation, only their SHA-256 digest is stored.
type APIKeyService struct {
	store ports.AppStore
	now   func() time.Time
}

// NewAPIKeyService constructs an API key service.
func NewAPIKeyService(store ports.AppStore) *APIKeyService {
	return &APIKeyService{store: store, now: time.Now}
}

// Create issues a new key for the account. The returned key carries the raw
// secret, later reads only expose the prefix.
func (s *APIKeyService) Create(ctx context.Context, accountID string, cmd CreateKeyCommand) (domain.APIKey, error) {
	if err := validateCreateKey(cmd); err != nil {
		return domain.APIKey{}, err
	}

	count, err := s.store.CountAPIKeys(ctx, accountID)
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("count keys: %w", err)
	}
	if count >= maxKeyPerUser {
		return domain.APIKey{}, validationErr("Key limit reached.")
	}

	raw, err := generateKeySecret()
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("generate key: %w", err)
	}
	digest := sha256.Sum256([]byte(raw))

	key := domain.APIKey{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Name:           cmd.Name,
		Prefix:         raw[:keyPrefixLen],
		Key:            raw,
		Scope:          *cmd.Scope,
		AccessPolicies: cmd.AccessPolicies,
		Enabled:        true,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.store.CreateAPIKey(ctx, key, hex.EncodeToString(digest[:])); err != nil {
		return domain.APIKey{}, fmt.Errorf("create key: %w", err)
	}

	s.audit(ctx, accountID, actionKeyCreated)
	s.keyLog(ctx, key.ID, actionKeyCreated)
	slog.InfoContext(ctx, "api key created",
		slog.String("key_id", key.ID),
		slog.String("prefix", key.Prefix))
	return key, nil
}

// Update renames a key, replaces its scope and access policies, and
// optionally toggles it on or off.
func (s *APIKeyService) Update(ctx context.Context, id, accountID string, cmd UpdateKeyCommand) (domain.APIKey, error) {
	if err := validateKeyFields(cmd.Name, cmd.Scope, cmd.AccessPolicies); err != nil {
		return domain.APIKey{}, err
	}

	key, err := s.Get(ctx, id, accountID)
	if err != nil {
		return domain.APIKey{}, err
	}

	wasEnabled := key.Enabled
	key.Name = strings.TrimSpace(cmd.Name)
	key.Scope = *cmd.Scope
	key.AccessPolicies = cmd.AccessPolicies
	if cmd.Enabled != nil {
		key.Enabled = *cmd.Enabled
	}

	if err := s.store.UpdateAPIKey(ctx, key); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.APIKey{}, ErrKeyNotFound
		}
		return domain.APIKey{}, fmt.Errorf("update key: %w", err)
	}

	s.audit(ctx, accountID, actionKeyUpdated)
	s.keyLog(ctx, key.ID, actionKeyUpdated)
	if wasEnabled != key.Enabled {
		if key.Enabled {
			s.keyLog(ctx, key.ID, actionKeyEnabled)
		} else {
			s.keyLog(ctx, key.ID, actionKeyFrozen)
		}
	}
	return key, nil
}

// Count returns how many keys the account owns.
func (s *APIKeyService) Count(ctx context.Context, accountID string) (int64, error) {
	count, err := s.store.CountAPIKeys(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("count keys: %w", err)
	}
	return count, nil
}

// Logs returns the newest-first audit trail of one key owned by the account.
func (s *APIKeyService) Logs(ctx context.Context, id, accountID string) (domain.Page[domain.KeyLog], error) {
	if _, err := s.Get(ctx, id, accountID); err != nil {
		return domain.Page[domain.KeyLog]{}, err
	}
	logs, err := s.store.ListKeyLogs(ctx, id, defaultLogPageSize)
	if err != nil {
		return domain.Page[domain.KeyLog]{}, fmt.Errorf("list key logs: %w", err)
	}
	return domain.NewPage(logs), nil
}

// WriteLogsCSV streams the key's audit trail as CSV.
func (s *APIKeyService) WriteLogsCSV(ctx context.Context, id, accountID string, w io.Writer) error {
	page, err := s.Logs(ctx, id, accountID)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"action", "created_at"}); err != nil {
		return err
	}
	for _, log := range page.Content {
		if err := writer.Write([]string{log.Action, log.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// List returns the account's keys without raw secrets.
func (s *APIKeyService) List(ctx context.Context, accountID string) ([]domain.APIKey, error) {
	keys, err := s.store.ListAPIKeys(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Get returns one key owned by the account.
func (s *APIKeyService) Get(ctx context.Context, id, accountID string) (domain.APIKey, error) {
	key, err := s.store.GetAPIKey(ctx, id, accountID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.APIKey{}, ErrKeyNotFound
		}
		return domain.APIKey{}, fmt.Errorf("get key: %w", err)
	}
	return key, nil
}

// Delete revokes one key owned by the account.
func (s *APIKeyService) Delete(ctx context.Context, id, accountID string) error {
	if err := s.store.DeleteAPIKey(ctx, id, accountID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("delete key: %w", err)
	}

	s.audit(ctx, accountID, actionKeyDeleted)
	return nil
}

func (s *APIKeyService) keyLog(ctx context.Context, apiKeyID, action string) {
	err := s.store.AppendKeyLog(ctx, domain.KeyLog{
		APIKeyID:  apiKeyID,
		Action:    action,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		slog.WarnContext(ctx, "append key log failed",
			slog.String("key_id", apiKeyID),
			slog.String("action", action),
			slog.Any("error", err))
	}
}

func (s *APIKeyService) audit(ctx context.Context, accountID, action string) {
	err := s.store.AppendSecurityLog(ctx, domain.SecurityLog{
		AccountID: accountID,
		Action:    action,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		slog.WarnContext(ctx, "append security log failed",
			slog.String("action", action),
			slog.Any("error", err))
	}
}

func generateKeySecret() (string, error) {
	buf := make([]byte, keySecretLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}

func validateCreateKey(cmd CreateKeyCommand) error {
	return validateKeyFields(cmd.Name, cmd.Scope, cmd.AccessPolicies)
}

func validateKeyFields(name string, scope *domain.Scope, policies []domain.AccessPolicy) error {
	name = strings.TrimSpace(name)
	if len(name) < keyNameMin || len(name) > keyNameMax {
		return validationErr("Name must be between 3 and 20 characters.")
	}
	if scope == nil {
		return validationErr("Scope must be present.")
	}
	for _, policy := range policies {
		if policy.Name == "" {
			return validationErr("Access policy name must be present.")
		}
		if !validIPv4CIDR(policy.Range) {
			return validationErr(fmt.Sprintf("Access policy range %q must be an IPv4 CIDR block.", policy.Range))
		}
	}
	return nil
}

func validIPv4CIDR(cidr string) bool {
	ip, _, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}
	return ip.To4() != nil && strings.Contains(cidr, ".")
}
