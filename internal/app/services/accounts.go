package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	"github.com/thepragmaticdev/meco/internal/app/ports"
	"github.com/thepragmaticdev/meco/internal/security/password"
	"github.com/thepragmaticdev/meco/internal/security/token"
)

const (
	actionSignup        = "account.created"
	actionSignin        = "auth.signin"
	actionSigninFailed  = "auth.signin_failed"
	actionProfileUpdate = "account.updated"

	defaultLogPageSize = 50
)

// CustomerProvisioner creates the billing-side customer record for a new
// account and returns its reference.
type CustomerProvisioner interface {
	EnsureCustomer(ctx context.Context, account domain.Account) (string, error)
}

// SignupCommand is transport-agnostic account registration input.
type SignupCommand struct {
	Username string
	Password string
	FullName string
}

// SigninCommand is transport-agnostic credential check input.
type SigninCommand struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

// UpdateProfileCommand carries the mutable account fields.
type UpdateProfileCommand struct {
	FullName                 string
	EmailSubscriptionEnabled bool
	BillingAlertEnabled      bool
}

// AuthenticatedSession is the result of a successful signin.
type AuthenticatedSession struct {
	Token   string
	Expires time.Time
	Account domain.Account
}

// AccountService owns registration, credential checks and account profiles.
type AccountService struct {
	store     ports.AppStore
	hasher    *password.Hasher
	tokens    *token.Provider
	billing   CustomerProvisioner
	tokenTTL  time.Duration
	decoyHash string
	now       func() time.Time
}

// NewAccountService constructs an account service. billing may be nil when no
// payment backend is configured, customers are then provisioned lazily.
func NewAccountService(store ports.AppStore, hasher *password.Hasher, tokens *token.Provider, billing CustomerProvisioner, tokenTTL time.Duration) *AccountService {
	// Verified against on signin for unknown usernames so both branches pay
	// the same hashing cost.
	decoyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		decoyHash = ""
	}
	return &AccountService{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		billing:   billing,
		tokenTTL:  tokenTTL,
		decoyHash: decoyHash,
		now:       time.Now,
	}
}

// Signup registers a new account and provisions its billing customer.
func (s *AccountService) Signup(ctx context.Context, cmd SignupCommand) (domain.Account, error) {
	if err := validateSignup(cmd); err != nil {
		return domain.Account{}, err
	}

	if _, err := s.store.GetAccountByUsername(ctx, cmd.Username); err == nil {
		return domain.Account{}, ErrUsernameTaken
	} else if !errors.Is(err, ports.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("check username: %w", err)
	}

	hash, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:                       uuid.NewString(),
		Username:                 cmd.Username,
		PasswordHash:             hash,
		FullName:                 cmd.FullName,
		EmailSubscriptionEnabled: true,
		BillingAlertEnabled:      false,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if s.billing != nil {
		customerID, err := s.billing.EnsureCustomer(ctx, account)
		if err != nil {
			return domain.Account{}, fmt.Errorf("provision customer: %w", err)
		}
		account.StripeCustomerID = customerID
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		// Concurrent signups can pass the lookup above and still lose to the
		// username uniqueness constraint.
		if errors.Is(err, ports.ErrConflict) {
			return domain.Account{}, ErrUsernameTaken
		}
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.appendSecurityLog(ctx, account.ID, actionSignup, "", "")
	slog.InfoContext(ctx, "account registered", slog.String("username", account.Username))

	account.PasswordHash = ""
	return account, nil
}

// Signin checks credentials and issues an access token.
func (s *AccountService) Signin(ctx context.Context, cmd SigninCommand) (AuthenticatedSession, error) {
	account, err := s.store.GetAccountByUsername(ctx, cmd.Username)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			// Burn a verification against a throwaway hash so an unknown
			// username is not distinguishable from a wrong password by
			// response time.
			_, _ = s.hasher.Verify(cmd.Password, s.decoyHash)
			return AuthenticatedSession{}, ErrInvalidCredentials
		}
		return AuthenticatedSession{}, fmt.Errorf("load account: %w", err)
	}

	ok, err := s.hasher.Verify(cmd.Password, account.PasswordHash)
	if err != nil {
		return AuthenticatedSession{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.appendSecurityLog(ctx, account.ID, actionSigninFailed, cmd.IP, cmd.UserAgent)
		return AuthenticatedSession{}, ErrInvalidCredentials
	}

	signed, err := s.tokens.Generate(domain.Principal{
		AccountID: account.ID,
		Username:  account.Username,
		Roles:     []string{"user"},
	})
	if err != nil {
		return AuthenticatedSession{}, fmt.Errorf("issue token: %w", err)
	}

	s.appendSecurityLog(ctx, account.ID, actionSignin, cmd.IP, cmd.UserAgent)

	account.PasswordHash = ""
	return AuthenticatedSession{
		Token:   signed,
		Expires: s.now().UTC().Add(s.tokenTTL),
		Account: account,
	}, nil
}

// Me returns the caller's account.
func (s *AccountService) Me(ctx context.Context, accountID string) (domain.Account, error) {
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}
	account.PasswordHash = ""
	return account, nil
}

// UpdateProfile updates the mutable profile fields and returns the result.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, cmd UpdateProfileCommand) (domain.Account, error) {
	if cmd.FullName == "" {
		return domain.Account{}, validationErr("Full name must be present.")
	}

	err := s.store.UpdateAccountProfile(ctx, accountID, cmd.FullName, cmd.EmailSubscriptionEnabled, cmd.BillingAlertEnabled)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("update profile: %w", err)
	}

	s.appendSecurityLog(ctx, accountID, actionProfileUpdate, "", "")
	return s.Me(ctx, accountID)
}

// BillingLogs returns the newest billing audit records for the account.
func (s *AccountService) BillingLogs(ctx context.Context, accountID string) (domain.Page[domain.BillingLog], error) {
	logs, err := s.store.ListBillingLogs(ctx, accountID, defaultLogPageSize)
	if err != nil {
		return domain.Page[domain.BillingLog]{}, fmt.Errorf("list billing logs: %w", err)
	}
	return domain.NewPage(logs), nil
}

// SecurityLogs returns the newest security audit records for the account.
func (s *AccountService) SecurityLogs(ctx context.Context, accountID string) (domain.Page[domain.SecurityLog], error) {
	logs, err := s.store.ListSecurityLogs(ctx, accountID, defaultLogPageSize)
	if err != nil {
		return domain.Page[domain.SecurityLog]{}, fmt.Errorf("list security logs: %w", err)
	}
	return domain.NewPage(logs), nil
}

// WriteBillingLogsCSV streams the account's billing trail as CSV.
func (s *AccountService) WriteBillingLogsCSV(ctx context.Context, accountID string, w io.Writer) error {
	logs, err := s.store.ListBillingLogs(ctx, accountID, defaultLogPageSize)
	if err != nil {
		return fmt.Errorf("list billing logs: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"action", "amount", "created_at"}); err != nil {
		return err
	}
	for _, log := range logs {
		if err := writer.Write([]string{log.Action, log.Amount, log.CreatedAt.Format(time.RFC3339)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSecurityLogsCSV streams the account's security trail as CSV.
func (s *AccountService) WriteSecurityLogsCSV(ctx context.Context, accountID string, w io.Writer) error {
	logs, err := s.store.ListSecurityLogs(ctx, accountID, defaultLogPageSize)
	if err != nil {
		return fmt.Errorf("list security logs: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"action", "ip", "user_agent", "created_at"}); err != nil {
		return err
	}
	for _, log := range logs {
		if err := writer.Write([]string{log.Action, log.IP, log.UserAgent, log.CreatedAt.Format(time.RFC3339)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (s *AccountService) appendSecurityLog(ctx context.Context, accountID, action, ip, userAgent string) {
	err := s.store.AppendSecurityLog(ctx, domain.SecurityLog{
		AccountID: accountID,
		Action:    action,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		// Audit writes never fail the request they describe.
		slog.WarnContext(ctx, "append security log failed",
			slog.String("action", action),
			slog.String("account_id", accountID),
			slog.Any("error", err))
	}
}

func validateSignup(cmd SignupCommand) error {
	if _, err := mail.ParseAddress(cmd.Username); err != nil {
		return validationErr("Username must be a valid email address.")
	}
	if len(cmd.Password) < 8 {
		return validationErr("Password must be at least 8 characters.")
	}
	return nil
}
