package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thepragmaticdev/meco/internal/app/domain"
)

// ErrInvalidToken means the bearer token failed signature, expiry or shape checks.
var ErrInvalidToken = errors.New("invalid or expired token")

const issuer = "meco"

// Claims is the JWT payload carried by every meco access token.
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
}

// Provider signs and verifies access tokens with a shared HMAC secret.
type Provider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewProvider builds a token provider. ttl bounds the lifetime of issued tokens.
func NewProvider(secret string, ttl time.Duration) *Provider {
	return &Provider{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate issues a signed token for the account.
func (p *Provider) Generate(principal domain.Principal) (string, error) {
	now := p.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.AccountID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		Username: principal.Username,
		Roles:    principal.Roles,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies the token and returns the principal it carries.
func (p *Provider) Validate(tokenString string) (domain.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(func() time.Time { return p.now() }),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return domain.Principal{}, ErrInvalidToken
	}

	return domain.Principal{
		AccountID: claims.Subject,
		Username:  claims.Username,
		Roles:     claims.Roles,
	}, nil
}

// ResolveFromHeader extracts the bearer token from an Authorization header
// value. It returns empty string when no credentials were presented at all,
// and ErrInvalidToken when the header is present but not a bearer scheme.
func ResolveFromHeader(header string) (string, error) {
	if header == "" {
		return "", nil
	}
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return "", ErrInvalidToken
	}
	return tokenString, nil
}
