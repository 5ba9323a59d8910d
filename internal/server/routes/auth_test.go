package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	"github.com/thepragmaticdev/meco/internal/security/token"
)

func newGatedEcho(t *testing.T, provider *token.Provider) (*echo.Echo, *bool) {
	t.Helper()

	e := echo.New()
	e.Use(Authenticate(provider))

	invoked := false
	e.GET("/open", func(c echo.Context) error {
		invoked = true
		if principal, ok := principalFrom(c); ok {
			return c.String(http.StatusOK, principal.AccountID)
		}
		return c.String(http.StatusOK, "anonymous")
	})
	e.GET("/guarded", RequireAccount(func(c echo.Context) error {
		invoked = true
		return c.NoContent(http.StatusOK)
	}))
	return e, &invoked
}

func assertUnauthorizedEnvelope(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body domain.ApiError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body != domain.ErrInvalidExpiredToken {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestAuthenticatePassesAnonymousRequestsThrough(t *testing.T) {
	t.Parallel()

	e, invoked := newGatedEcho(t, token.NewProvider("gate-secret", time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !*invoked {
		t.Fatalf("handler not reached for anonymous request")
	}
	if rec.Body.String() != "anonymous" {
		t.Fatalf("principal attached to anonymous request: %q", rec.Body.String())
	}
}

func TestAuthenticateAttachesPrincipal(t *testing.T) {
	t.Parallel()

	provider := token.NewProvider("gate-secret", time.Hour)
	e, _ := newGatedEcho(t, provider)

	signed, err := provider.Generate(domain.Principal{AccountID: "acc-1", Username: "anna@mail.com"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signed)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "acc-1" {
		t.Fatalf("principal not attached: %q", rec.Body.String())
	}
}

func TestAuthenticateRejectsInvalidTokenAndHaltsChain(t *testing.T) {
	t.Parallel()

	e, invoked := newGatedEcho(t, token.NewProvider("gate-secret", time.Hour))

	for _, header := range []string{
		"Bearer not-a-token",
		"Basic dXNlcjpwYXNz",
		"Bearer ",
	} {
		req := httptest.NewRequest(http.MethodGet, "/open", nil)
		req.Header.Set(echo.HeaderAuthorization, header)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assertUnauthorizedEnvelope(t, rec)
		if *invoked {
			t.Fatalf("handler reached despite invalid credentials %q", header)
		}
	}
}

func TestAuthenticateRejectsTokenSignedWithOtherSecret(t *testing.T) {
	t.Parallel()

	e, invoked := newGatedEcho(t, token.NewProvider("gate-secret", time.Hour))

	foreign, err := token.NewProvider("other-secret", time.Hour).Generate(domain.Principal{AccountID: "acc-1"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+foreign)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assertUnauthorizedEnvelope(t, rec)
	if *invoked {
		t.Fatalf("handler reached despite foreign token")
	}
}

func TestRequireAccountRejectsAnonymousCallers(t *testing.T) {
	t.Parallel()

	e, invoked := newGatedEcho(t, token.NewProvider("gate-secret", time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assertUnauthorizedEnvelope(t, rec)
	if *invoked {
		t.Fatalf("guarded handler reached anonymously")
	}
}
