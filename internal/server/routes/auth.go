package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	"github.com/thepragmaticdev/meco/internal/app/services"
	"github.com/thepragmaticdev/meco/internal/observability"
	"github.com/thepragmaticdev/meco/internal/security/token"
)

const principalContextKey = "principal"

// TokenValidator turns a bearer token into a request principal.
type TokenValidator interface {
	Validate(tokenString string) (domain.Principal, error)
}

// Authenticate resolves bearer credentials on every request. Requests without
// an Authorization header continue anonymously, requests with a bad token are
// rejected before any handler runs.
func Authenticate(tokens TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenString, err := token.ResolveFromHeader(header)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, domain.ErrInvalidExpiredToken)
			}
			if tokenString == "" {
				return next(c)
			}

			principal, err := tokens.Validate(tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, domain.ErrInvalidExpiredToken)
			}

			ctx := observability.WithRequestIdentity(c.Request().Context(), principal.AccountID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(principalContextKey, principal)
			return next(c)
		}
	}
}

// RequireAccount guards routes that need an authenticated principal.
func RequireAccount(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := principalFrom(c); !ok {
			return c.JSON(http.StatusUnauthorized, domain.ErrInvalidExpiredToken)
		}
		return next(c)
	}
}

func principalFrom(c echo.Context) (domain.Principal, bool) {
	principal, ok := c.Get(principalContextKey).(domain.Principal)
	return principal, ok
}

// AuthRoutes registers the credential endpoints.
type AuthRoutes struct {
	accounts *services.AccountService
}

// NewAuthRoutes constructs auth routes.
func NewAuthRoutes(accounts *services.AccountService) *AuthRoutes {
	return &AuthRoutes{accounts: accounts}
}

// RegisterRoutes registers the credential endpoints.
func (a *AuthRoutes) RegisterRoutes(s *echo.Echo) {
	s.POST("/v1/auth/signup", a.handleSignup)
	s.POST("/v1/auth/signin", a.handleSignin)
}

type signupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type signinRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string          `json:"token"`
	Expires string          `json:"expires"`
	Account accountResponse `json:"account"`
}

func (a *AuthRoutes) handleSignup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ApiError{
			Status:  domain.StatusBadRequest,
			Message: "Malformed request body.",
		})
	}

	account, err := a.accounts.Signup(c.Request().Context(), services.SignupCommand{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toAccountResponse(account))
}

func (a *AuthRoutes) handleSignin(c echo.Context) error {
	var req signinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ApiError{
			Status:  domain.StatusBadRequest,
			Message: "Malformed request body.",
		})
	}

	session, err := a.accounts.Signin(c.Request().Context(), services.SigninCommand{
		Username:  req.Username,
		Password:  req.Password,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, sessionResponse{
		Token:   session.Token,
		Expires: session.Expires.UTC().Format(timeFormat),
		Account: toAccountResponse(session.Account),
	})
}
