package routes

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	"github.com/thepragmaticdev/meco/internal/app/services"
)

const timeFormat = time.RFC3339

// AccountRoutes registers the account profile and audit endpoints.
type AccountRoutes struct {
	accounts *services.AccountService
}

// NewAccountRoutes constructs account routes.
func NewAccountRoutes(accounts *services.AccountService) *AccountRoutes {
	return &AccountRoutes{accounts: accounts}
}

// RegisterRoutes registers the account endpoints.
func (a *AccountRoutes) RegisterRoutes(s *echo.Echo) {
	group := s.Group("/v1/accounts", RequireAccount)
	group.GET("/me", a.handleMe)
	group.PUT("/me", a.handleUpdate)
	group.GET("/me/billing/logs", a.handleBillingLogs)
	group.GET("/me/billing/logs/download", a.handleBillingLogsCSV)
	group.GET("/me/security/logs", a.handleSecurityLogs)
	group.GET("/me/security/logs/download", a.handleSecurityLogsCSV)
}

type accountResponse struct {
	ID                       string `json:"id"`
	Username                 string `json:"username"`
	FullName                 string `json:"fullName"`
	EmailSubscriptionEnabled bool   `json:"emailSubscriptionEnabled"`
	BillingAlertEnabled      bool   `json:"billingAlertEnabled"`
	SubscriptionStatus       string `json:"subscriptionStatus,omitempty"`
	Delinquent               bool   `json:"delinquent"`
	CreatedAt                string `json:"createdAt"`
}

type updateAccountRequest struct {
	FullName                 string `json:"fullName"`
	EmailSubscriptionEnabled bool   `json:"emailSubscriptionEnabled"`
	BillingAlertEnabled      bool   `json:"billingAlertEnabled"`
}

type billingLogResponse struct {
	Action    string `json:"action"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"createdAt"`
}

type securityLogResponse struct {
	Action    string `json:"action"`
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	CreatedAt string `json:"createdAt"`
}

func toAccountResponse(account domain.Account) accountResponse {
	return accountResponse{
		ID:                       account.ID,
		Username:                 account.Username,
		FullName:                 account.FullName,
		EmailSubscriptionEnabled: account.EmailSubscriptionEnabled,
		BillingAlertEnabled:      account.BillingAlertEnabled,
		SubscriptionStatus:       account.SubscriptionStatus,
		Delinquent:               account.Delinquent,
		CreatedAt:                account.CreatedAt.UTC().Format(timeFormat),
	}
}

func (a *AccountRoutes) handleMe(c echo.Context) error {
	principal, _ := principalFrom(c)
	account, err := a.accounts.Me(c.Request().Context(), principal.AccountID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

func (a *AccountRoutes) handleUpdate(c echo.Context) error {
	principal, _ := principalFrom(c)

	var req updateAccountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ApiError{
			Status:  domain.StatusBadRequest,
			Message: "Malformed request body.",
		})
	}

	account, err := a.accounts.UpdateProfile(c.Request().Context(), principal.AccountID, services.UpdateProfileCommand{
		FullName:                 req.FullName,
		EmailSubscriptionEnabled: req.EmailSubscriptionEnabled,
		BillingAlertEnabled:      req.BillingAlertEnabled,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

func (a *AccountRoutes) handleBillingLogs(c echo.Context) error {
	principal, _ := principalFrom(c)
	page, err := a.accounts.BillingLogs(c.Request().Context(), principal.AccountID)
	if err != nil {
		return writeServiceError(c, err)
	}

	rows := make([]billingLogResponse, 0, len(page.Content))
	for _, log := range page.Content {
		rows = append(rows, billingLogResponse{
			Action:    log.Action,
			Amount:    log.Amount,
			CreatedAt: log.CreatedAt.UTC().Format(timeFormat),
		})
	}
	return c.JSON(http.StatusOK, domain.NewPage(rows))
}

func (a *AccountRoutes) handleBillingLogsCSV(c echo.Context) error {
	principal, _ := principalFrom(c)

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="billing-logs.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	return a.accounts.WriteBillingLogsCSV(c.Request().Context(), principal.AccountID, c.Response())
}

func (a *AccountRoutes) handleSecurityLogs(c echo.Context) error {
	principal, _ := principalFrom(c)
	page, err := a.accounts.SecurityLogs(c.Request().Context(), principal.AccountID)
	if err != nil {
		return writeServiceError(c, err)
	}

	rows := make([]securityLogResponse, 0, len(page.Content))
	for _, log := range page.Content {
		rows = append(rows, securityLogResponse{
			Action:    log.Action,
			IP:        log.IP,
			UserAgent: log.UserAgent,
			CreatedAt: log.CreatedAt.UTC().Format(timeFormat),
		})
	}
	return c.JSON(http.StatusOK, domain.NewPage(rows))
}

func (a *AccountRoutes) handleSecurityLogsCSV(c echo.Context) error {
	principal, _ := principalFrom(c)

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="security-logs.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	return a.accounts.WriteSecurityLogsCSV(c.Request().Context(), principal.AccountID, c.Response())
}
