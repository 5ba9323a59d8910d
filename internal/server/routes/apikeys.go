package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	"github.com/thepragmaticdev/meco/internal/app/services"
)

// APIKeyRoutes registers the API key management endpoints.
type APIKeyRoutes struct {
	keys *services.APIKeyService
}

// NewAPIKeyRoutes constructs API key routes.
func NewAPIKeyRoutes(keys *services.APIKeyService) *APIKeyRoutes {
	return &APIKeyRoutes{keys: keys}
}

// RegisterRoutes registers the API key endpoints.
func (a *APIKeyRoutes) RegisterRoutes(s *echo.Echo) {
	group := s.Group("/v1/api-keys", RequireAccount)
	group.POST("", a.handleCreate)
	group.GET("", a.handleList)
	group.GET("/count", a.handleCount)
	group.GET("/:id", a.handleGet)
	group.PUT("/:id", a.handleUpdate)
	group.DELETE("/:id", a.handleDelete)
	group.GET("/:id/logs", a.handleLogs)
	group.GET("/:id/logs/download", a.handleLogsCSV)
}

type createKeyRequest struct {
	Name           string                `json:"name"`
	Scope          *domain.Scope         `json:"scope"`
	AccessPolicies []domain.AccessPolicy `json:"accessPolicies"`
}

type updateKeyRequest struct {
	Name           string                `json:"name"`
	Scope          *domain.Scope         `json:"scope"`
	AccessPolicies []domain.AccessPolicy `json:"accessPolicies"`
	Enabled        *bool                 `json:"enabled"`
}

type keyLogResponse struct {
	Action    string `json:"action"`
	CreatedAt string `json:"createdAt"`
}

type apiKeyResponse struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Prefix         string                `json:"prefix"`
	Key            string                `json:"key,omitempty"`
	Scope          domain.Scope          `json:"scope"`
	AccessPolicies []domain.AccessPolicy `json:"accessPolicies"`
	Enabled        bool                  `json:"enabled"`
	CreatedAt      string                `json:"createdAt"`
	LastUsedAt     string                `json:"lastUsedAt,omitempty"`
}

func toAPIKeyResponse(key domain.APIKey) apiKeyResponse {
	policies := key.AccessPolicies
	if policies == nil {
		policies = []domain.AccessPolicy{}
	}
	resp := apiKeyResponse{
		ID:             key.ID,
		Name:           key.Name,
		Prefix:         key.Prefix,
		Key:            key.Key,
		Scope:          key.Scope,
		AccessPolicies: policies,
		Enabled:        key.Enabled,
		CreatedAt:      key.CreatedAt.UTC().Format(timeFormat),
	}
	if !key.LastUsedAt.IsZero() {
		resp.LastUsedAt = key.LastUsedAt.UTC().Format(timeFormat)
	}
	return resp
}

func (a *APIKeyRoutes) handleCreate(c echo.Context) error {
	principal, _ := principalFrom(c)

	var req createKeyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ApiError{
			Status:  domain.StatusBadRequest,
			Message: "Malformed request body.",
		})
	}

	key, err := a.keys.Create(c.Request().Context(), principal.AccountID, services.CreateKeyCommand{
		Name:           req.Name,
		Scope:          req.Scope,
		AccessPolicies: req.AccessPolicies,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toAPIKeyResponse(key))
}

func (a *APIKeyRoutes) handleList(c echo.Context) error {
	principal, _ := principalFrom(c)
	keys, err := a.keys.List(c.Request().Context(), principal.AccountID)
	if err != nil {
		return writeServiceError(c, err)
	}

	rows := make([]apiKeyResponse, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, toAPIKeyResponse(key))
	}
	return c.JSON(http.StatusOK, domain.NewPage(rows))
}

func (a *APIKeyRoutes) handleGet(c echo.Context) error {
	principal, _ := principalFrom(c)
	key, err := a.keys.Get(c.Request().Context(), c.Param("id"), principal.AccountID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toAPIKeyResponse(key))
}

func (a *APIKeyRoutes) handleUpdate(c echo.Context) error {
	principal, _ := principalFrom(c)

	var req updateKeyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ApiError{
			Status:  domain.StatusBadRequest,
			Message: "Malformed request body.",
		})
	}

	key, err := a.keys.Update(c.Request().Context(), c.Param("id"), principal.AccountID, services.UpdateKeyCommand{
		Name:           req.Name,
		Scope:          req.Scope,
		AccessPolicies: req.AccessPolicies,
		Enabled:        req.Enabled,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toAPIKeyResponse(key))
}

func (a *APIKeyRoutes) handleCount(c echo.Context) error {
	principal, _ := principalFrom(c)
	count, err := a.keys.Count(c.Request().Context(), principal.AccountID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, count)
}

func (a *APIKeyRoutes) handleLogs(c echo.Context) error {
	principal, _ := principalFrom(c)
	page, err := a.keys.Logs(c.Request().Context(), c.Param("id"), principal.AccountID)
	if err != nil {
		return writeServiceError(c, err)
	}

	rows := make([]keyLogResponse, 0, len(page.Content))
	for _, log := range page.Content {
		rows = append(rows, keyLogResponse{
			Action:    log.Action,
			CreatedAt: log.CreatedAt.UTC().Format(timeFormat),
		})
	}
	return c.JSON(http.StatusOK, domain.NewPage(rows))
}

func (a *APIKeyRoutes) handleLogsCSV(c echo.Context) error {
	principal, _ := principalFrom(c)

	// Ownership check before any CSV bytes go out so an unknown key still
	// gets a JSON 404.
	if _, err := a.keys.Get(c.Request().Context(), c.Param("id"), principal.AccountID); err != nil {
		return writeServiceError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="key-logs.csv"`)
	return a.keys.WriteLogsCSV(c.Request().Context(), c.Param("id"), principal.AccountID, c.Response())
}

func (a *APIKeyRoutes) handleDelete(c echo.Context) error {
	principal, _ := principalFrom(c)
	if err := a.keys.Delete(c.Request().Context(), c.Param("id"), principal.AccountID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
