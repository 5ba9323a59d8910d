package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thepragmaticdev/meco/internal/app/domain"
	"github.com/thepragmaticdev/meco/internal/app/services"
)

// writeServiceError maps service failures onto the JSON error envelope.
func writeServiceError(c echo.Context, err error) error {
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, domain.ApiError{
			Status:  domain.StatusBadRequest,
			Message: validation.Message,
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, domain.ApiError{
			Status:  domain.StatusUnauthorized,
			Message: "Invalid username or password.",
		})
	case errors.Is(err, services.ErrUsernameTaken):
		return c.JSON(http.StatusConflict, domain.ApiError{
			Status:  domain.StatusConflict,
			Message: "Username is already taken.",
		})
	case errors.Is(err, services.ErrAccountNotFound):
		return c.JSON(http.StatusNotFound, domain.ApiError{
			Status:  domain.StatusNotFound,
			Message: "Account not found.",
		})
	case errors.Is(err, services.ErrKeyNotFound):
		return c.JSON(http.StatusNotFound, domain.ApiError{
			Status:  domain.StatusNotFound,
			Message: "Api key not found.",
		})
	default:
		return err
	}
}
