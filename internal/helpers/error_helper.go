package helpers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/eventhub/internal/services"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func HTTPStatusText(code int) string {
	return http.StatusText(code)
}

func RespondWithError(c *gin.Context, statusCode int, customMessage string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   HTTPStatusText(statusCode),
		Message: customMessage,
	})
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrMissingFields),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrAlreadyRegistered),
		errors.Is(err, services.ErrTeamSizeViolation),
		errors.Is(err, services.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// RespondWithDomainError writes err using StatusFor. Unexpected errors are
// attached to the context for the request logger and never echoed.
func RespondWithDomainError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		RespondWithError(c, status, "Something went wrong.")
		return
	}
	RespondWithError(c, status, err.Error())
}
