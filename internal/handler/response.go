package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"corridor/internal/domain"
	"corridor/internal/ledger"
	"corridor/internal/provider"
	"corridor/internal/repository"
	"corridor/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidCurrency),
		errors.Is(err, service.ErrInvalidTenantID),
		errors.Is(err, service.ErrUnknownCorridor),
		errors.Is(err, service.ErrInvalidCaseID),
		errors.Is(err, service.ErrInvalidResolution):
		return http.StatusBadRequest

	// Signature failures are rejected with no state change
	case errors.Is(err, provider.ErrSignatureInvalid):
		return http.StatusUnauthorized

	// Conflict errors
	case errors.Is(err, service.ErrOrderNotCancellable),
		errors.Is(err, service.ErrOrderNotRefundable),
		errors.Is(err, service.ErrCaseAlreadyResolved),
		errors.Is(err, service.ErrOrderBusy),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict

	// Provider routing misconfiguration
	case errors.Is(err, provider.ErrUnknownProvider):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
