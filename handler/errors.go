package handler

import (
	"errors"
	"net/http"

	"github.com/mstgnz/storegate/infra/config"
	"github.com/mstgnz/storegate/infra/logger"
	"github.com/mstgnz/storegate/infra/response"
	"github.com/mstgnz/storegate/provider"
)

// statusForError maps provider error kinds to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, provider.ErrUnsupportedProvider):
		return http.StatusNotFound
	case errors.Is(err, config.ErrConfigNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, provider.ErrInvalidConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, provider.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, provider.ErrOutcomeUnknown):
		// the provider may have acted; clients must query before retrying
		return http.StatusAccepted
	case errors.Is(err, provider.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// writeProviderError writes err with its status and machine readable code
func writeProviderError(w http.ResponseWriter, providerName, message string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Warn(message, logger.LogContext{
			Provider: providerName,
			Fields: map[string]any{
				"error":      err.Error(),
				"error_code": provider.ErrorCode(err),
				"status":     status,
			},
		})
	}
	response.Failure(w, status, message, provider.ErrorCode(err), err)
}
