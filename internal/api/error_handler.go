package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pulsechat/chat-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Timestamp time.Time      `json:"timestamp"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Status    int            `json:"status"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain error codes to their HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope with timestamp, code, and message.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := resolveError(err, log, c)
		resp.Timestamp = time.Now().UTC()
		_ = c.JSON(resp.Status, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) errorResponse {
	// Echo's own errors (404 from the router, 405, bind failures, ...).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return errorResponse{
			Code:    http.StatusText(he.Code),
			Message: fmt.Sprintf("%v", he.Message),
			Status:  he.Code,
		}
	}

	var de *domain.Error
	if errors.As(err, &de) {
		resp := errorResponse{
			Code:    string(de.Code),
			Message: de.Message,
			Details: de.Details,
			Status:  statusFor(de.Code),
		}
		// Remember-me failures are answered exactly like credential failures
		// so a thief cannot tell whether reuse detection fired.
		if de.Code == domain.ErrCodeRememberMeInvalid {
			resp.Code = string(domain.ErrCodeInvalidCredentials)
			resp.Message = "invalid credentials"
			resp.Details = nil
		}
		return resp
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return errorResponse{
		Code:    string(domain.ErrCodeInternal),
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
	}
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrCodeMalformedRequest:
		return http.StatusBadRequest
	case domain.ErrCodeInvalidCredentials,
		domain.ErrCodeUnauthenticated,
		domain.ErrCodeSessionExpired,
		domain.ErrCodeRememberMeInvalid:
		return http.StatusUnauthorized
	case domain.ErrCodeForbidden:
		return http.StatusForbidden
	case domain.ErrCodeUserNotFound:
		return http.StatusNotFound
	case domain.ErrCodeUserExists, domain.ErrCodeTooManySessions:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
