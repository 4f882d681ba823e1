package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/storefront/storefront-api/internal/api/handler"
	"github.com/storefront/storefront-api/internal/core/domain"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes.
//   - Logs unexpected errors without leaking details to the client.
//   - Renders the failure envelope: {"success": false, "message": "...", "data": {}}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, handler.Failure(msg))
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, unknown routes, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			log.Debug().Err(he.Internal).Str("path", c.Path()).Msg("request rejected")
		}
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	var ae *domain.ArgumentError
	if errors.As(err, &ae) {
		return http.StatusBadRequest, ae.Error()
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Not authorized"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Access forbidden"
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, domain.ErrCartLineNotFound):
		return http.StatusNotFound, "Cart item not found"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, domain.ErrRequestInFlight):
		return http.StatusConflict, "Request already in progress"
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	return http.StatusInternalServerError, "Internal server error"
}
