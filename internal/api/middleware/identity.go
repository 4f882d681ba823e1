package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
)

const (
	principalKey = "principal"
	bearerScheme = "Bearer"
)

// Identity resolves the bearer credential into a domain.Principal and stores
// it on the context. It never rejects a request: a missing, malformed or
// invalid credential leaves the request anonymous and the operation decides
// whether that is allowed.
func Identity(verifier ports.TokenVerifier, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}

			parts := strings.Split(header, " ")
			if len(parts) != 2 || parts[0] != bearerScheme {
				log.Debug().
					Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
					Msg("malformed authorization header")
				return next(c)
			}

			p, err := verifier.Verify(parts[1])
			if err != nil {
				log.Warn().
					Err(err).
					Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
					Str("path", c.Path()).
					Msg("bearer token rejected")
				return next(c)
			}

			SetPrincipal(c, p)
			return next(c)
		}
	}
}

// SetPrincipal attaches p to the request context.
func SetPrincipal(c echo.Context, p domain.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the principal set by Identity, or the zero Principal
// for anonymous requests.
func PrincipalFrom(c echo.Context) domain.Principal {
	p, _ := c.Get(principalKey).(domain.Principal)
	return p
}
