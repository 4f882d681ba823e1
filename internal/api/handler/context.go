package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storefront/storefront-api/internal/api/middleware"
	"github.com/storefront/storefront-api/internal/core/domain"
)

const headerIdempotencyKey = "Idempotency-Key"

// principal returns the identity resolved by the Identity middleware. It is
// the zero Principal for anonymous requests; services reject those.
func principal(c echo.Context) domain.Principal {
	return middleware.PrincipalFrom(c)
}

// bindAndValidate decodes the JSON body into req and runs the struct
// validator registered on the Echo instance.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
