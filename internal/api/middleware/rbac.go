package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// RBAC restricts a route to the given roles. Anonymous requests get
// domain.ErrUnauthorized, authenticated ones with another role
// domain.ErrForbidden.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFrom(c)
			if !p.Authenticated() {
				return domain.ErrUnauthorized
			}
			if _, ok := allowed[p.Role]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
