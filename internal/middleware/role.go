package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/model"
)

// RequireRole lets the request through only when the principal holds one of
// roles. It must run after Authenticate.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := PrincipalFrom(c)
			if !ok {
				return errUnauthorized
			}
			if !allowed[u.Role] {
				return apperror.Forbidden("you do not have permission to perform this action")
			}
			return next(c)
		}
	}
}
