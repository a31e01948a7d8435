package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
	"github.com/iliyamo/ev-charging-backend/internal/utils"
)

// AccessCookie is the cookie carrying the access token.
const AccessCookie = "accessToken"

type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// errUnauthorized is returned for every authentication failure so callers
// cannot tell a bad signature from a deleted account.
var errUnauthorized = apperror.Unauthenticated("unauthorized")

// Authenticate resolves the access token (cookie first, then Bearer header)
// to a live user and stores the public copy as the request principal.
func Authenticate(secret string, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := accessToken(c)
			if raw == "" {
				return errUnauthorized
			}
			id, _, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return errUnauthorized
			}
			u, err := users.GetByID(c.Request().Context(), id)
			if errors.Is(err, repository.ErrNotFound) {
				return errUnauthorized
			}
			if err != nil {
				return apperror.Internal(err)
			}
			SetPrincipal(c, u.Public())
			return next(c)
		}
	}
}

func accessToken(c echo.Context) string {
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
