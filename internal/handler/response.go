package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/middleware"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
	"github.com/iliyamo/ev-charging-backend/internal/storage"
)

// storeTimeout bounds every database round trip made by a handler.
const storeTimeout = 5 * time.Second

// Envelope wraps every successful response.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{
		StatusCode: status,
		Success:    status < 400,
		Message:    message,
		Data:       data,
	})
}

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), storeTimeout)
}

// bind decodes the body into req and runs struct validation.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if msg, ok := he.Message.(string); ok {
				return apperror.Validation("invalid request body").WithDetails(map[string]string{"body": msg})
			}
		}
		return apperror.Validation("invalid request body")
	}
	return c.Validate(req)
}

// principal is set by the authentication gate on every route that uses it.
func principal(c echo.Context) (*model.User, error) {
	u, ok := middleware.PrincipalFrom(c)
	if !ok {
		return nil, apperror.Unauthenticated("unauthorized")
	}
	return u, nil
}

// storeErr maps repository sentinels to client errors.
func storeErr(err error, notFound, conflict string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(notFound)
	case errors.Is(err, repository.ErrConflict) && conflict != "":
		return apperror.Conflict(conflict)
	}
	return apperror.Internal(err)
}

// MediaStore persists uploaded images.
type MediaStore interface {
	SaveImage(ctx context.Context, prefix string, fh *multipart.FileHeader) (string, error)
	Delete(ctx context.Context, url string) error
}

func mediaErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotImage):
		return apperror.Validation("file must be an image")
	case errors.Is(err, storage.ErrTooLarge):
		return apperror.Validation("file is too large")
	case errors.Is(err, storage.ErrEmpty):
		return apperror.Validation("file is empty")
	}
	return apperror.Internal(err)
}
