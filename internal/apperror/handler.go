package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorBody is the error envelope shared by every endpoint.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Errors     any    `json:"errors"`
}

// Resolve maps any error to an *Error. Echo's own errors (unknown route,
// method not allowed, bind failures) keep their status.
func Resolve(err error) *Error {
	if e, ok := As(err); ok {
		return e
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return Wrap(he.Internal, codeForStatus(he.Code), msg, he.Code)
	}
	return Internal(err)
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	}
	if status >= 500 {
		return CodeInternal
	}
	return CodeValidation
}

// HTTPErrorHandler renders every uncaught error as an ErrorBody.
func HTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		e := Resolve(err)
		if e.HTTPCode >= 500 {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		body := ErrorBody{
			StatusCode: e.HTTPCode,
			Success:    false,
			Message:    e.Message,
			Errors:     e.Details,
		}
		if body.Errors == nil {
			body.Errors = []any{}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(e.HTTPCode)
		} else {
			err = c.JSON(e.HTTPCode, body)
		}
		if err != nil {
			log.Error("write error response", zap.Error(err))
		}
	}
}
