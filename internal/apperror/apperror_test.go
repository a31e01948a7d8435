package apperror

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolve(t *testing.T) {
	cause := errors.New("db down")

	e := Resolve(Internal(cause))
	assert.Equal(t, http.StatusInternalServerError, e.HTTPCode)
	assert.ErrorIs(t, e, cause)

	e = Resolve(echo.NewHTTPError(http.StatusNotFound, "Not Found"))
	assert.Equal(t, CodeNotFound, e.Code)
	assert.Equal(t, "Not Found", e.Message)

	e = Resolve(echo.ErrMethodNotAllowed)
	assert.Equal(t, http.StatusMethodNotAllowed, e.HTTPCode)
	assert.Equal(t, CodeValidation, e.Code)

	e = Resolve(cause)
	assert.Equal(t, CodeInternal, e.Code)
}

func TestLimitExceededIsForbiddenStatus(t *testing.T) {
	e := LimitExceeded("charger limit reached for your plan")
	assert.Equal(t, http.StatusForbidden, e.HTTPCode)
	assert.True(t, Is(e, CodeLimitExceeded))
	assert.False(t, Is(e, CodeForbidden))
}

func TestWithDetailsCopies(t *testing.T) {
	base := Validation("validation failed")
	withD := base.WithDetails(map[string]string{"email": "this field is required"})
	assert.Nil(t, base.Details)
	assert.NotNil(t, withD.Details)
}

func render(t *testing.T, err error, method string) (*httptest.ResponseRecorder, ErrorBody) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/x", nil)
	rec := httptest.NewRecorder()
	HTTPErrorHandler(zap.NewNop())(err, e.NewContext(req, rec))

	var body ErrorBody
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHTTPErrorHandlerEnvelope(t *testing.T) {
	rec, body := render(t, Conflict("license plate already in use"), http.MethodPost)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 409, body.StatusCode)
	assert.False(t, body.Success)
	assert.Equal(t, "license plate already in use", body.Message)
	assert.Equal(t, []any{}, body.Errors)

	rec, body = render(t, Validation("validation failed").WithDetails(map[string]string{"lat": "this field is required"}), http.MethodPost)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"lat": "this field is required"}, body.Errors)
}

func TestHTTPErrorHandlerHidesInternalCause(t *testing.T) {
	rec, body := render(t, errors.New("dial tcp 10.0.0.3:3306: refused"), http.MethodGet)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestHTTPErrorHandlerHead(t *testing.T) {
	rec, _ := render(t, NotFound("charger not found"), http.MethodHead)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
