package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
	"github.com/iliyamo/ev-charging-backend/internal/storage"
	"github.com/iliyamo/ev-charging-backend/internal/validator"
)

func jsonContext(body string) echo.Context {
	e := echo.New()
	e.Validator = validator.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder())
}

func asAppError(t *testing.T, err error) *apperror.Error {
	t.Helper()
	var ae *apperror.Error
	require.True(t, errors.As(err, &ae), "got %T: %v", err, err)
	return ae
}

func TestBind(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		var req startSubscriptionReq
		require.NoError(t, bind(jsonContext(`{"plan_id": 3}`), &req))
		assert.Equal(t, uint64(3), req.PlanID)
	})

	t.Run("malformed json", func(t *testing.T) {
		var req startSubscriptionReq
		ae := asAppError(t, bind(jsonContext(`{"plan_id": `), &req))
		assert.Equal(t, http.StatusBadRequest, ae.HTTPCode)
		assert.Equal(t, "invalid request body", ae.Message)
		details, ok := ae.Details.(map[string]string)
		require.True(t, ok)
		assert.Contains(t, details, "body")
	})

	t.Run("wrong field type", func(t *testing.T) {
		var req startSubscriptionReq
		ae := asAppError(t, bind(jsonContext(`{"plan_id": "three"}`), &req))
		assert.Equal(t, "invalid request body", ae.Message)
	})

	t.Run("fails validation", func(t *testing.T) {
		var req createPortReq
		ae := asAppError(t, bind(jsonContext(`{"connector_type": "CCS9", "max_power_kw": 0}`), &req))
		assert.Equal(t, http.StatusBadRequest, ae.HTTPCode)
		assert.Equal(t, "validation failed", ae.Message)
		details, ok := ae.Details.(map[string]string)
		require.True(t, ok)
		assert.Contains(t, details, "connector_type")
		assert.Contains(t, details, "max_power_kw")
		assert.Contains(t, details, "price_per_kwh")
	})
}

func TestStoreErr(t *testing.T) {
	assert.NoError(t, storeErr(nil, "x", "y"))

	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", fmt.Errorf("get charger: %w", repository.ErrNotFound), http.StatusNotFound, "charger not found"},
		{"conflict", repository.ErrConflict, http.StatusConflict, "charger already exists"},
		{"other", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ae := asAppError(t, storeErr(tc.err, "charger not found", "charger already exists"))
			assert.Equal(t, tc.status, ae.HTTPCode)
			assert.Equal(t, tc.message, ae.Message)
		})
	}

	// without a conflict message a duplicate is unexpected
	ae := asAppError(t, storeErr(repository.ErrConflict, "user not found", ""))
	assert.Equal(t, http.StatusInternalServerError, ae.HTTPCode)
}

func TestMediaErr(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, asAppError(t, mediaErr(storage.ErrNotImage)).HTTPCode)
	assert.Equal(t, "file is too large", asAppError(t, mediaErr(storage.ErrTooLarge)).Message)
	assert.Equal(t, "file is empty", asAppError(t, mediaErr(storage.ErrEmpty)).Message)
	assert.Equal(t, http.StatusInternalServerError, asAppError(t, mediaErr(errors.New("disk full"))).HTTPCode)
}
