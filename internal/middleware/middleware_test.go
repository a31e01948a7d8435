package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/mocks"
	"github.com/iliyamo/ev-charging-backend/internal/model"
)

const testSecret = "middleware-secret"

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(zap.NewNop())
	return e
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

// as injects u as the principal, standing in for Authenticate.
func as(u *model.User) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if u != nil {
				SetPrincipal(c, u)
			}
			return next(c)
		}
	}
}

func do(e *echo.Echo, method, path string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperror.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

type fixture struct {
	store    *mocks.Store
	alice    *model.User // vehicle owner
	bob      *model.User // charger owner, basic plan
	carol    *model.User // charger owner, no subscription
	basic    *model.Plan
	bobCh    *model.Charger
	carolCh  *model.Charger
	bobPort  *model.ChargerPort
	aliceCar *model.Vehicle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := t.Context()
	s := mocks.NewStore()
	f := &fixture{store: s}

	mk := func(name string, role model.Role) *model.User {
		u := &model.User{Username: name, Email: name + "@example.com", Role: role}
		require.NoError(t, s.Users().Create(ctx, u))
		return u
	}
	f.alice = mk("alice", model.RoleVehicleOwner)
	f.bob = mk("bob", model.RoleChargerOwner)
	f.carol = mk("carol", model.RoleChargerOwner)

	two, four := uint32(2), uint32(4)
	f.basic = &model.Plan{Name: "basic", Price: 1, MaxChargers: &two, MaxPortsPerCharger: &four, IsActive: true}
	require.NoError(t, s.Plans().Upsert(ctx, f.basic))
	require.NoError(t, s.Subscriptions().Create(ctx, &model.Subscription{
		OwnerID: f.bob.ID, PlanID: f.basic.ID, Status: model.SubscriptionActive,
		StartsAt: now.Add(-time.Hour), EndsAt: now.AddDate(0, 0, 30),
	}))

	f.bobCh = &model.Charger{OwnerID: f.bob.ID, Name: "Hub"}
	require.NoError(t, s.Chargers().Create(ctx, f.bobCh))
	f.carolCh = &model.Charger{OwnerID: f.carol.ID, Name: "Other"}
	require.NoError(t, s.Chargers().Create(ctx, f.carolCh))
	f.bobPort = &model.ChargerPort{ChargerID: f.bobCh.ID, ConnectorType: model.ConnectorCCS2}
	require.NoError(t, s.Ports().Create(ctx, f.bobPort))
	f.aliceCar = &model.Vehicle{OwnerID: f.alice.ID, LicensePlate: "DL01AB1234"}
	require.NoError(t, s.Vehicles().Create(ctx, f.aliceCar))
	return f
}

func (f *fixture) entitlements() *Entitlements {
	return &Entitlements{
		Subs:     f.store.Subscriptions(),
		Chargers: f.store.Chargers(),
		Ports:    f.store.Ports(),
		Now:      func() time.Time { return now },
	}
}

func (f *fixture) ownership() *Ownership {
	return &Ownership{Vehicles: f.store.Vehicles(), Chargers: f.store.Chargers(), Ports: f.store.Ports()}
}
