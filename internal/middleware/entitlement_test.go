package middleware

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ev-charging-backend/internal/model"
)

func TestRequireActiveSubscription(t *testing.T) {
	f := newFixture(t)
	ent := f.entitlements()
	e := newEcho()
	e.POST("/bob", func(c echo.Context) error {
		sub, ok := SubscriptionFrom(c)
		require.True(t, ok)
		return c.String(http.StatusOK, sub.Plan.Name)
	}, as(f.bob), ent.RequireActiveSubscription())
	e.POST("/carol", ok, as(f.carol), ent.RequireActiveSubscription())
	e.POST("/alice", ok, as(f.alice), ent.RequireActiveSubscription())

	rec := do(e, http.MethodPost, "/bob")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "basic", rec.Body.String())

	rec = do(e, http.MethodPost, "/carol")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "an active subscription is required", message(t, rec))

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/alice").Code, "non charger owners are not subject to plans")
}

func TestLapsedSubscriptionIsNotEntitled(t *testing.T) {
	f := newFixture(t)
	ent := f.entitlements()
	// status is still active but ends_at has passed
	ent.Now = func() time.Time { return now.AddDate(0, 0, 31) }

	e := newEcho()
	e.POST("/", ok, as(f.bob), ent.RequireActiveSubscription())
	rec := do(e, http.MethodPost, "/")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChargerLimit(t *testing.T) {
	f := newFixture(t)
	ent := f.entitlements()
	e := newEcho()
	e.POST("/", ok, as(f.bob), ent.RequireActiveSubscription(), ent.ChargerLimit())

	// bob holds one charger on a two charger plan
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/").Code)

	require.NoError(t, f.store.Chargers().Create(t.Context(), &model.Charger{OwnerID: f.bob.ID}))
	rec := do(e, http.MethodPost, "/")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "charger limit reached for your plan", message(t, rec))
}

func TestChargerLimitUnlimitedPlan(t *testing.T) {
	f := newFixture(t)
	ent := f.entitlements()
	enterprise := &model.Plan{Name: "enterprise", Price: 3, IsActive: true}
	require.NoError(t, f.store.Plans().Upsert(t.Context(), enterprise))
	require.NoError(t, f.store.Subscriptions().Create(t.Context(), &model.Subscription{
		OwnerID: f.carol.ID, PlanID: enterprise.ID, Status: model.SubscriptionActive,
		StartsAt: now, EndsAt: now.AddDate(0, 0, 30),
	}))
	for range 10 {
		require.NoError(t, f.store.Chargers().Create(t.Context(), &model.Charger{OwnerID: f.carol.ID}))
	}

	e := newEcho()
	e.POST("/", ok, as(f.carol), ent.ChargerLimit())
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/").Code)
}

func TestPortLimit(t *testing.T) {
	f := newFixture(t)
	ent := f.entitlements()
	o := f.ownership()
	e := newEcho()
	e.POST("/chargers/:chargerId/ports", ok,
		as(f.bob), o.OwnedCharger("chargerId"), ent.RequireActiveSubscription(), ent.PortLimit())
	e.POST("/nocharger", ok, as(f.bob), ent.PortLimit())

	path := fmt.Sprintf("/chargers/%d/ports", f.bobCh.ID)
	for range 3 {
		assert.Equal(t, http.StatusOK, do(e, http.MethodPost, path).Code)
		require.NoError(t, f.store.Ports().Create(t.Context(), &model.ChargerPort{ChargerID: f.bobCh.ID}))
	}
	rec := do(e, http.MethodPost, path)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "port limit reached for this charger", message(t, rec))

	assert.Equal(t, http.StatusInternalServerError, do(e, http.MethodPost, "/nocharger").Code)
}
