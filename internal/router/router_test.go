package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/config"
	"github.com/iliyamo/ev-charging-backend/internal/mocks"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/queue"
	"github.com/iliyamo/ev-charging-backend/internal/validator"
)

var clock = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type published struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *published) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *published) last(typ string) (queue.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == typ {
			return p.events[i], true
		}
	}
	return queue.Event{}, false
}

type app struct {
	t      *testing.T
	e      *echo.Echo
	store  *mocks.Store
	media  *mocks.Media
	events *published
	basic  *model.Plan
	pro    *model.Plan
}

func limit(n uint32) *uint32 { return &n }

func newApp(t *testing.T) *app {
	t.Helper()
	store := mocks.NewStore()
	store.Now = func() time.Time { return clock }

	a := &app{t: t, e: echo.New(), store: store, media: &mocks.Media{}, events: &published{}}
	a.e.Validator = validator.New()
	a.e.HTTPErrorHandler = apperror.HTTPErrorHandler(zap.NewNop())

	a.basic = &model.Plan{Name: "basic", Price: 499, MaxChargers: limit(2), MaxPortsPerCharger: limit(4), IsActive: true}
	a.pro = &model.Plan{Name: "pro", Price: 999, MaxChargers: limit(5), MaxPortsPerCharger: limit(4), IsActive: true}
	for _, p := range []*model.Plan{a.basic, a.pro} {
		require.NoError(t, store.Plans().Upsert(t.Context(), p))
	}

	Register(a.e, Deps{
		Cfg: config.Config{
			JWTSecret:      "router-secret",
			AccessTTLMin:   15,
			RefreshTTLDays: 7,
			BcryptCost:     4,
			OTPTTLMin:      10,
		},
		Users:    store.Users(),
		Vehicles: store.Vehicles(),
		Chargers: store.Chargers(),
		Ports:    store.Ports(),
		Plans:    store.Plans(),
		Subs:     store.Subscriptions(),
		Media:    a.media,
		Events:   a.events,
		DB:       store,
		Now:      func() time.Time { return clock },
	})
	return a
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	RawErrors  json.RawMessage `json:"errors"`
}

type response struct {
	code int
	body envelope
}

func (r response) into(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body.Data, v), string(r.body.Data))
}

func (r response) details(t *testing.T) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, json.Unmarshal(r.body.RawErrors, &out), string(r.body.RawErrors))
	return out
}

func (a *app) do(method, path, token string, body any) response {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	out := response{code: rec.Code}
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &out.body)
	}
	return out
}

type session struct {
	User         model.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
}

func (a *app) signUp(name string, role model.Role) session {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{
		"full_name": "Test " + name,
		"email":     name + "@example.com",
		"username":  name,
		"password":  name + "-password",
		"role":      string(role),
	})
	require.Equal(a.t, http.StatusCreated, res.code, res.body.Message)
	return a.login(name, name+"-password")
}

func (a *app) login(username, password string) session {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/users/login", "", map[string]string{"username": username, "password": password})
	require.Equal(a.t, http.StatusOK, res.code, res.body.Message)
	var s session
	res.into(a.t, &s)
	require.NotEmpty(a.t, s.AccessToken)
	return s
}

func (a *app) subscribe(token string, plan *model.Plan) {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/subscriptions/start", token, map[string]uint64{"plan_id": plan.ID})
	require.Equal(a.t, http.StatusCreated, res.code, res.body.Message)
}

func chargerBody(name string, lat, lng float64) map[string]any {
	return map[string]any{
		"name":                  name,
		"address":               "Connaught Place, New Delhi",
		"location":              map[string]float64{"lat": lat, "lng": lng},
		"charger_type":          "DC",
		"connector_type":        []string{"CCS2", "Type 2"},
		"max_charging_power_kw": 60,
		"price_per_kwh":         18,
	}
}

func (a *app) createCharger(token, name string, lat, lng float64) model.Charger {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/chargers", token, chargerBody(name, lat, lng))
	require.Equal(a.t, http.StatusCreated, res.code, res.body.Message)
	var ch model.Charger
	res.into(a.t, &ch)
	return ch
}

func (a *app) createPort(token string, chargerID uint64) response {
	a.t.Helper()
	return a.do(http.MethodPost, fmt.Sprintf("/api/v1/chargers/%d/ports", chargerID), token, map[string]any{
		"connector_type": "CCS2",
		"max_power_kw":   60,
		"price_per_kwh":  18,
	})
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	res := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.code)
	assert.True(t, res.body.Success)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, string(res.body.Data))
}

func TestRegisterAndLogin(t *testing.T) {
	a := newApp(t)
	alice := a.signUp("alice", model.RoleVehicleOwner)
	assert.Equal(t, model.RoleVehicleOwner, alice.User.Role)

	t.Run("duplicate username", func(t *testing.T) {
		res := a.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{
			"full_name": "Other Alice", "email": "other@example.com", "username": "alice", "password": "long-enough",
		})
		assert.Equal(t, http.StatusConflict, res.code)
	})

	t.Run("validation errors carry json field names", func(t *testing.T) {
		res := a.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{"email": "nope"})
		require.Equal(t, http.StatusBadRequest, res.code)
		d := res.details(t)
		assert.Contains(t, d, "email")
		assert.Contains(t, d, "password")
	})

	t.Run("login by email", func(t *testing.T) {
		res := a.do(http.MethodPost, "/api/v1/users/login", "", map[string]string{"email": "ALICE@example.com", "password": "alice-password"})
		assert.Equal(t, http.StatusOK, res.code)
		assert.Equal(t, "login successful", res.body.Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		res := a.do(http.MethodPost, "/api/v1/users/login", "", map[string]string{"username": "alice", "password": "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, res.code)
		assert.Equal(t, "invalid credentials", res.body.Message)
	})

	t.Run("unknown user", func(t *testing.T) {
		res := a.do(http.MethodPost, "/api/v1/users/login", "", map[string]string{"username": "nobody", "password": "whatever1"})
		assert.Equal(t, http.StatusNotFound, res.code)
		assert.Equal(t, "user not found", res.body.Message)
	})

	t.Run("me never exposes secrets", func(t *testing.T) {
		res := a.do(http.MethodGet, "/api/v1/users/me", alice.AccessToken, nil)
		require.Equal(t, http.StatusOK, res.code)
		assert.NotContains(t, string(res.body.Data), "password")
		assert.NotContains(t, string(res.body.Data), "refresh")
	})

	t.Run("no token", func(t *testing.T) {
		res := a.do(http.MethodGet, "/api/v1/users/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, res.code)
		assert.False(t, res.body.Success)
		assert.Equal(t, "[]", string(res.body.RawErrors))
	})
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	a := newApp(t)
	s := a.signUp("alice", model.RoleVehicleOwner)

	res := a.do(http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refresh_token": s.RefreshToken})
	require.Equal(t, http.StatusOK, res.code, res.body.Message)
	var next session
	res.into(t, &next)
	assert.NotEqual(t, s.RefreshToken, next.RefreshToken)

	// the previous refresh token no longer works
	res = a.do(http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refresh_token": s.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, res.code)

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/users/logout", next.AccessToken, nil).code)
	res = a.do(http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refresh_token": next.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestPasswordResetWithOTP(t *testing.T) {
	a := newApp(t)
	a.signUp("alice", model.RoleVehicleOwner)

	unknown := a.do(http.MethodPost, "/api/v1/users/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	known := a.do(http.MethodPost, "/api/v1/users/forgot-password", "", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusOK, unknown.code)
	assert.Equal(t, http.StatusOK, known.code)
	assert.Equal(t, unknown.body.Message, known.body.Message)

	ev, ok := a.events.last(queue.TypePasswordResetRequested)
	require.True(t, ok)
	var payload queue.PasswordResetRequested
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Len(t, payload.OTP, 6)

	wrong := "000000"
	if payload.OTP == wrong {
		wrong = "111111"
	}
	res := a.do(http.MethodPost, "/api/v1/users/reset-password-otp", "", map[string]string{
		"email": "alice@example.com", "otp": wrong, "new_password": "brand-new-pass",
	})
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = a.do(http.MethodPost, "/api/v1/users/reset-password-otp", "", map[string]string{
		"email": "alice@example.com", "otp": payload.OTP, "new_password": "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, res.code, res.body.Message)

	a.login("alice", "brand-new-pass")

	// the code is single use
	res = a.do(http.MethodPost, "/api/v1/users/reset-password-otp", "", map[string]string{
		"email": "alice@example.com", "otp": payload.OTP, "new_password": "another-pass",
	})
	assert.Equal(t, http.StatusBadRequest, res.code)
}

func TestVehicles(t *testing.T) {
	a := newApp(t)
	alice := a.signUp("alice", model.RoleVehicleOwner)
	dave := a.signUp("dave", model.RoleVehicleOwner)
	bob := a.signUp("bob", model.RoleChargerOwner)

	car := map[string]any{
		"company": "Tata", "model": "Nexon EV", "launch_year": 2023, "license_plate": "DL01AB1234",
		"battery_capacity_kwh": 40.5, "max_charging_power_kw": 50, "connector_type": "CCS2",
	}
	res := a.do(http.MethodPost, "/api/v1/cars/postcar", alice.AccessToken, car)
	require.Equal(t, http.StatusCreated, res.code, res.body.Message)
	var v model.Vehicle
	res.into(t, &v)
	assert.Equal(t, model.ConnectorList{model.ConnectorCCS2}, v.ConnectorTypes)

	t.Run("plates are unique across owners", func(t *testing.T) {
		res := a.do(http.MethodPost, "/api/v1/cars/postcar", dave.AccessToken, car)
		assert.Equal(t, http.StatusConflict, res.code)
		assert.Equal(t, "a vehicle with this license plate already exists", res.body.Message)
	})

	t.Run("charger owners cannot add vehicles", func(t *testing.T) {
		res := a.do(http.MethodPost, "/api/v1/cars/postcar", bob.AccessToken, car)
		assert.Equal(t, http.StatusForbidden, res.code)
	})

	t.Run("another owner's vehicle is not found", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/cars/%d", v.ID)
		res := a.do(http.MethodPatch, path, dave.AccessToken, map[string]string{"model": "Stolen"})
		assert.Equal(t, http.StatusNotFound, res.code)
		assert.Equal(t, "vehicle not found", res.body.Message)
		assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, dave.AccessToken, nil).code)
	})

	t.Run("active car", func(t *testing.T) {
		res := a.do(http.MethodPost, "/api/v1/users/select-active-car", dave.AccessToken, map[string]uint64{"vehicle_id": v.ID})
		assert.Equal(t, http.StatusNotFound, res.code)

		res = a.do(http.MethodPost, "/api/v1/users/select-active-car", alice.AccessToken, map[string]uint64{"vehicle_id": v.ID})
		require.Equal(t, http.StatusOK, res.code, res.body.Message)
		res = a.do(http.MethodGet, "/api/v1/users/get-active-car", alice.AccessToken, nil)
		require.Equal(t, http.StatusOK, res.code)
		var active model.Vehicle
		res.into(t, &active)
		assert.Equal(t, v.ID, active.ID)
	})
}

func TestEntitlementRunsBeforeValidation(t *testing.T) {
	a := newApp(t)
	carol := a.signUp("carol", model.RoleChargerOwner)

	res := a.do(http.MethodPost, "/api/v1/chargers", carol.AccessToken, map[string]any{"name": ""})
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, "an active subscription is required", res.body.Message)

	a.subscribe(carol.AccessToken, a.basic)
	res = a.do(http.MethodPost, "/api/v1/chargers", carol.AccessToken, map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, res.code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	a := newApp(t)
	bob := a.signUp("bob", model.RoleChargerOwner)
	alice := a.signUp("alice", model.RoleVehicleOwner)

	res := a.do(http.MethodGet, "/api/v1/subscriptions/plans", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.code)
	var plans []model.Plan
	res.into(t, &plans)
	assert.Len(t, plans, 2)

	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPost, "/api/v1/subscriptions/start", alice.AccessToken, map[string]uint64{"plan_id": a.basic.ID}).code)
	assert.Equal(t, http.StatusNotFound,
		a.do(http.MethodPost, "/api/v1/subscriptions/start", bob.AccessToken, map[string]uint64{"plan_id": 999}).code)

	a.subscribe(bob.AccessToken, a.basic)

	res = a.do(http.MethodPost, "/api/v1/subscriptions/start", bob.AccessToken, map[string]uint64{"plan_id": a.pro.ID})
	assert.Equal(t, http.StatusConflict, res.code)
	assert.Equal(t, "an active subscription already exists", res.body.Message)

	res = a.do(http.MethodGet, "/api/v1/subscriptions/me", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.code)
	var sub model.Subscription
	res.into(t, &sub)
	assert.Equal(t, a.basic.ID, sub.PlanID)
	assert.Equal(t, clock.AddDate(0, 0, 30), sub.EndsAt.UTC())

	_, ok := a.events.last(queue.TypeSubscriptionStarted)
	assert.True(t, ok)

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/subscriptions/cancel", bob.AccessToken, nil).code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/api/v1/subscriptions/cancel", bob.AccessToken, nil).code)
	a.subscribe(bob.AccessToken, a.pro)
}

func TestChargerLimit(t *testing.T) {
	a := newApp(t)
	bob := a.signUp("bob", model.RoleChargerOwner)
	a.subscribe(bob.AccessToken, a.basic)

	a.createCharger(bob.AccessToken, "One", 28.63, 77.22)
	second := a.createCharger(bob.AccessToken, "Two", 28.64, 77.23)

	res := a.do(http.MethodPost, "/api/v1/chargers", bob.AccessToken, chargerBody("Three", 28.65, 77.24))
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, "charger limit reached for your plan", res.body.Message)

	// freeing a slot lets the next create through
	require.Equal(t, http.StatusOK, a.do(http.MethodDelete, fmt.Sprintf("/api/v1/chargers/%d", second.ID), bob.AccessToken, nil).code)
	a.createCharger(bob.AccessToken, "Three", 28.65, 77.24)
}

func TestPortNumbering(t *testing.T) {
	a := newApp(t)
	bob := a.signUp("bob", model.RoleChargerOwner)
	a.subscribe(bob.AccessToken, a.basic)
	ch := a.createCharger(bob.AccessToken, "Hub", 28.63, 77.22)

	var ports []model.ChargerPort
	for range 3 {
		res := a.createPort(bob.AccessToken, ch.ID)
		require.Equal(t, http.StatusCreated, res.code, res.body.Message)
		var p model.ChargerPort
		res.into(t, &p)
		ports = append(ports, p)
	}
	assert.Equal(t, []uint32{1, 2, 3}, []uint32{ports[0].PortNumber, ports[1].PortNumber, ports[2].PortNumber})

	res := a.do(http.MethodDelete, fmt.Sprintf("/api/v1/chargers/%d/ports/%d", ch.ID, ports[1].ID), bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.code, res.body.Message)

	res = a.createPort(bob.AccessToken, ch.ID)
	require.Equal(t, http.StatusCreated, res.code, res.body.Message)
	var p model.ChargerPort
	res.into(t, &p)
	assert.Equal(t, uint32(4), p.PortNumber, "numbers are never reused")

	res = a.createPort(bob.AccessToken, ch.ID)
	require.Equal(t, http.StatusCreated, res.code)
	res = a.createPort(bob.AccessToken, ch.ID)
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, "port limit reached for this charger", res.body.Message)
}

func TestOccupiedPorts(t *testing.T) {
	a := newApp(t)
	bob := a.signUp("bob", model.RoleChargerOwner)
	a.subscribe(bob.AccessToken, a.basic)
	ch := a.createCharger(bob.AccessToken, "Hub", 28.63, 77.22)

	var ids []uint64
	for range 2 {
		res := a.createPort(bob.AccessToken, ch.ID)
		require.Equal(t, http.StatusCreated, res.code)
		var p model.ChargerPort
		res.into(t, &p)
		ids = append(ids, p.ID)
	}

	portPath := fmt.Sprintf("/api/v1/chargers/%d/ports/%d", ch.ID, ids[0])
	res := a.do(http.MethodPatch, portPath+"/status", bob.AccessToken, map[string]string{"status": "occupied"})
	require.Equal(t, http.StatusOK, res.code, res.body.Message)

	res = a.do(http.MethodDelete, portPath, bob.AccessToken, nil)
	assert.Equal(t, http.StatusConflict, res.code)
	assert.Equal(t, "cannot delete an occupied port", res.body.Message)

	// deleting the whole charger takes every port with it
	res = a.do(http.MethodDelete, fmt.Sprintf("/api/v1/chargers/%d", ch.ID), bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.code, res.body.Message)
	assert.JSONEq(t, fmt.Sprintf(`{"charger_id":%d,"ports_deleted":2}`, ch.ID), string(res.body.Data))

	ev, ok := a.events.last(queue.TypeChargerDeleted)
	require.True(t, ok)
	assert.JSONEq(t, fmt.Sprintf(`{"charger_id":%d,"ports_deleted":2}`, ch.ID), string(ev.Payload))

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, fmt.Sprintf("/api/v1/chargers/%d", ch.ID), bob.AccessToken, nil).code)
}

func TestOwnershipMasking(t *testing.T) {
	a := newApp(t)
	bob := a.signUp("bob", model.RoleChargerOwner)
	carol := a.signUp("carol", model.RoleChargerOwner)
	a.subscribe(bob.AccessToken, a.basic)
	a.subscribe(carol.AccessToken, a.basic)
	bobCh := a.createCharger(bob.AccessToken, "Bob's", 28.63, 77.22)
	carolCh := a.createCharger(carol.AccessToken, "Carol's", 28.64, 77.23)

	res := a.createPort(bob.AccessToken, bobCh.ID)
	require.Equal(t, http.StatusCreated, res.code)
	var port model.ChargerPort
	res.into(t, &port)

	cases := []struct {
		name, method, path string
		body               any
	}{
		{"update charger", http.MethodPatch, fmt.Sprintf("/api/v1/chargers/%d", bobCh.ID), map[string]string{"name": "Mine"}},
		{"toggle charger", http.MethodPatch, fmt.Sprintf("/api/v1/chargers/%d/toggle-status", bobCh.ID), nil},
		{"delete charger", http.MethodDelete, fmt.Sprintf("/api/v1/chargers/%d", bobCh.ID), nil},
		{"add port", http.MethodPost, fmt.Sprintf("/api/v1/chargers/%d/ports", bobCh.ID), map[string]any{"connector_type": "CCS2", "max_power_kw": 60, "price_per_kwh": 18}},
		{"update port", http.MethodPatch, fmt.Sprintf("/api/v1/chargers/%d/ports/%d", bobCh.ID, port.ID), map[string]float64{"max_power_kw": 30}},
		{"port under own charger", http.MethodDelete, fmt.Sprintf("/api/v1/chargers/%d/ports/%d", carolCh.ID, port.ID), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := a.do(tc.method, tc.path, carol.AccessToken, tc.body)
			assert.Equal(t, http.StatusNotFound, res.code, res.body.Message)
		})
	}

	res = a.do(http.MethodGet, fmt.Sprintf("/api/v1/chargers/%d", bobCh.ID), bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.code)
	var still model.Charger
	res.into(t, &still)
	assert.Equal(t, "Bob's", still.Name)
}

func TestNearby(t *testing.T) {
	a := newApp(t)
	bob := a.signUp("bob", model.RoleChargerOwner)
	alice := a.signUp("alice", model.RoleVehicleOwner)
	a.subscribe(bob.AccessToken, a.pro)

	near := a.createCharger(bob.AccessToken, "Connaught Place", 28.6315, 77.2167)
	closer := a.createCharger(bob.AccessToken, "Janpath", 28.6280, 77.2190)
	a.createCharger(bob.AccessToken, "Gurugram", 28.4595, 77.0266)
	off := a.createCharger(bob.AccessToken, "Off", 28.6300, 77.2180)
	require.Equal(t, http.StatusOK,
		a.do(http.MethodPatch, fmt.Sprintf("/api/v1/chargers/%d/toggle-status", off.ID), bob.AccessToken, nil).code)

	res := a.do(http.MethodGet, "/api/v1/chargers/nearby?lat=28.6280&lng=77.2185&radius=2000", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.code, res.body.Message)
	var list []model.Charger
	res.into(t, &list)
	require.Len(t, list, 2)
	assert.Equal(t, closer.ID, list[0].ID)
	assert.Equal(t, near.ID, list[1].ID)
	require.NotNil(t, list[0].DistanceM)
	assert.LessOrEqual(t, *list[0].DistanceM, *list[1].DistanceM)

	res = a.do(http.MethodGet, "/api/v1/chargers/nearby?lat=28.6280&lng=77.2185&radius=50000&limit=1", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.code)
	res.into(t, &list)
	assert.Len(t, list, 1)

	res = a.do(http.MethodGet, "/api/v1/chargers/nearby?lat=91&lng=abc&limit=0", alice.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, "invalid query parameters", res.body.Message)
	d := res.details(t)
	assert.Contains(t, d, "lat")
	assert.Contains(t, d, "lng")
	assert.Contains(t, d, "limit")

	for _, q := range []string{
		"lat=NaN&lng=77.2",
		"lat=28.6&lng=NaN",
		"lat=28.6&lng=77.2&radius=NaN",
		"lat=28.6&lng=77.2&radius=Inf",
		"lat=-Inf&lng=77.2",
	} {
		res := a.do(http.MethodGet, "/api/v1/chargers/nearby?"+q, alice.AccessToken, nil)
		assert.Equal(t, http.StatusBadRequest, res.code, q)
	}
	res = a.do(http.MethodGet, "/api/v1/chargers/nearby?lat=28.6&lng=77.2&radius=%2BInf", alice.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, "must be a finite number", res.details(t)["radius"])

	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodGet, "/api/v1/chargers/nearby?lat=28.6&lng=77.2", bob.AccessToken, nil).code)
}

func TestLapsedSubscriptionBlocksCreates(t *testing.T) {
	a := newApp(t)
	bob := a.signUp("bob", model.RoleChargerOwner)
	a.subscribe(bob.AccessToken, a.basic)
	ch := a.createCharger(bob.AccessToken, "Hub", 28.63, 77.22)

	// past the end of the 30 day window
	clock = clock.AddDate(0, 0, 31)
	t.Cleanup(func() { clock = clock.AddDate(0, 0, -31) })

	res := a.do(http.MethodPost, "/api/v1/chargers", bob.AccessToken, chargerBody("Late", 28.6, 77.2))
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, http.StatusForbidden, a.createPort(bob.AccessToken, ch.ID).code)

	// existing chargers stay manageable
	res = a.do(http.MethodPatch, fmt.Sprintf("/api/v1/chargers/%d", ch.ID), bob.AccessToken, map[string]string{"name": "Renamed"})
	assert.Equal(t, http.StatusOK, res.code)
}

func TestDeleteAccount(t *testing.T) {
	a := newApp(t)
	alice := a.signUp("alice", model.RoleVehicleOwner)

	res := a.do(http.MethodDelete, "/api/v1/users/delete-account", alice.AccessToken, map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "not-her-password",
	})
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, "credentials do not match this account", res.body.Message)

	res = a.do(http.MethodDelete, "/api/v1/users/delete-account", alice.AccessToken, map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "alice-password",
	})
	require.Equal(t, http.StatusOK, res.code, res.body.Message)

	_, ok := a.events.last(queue.TypeAccountDeleted)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/users/me", alice.AccessToken, nil).code)
}
