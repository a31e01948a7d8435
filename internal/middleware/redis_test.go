package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ev-charging-backend/internal/config"
	"github.com/iliyamo/ev-charging-backend/internal/model"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	clock := now
	tb := NewTokenBucket(config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: 10 * time.Second,
		TTL: time.Minute, KeyStrategy: "ip", Prefix: "test:rl",
	}, rdb)
	tb.now = func() time.Time { return clock }

	e := newEcho()
	e.POST("/login", ok, tb.Middleware())
	login := func() *httptest.ResponseRecorder {
		return do(e, http.MethodPost, "/login", func(r *http.Request) { r.RemoteAddr = "10.1.1.1:5000" })
	}

	rec := login()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, login().Code)

	rec = login()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", message(t, rec))

	clock = clock.Add(4 * time.Second)
	rec = login()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "6", rec.Header().Get("Retry-After"))

	clock = clock.Add(6 * time.Second)
	assert.Equal(t, http.StatusOK, login().Code, "one token refilled")

	// other clients have their own bucket
	rec = do(e, http.MethodPost, "/login", func(r *http.Request) { r.RemoteAddr = "10.1.1.2:5000" })
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	// nothing listens on this port
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	tb := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1,
		RefillInterval: time.Second, TTL: time.Minute}, rdb)
	e := newEcho()
	e.POST("/", ok, tb.Middleware())

	for range 3 {
		assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/").Code)
	}
}

func TestTokenBucketDisabled(t *testing.T) {
	e := newEcho()
	e.POST("/", ok, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil).Middleware())
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/").Code)
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/users/login")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:192.0.2.7", rateKey(cfg, c))
	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:anon:route:POST /api/v1/users/login", rateKey(cfg, c))

	SetPrincipal(c, &model.User{ID: 9})
	cfg.KeyStrategy = "ip_user"
	assert.Equal(t, "rl:ip:192.0.2.7:user:9", rateKey(cfg, c))
	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:192.0.2.7:user:9:route:POST /api/v1/users/login", rateKey(cfg, c))
}

func TestResponseCache(t *testing.T) {
	_, rdb := newRedis(t)
	rc := NewResponseCache(config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true},
		TTL: time.Minute, Prefix: "test:cache", MaxBodyBytes: 1 << 16,
	}, rdb)

	calls := 0
	e := newEcho()
	e.GET("/nearby", func(c echo.Context) error {
		calls++
		if c.QueryParam("lat") == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "lat is required"})
		}
		return c.JSON(http.StatusOK, map[string]int{"calls": calls})
	}, rc.Middleware())

	first := do(e, http.MethodGet, "/nearby?lat=28.6&lng=77.2")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	// same query in a different order hits the same entry
	second := do(e, http.MethodGet, "/nearby?lng=77.2&lat=28.6")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	assert.Equal(t, "MISS", do(e, http.MethodGet, "/nearby?lat=1&lng=2").Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	// errors are never stored
	do(e, http.MethodGet, "/nearby")
	rec := do(e, http.MethodGet, "/nearby")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 4, calls)
}

func TestResponseCacheSkipsOversizedBodies(t *testing.T) {
	_, rdb := newRedis(t)
	rc := NewResponseCache(config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true}, Prefix: "c", MaxBodyBytes: 8,
	}, rdb)
	e := newEcho()
	e.GET("/big", func(c echo.Context) error {
		return c.String(http.StatusOK, "a body well past eight bytes")
	}, rc.Middleware())

	do(e, http.MethodGet, "/big")
	rec := do(e, http.MethodGet, "/big")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "a body well past eight bytes", rec.Body.String())
}

func TestResponseCacheIgnoresUnlistedMethods(t *testing.T) {
	_, rdb := newRedis(t)
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}}, rdb)
	e := newEcho()
	e.POST("/x", ok, rc.Middleware())
	rec := do(e, http.MethodPost, "/x")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}
