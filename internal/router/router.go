// Package router wires handlers to routes and composes the authorization
// chain (authenticate, role, ownership, entitlement) per route.
package router

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/config"
	"github.com/iliyamo/ev-charging-backend/internal/handler"
	"github.com/iliyamo/ev-charging-backend/internal/metrics"
	"github.com/iliyamo/ev-charging-backend/internal/middleware"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/queue"
)

// ChargerStore is what both the charger handlers and the limit checks need.
type ChargerStore interface {
	handler.ChargerStore
	CountByOwner(ctx context.Context, ownerID uint64) (int64, error)
}

type PortStore interface {
	handler.PortStore
	GetByID(ctx context.Context, id uint64) (*model.ChargerPort, error)
	CountByCharger(ctx context.Context, chargerID uint64) (int64, error)
}

// Deps carries every store and service the routes use. RateLimit and Cache
// may be nil, in which case those routes run without them.
type Deps struct {
	Cfg      config.Config
	Users    handler.UserStore
	Vehicles handler.VehicleStore
	Chargers ChargerStore
	Ports    PortStore
	Plans    handler.PlanReader
	Subs     handler.SubscriptionStore
	Media    handler.MediaStore
	Events   queue.Publisher
	DB       handler.Pinger

	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
	Now       func() time.Time
}

// chain holds the shared middleware instances built from Deps.
type chain struct {
	auth         echo.MiddlewareFunc
	ownership    *middleware.Ownership
	entitlements *middleware.Entitlements
	rateLimit    echo.MiddlewareFunc
	cache        echo.MiddlewareFunc
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// Register mounts /healthz, /metrics, /media and everything under /api/v1.
func Register(e *echo.Echo, d Deps) {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	events := d.Events
	if events == nil {
		events = queue.Noop{}
	}
	ch := chain{
		auth: middleware.Authenticate(d.Cfg.JWTSecret, d.Users),
		ownership: &middleware.Ownership{
			Vehicles: d.Vehicles,
			Chargers: d.Chargers,
			Ports:    d.Ports,
		},
		entitlements: &middleware.Entitlements{
			Subs:     d.Subs,
			Chargers: d.Chargers,
			Ports:    d.Ports,
			Now:      now,
		},
		rateLimit: d.RateLimit,
		cache:     d.Cache,
	}
	if ch.rateLimit == nil {
		ch.rateLimit = passThrough
	}
	if ch.cache == nil {
		ch.cache = passThrough
	}

	health := &handler.Health{DB: d.DB}
	e.GET("/healthz", health.Check)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	if d.Cfg.MediaDir != "" {
		e.Static("/media", d.Cfg.MediaDir)
	}

	api := e.Group("/api/v1")
	registerUsers(api, ch, handler.NewAuthHandler(d.Cfg, d.Users, d.Vehicles, d.Media, events))
	registerVehicleOwner(api, ch, handler.NewVehicleHandler(d.Vehicles))
	registerChargerOwner(api, ch,
		handler.NewChargerHandler(d.Chargers, d.Media, events),
		handler.NewPortHandler(d.Ports, d.Chargers))

	subs := handler.NewSubscriptionHandler(d.Plans, d.Subs, events)
	subs.Now = now
	registerSubscriptions(api, ch, subs)
}

func registerUsers(api *echo.Group, ch chain, a *handler.AuthHandler) {
	g := api.Group("/users")

	g.POST("/register", a.Register, ch.rateLimit)
	g.POST("/login", a.Login, ch.rateLimit)
	g.POST("/refresh-token", a.RefreshToken)
	g.POST("/forgot-password", a.ForgotPassword, ch.rateLimit)
	g.POST("/reset-password-otp", a.ResetPasswordOTP, ch.rateLimit)

	g.POST("/logout", a.Logout, ch.auth)
	g.POST("/change-password", a.ChangePassword, ch.auth)
	g.POST("/reset-password", a.ChangePassword, ch.auth)
	g.POST("/update-account", a.UpdateAccount, ch.auth)
	g.POST("/update-avatar", a.UpdateAvatar, ch.auth)
	g.GET("/me", a.Me, ch.auth)
	g.GET("/get-active-car", a.GetActiveCar, ch.auth)
	g.POST("/select-active-car", a.SelectActiveCar, ch.auth, middleware.RequireRole(model.RoleVehicleOwner))
	g.DELETE("/delete-account", a.DeleteAccount, ch.auth)
}
