package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/handler"
	"github.com/iliyamo/ev-charging-backend/internal/middleware"
	"github.com/iliyamo/ev-charging-backend/internal/model"
)

// registerChargerOwner mounts /chargers and /chargers/:chargerId/ports.
// Middleware order per route is authenticate, role, ownership, entitlement;
// the body is only validated once every check has passed.
func registerChargerOwner(api *echo.Group, ch chain, c *handler.ChargerHandler, p *handler.PortHandler) {
	g := api.Group("/chargers", ch.auth)
	chargerOwner := middleware.RequireRole(model.RoleChargerOwner)
	vehicleOwner := middleware.RequireRole(model.RoleVehicleOwner)
	ownedCharger := ch.ownership.OwnedCharger("chargerId")
	ownedPort := ch.ownership.OwnedPort("chargerId", "portId")
	ent := ch.entitlements

	g.POST("", c.Create, chargerOwner, ent.RequireActiveSubscription(), ent.ChargerLimit())
	g.GET("/my", c.ListMine, chargerOwner)
	g.GET("/nearby", c.Nearby, vehicleOwner, ch.cache)
	g.GET("/:chargerId", c.Get)
	g.PATCH("/:chargerId", c.Update, chargerOwner, ownedCharger)
	g.PATCH("/:chargerId/toggle-status", c.ToggleStatus, chargerOwner, ownedCharger)
	g.PATCH("/:chargerId/image", c.UpdateImage, chargerOwner, ownedCharger)
	g.DELETE("/:chargerId", c.Delete, chargerOwner, ownedCharger)

	ports := g.Group("/:chargerId/ports")
	ports.POST("", p.Create, chargerOwner, ownedCharger, ent.RequireActiveSubscription(), ent.PortLimit())
	ports.GET("", p.List)
	ports.PATCH("/:portId", p.Update, chargerOwner, ownedPort)
	ports.PATCH("/:portId/status", p.UpdateStatus, chargerOwner, ownedPort)
	ports.DELETE("/:portId", p.Delete, chargerOwner, ownedPort)
}

func registerSubscriptions(api *echo.Group, ch chain, s *handler.SubscriptionHandler) {
	g := api.Group("/subscriptions", ch.auth)
	chargerOwner := middleware.RequireRole(model.RoleChargerOwner)

	g.GET("/plans", s.ListPlans)
	g.POST("/start", s.Start, chargerOwner)
	g.GET("/me", s.Me, chargerOwner)
	g.GET("/history", s.History, chargerOwner)
	g.POST("/cancel", s.Cancel, chargerOwner)
}
