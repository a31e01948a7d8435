package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/handler"
	"github.com/iliyamo/ev-charging-backend/internal/middleware"
	"github.com/iliyamo/ev-charging-backend/internal/model"
)

// registerVehicleOwner mounts /cars. Creating and listing are limited to
// vehicle owners; mutations additionally require owning the vehicle.
func registerVehicleOwner(api *echo.Group, ch chain, h *handler.VehicleHandler) {
	g := api.Group("/cars", ch.auth)
	vehicleOwner := middleware.RequireRole(model.RoleVehicleOwner)
	owned := ch.ownership.OwnedVehicle("carId")

	g.POST("/postcar", h.Create, vehicleOwner)
	g.GET("/my", h.ListMine, vehicleOwner)
	g.GET("/:carId", h.Get)
	g.PATCH("/:carId", h.Update, owned)
	g.DELETE("/:carId", h.Delete, owned)
}
