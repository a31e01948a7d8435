package middleware

import (
	"context"
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
)

type VehicleLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.Vehicle, error)
}

type ChargerLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.Charger, error)
}

type PortLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.ChargerPort, error)
}

// Ownership loads a path resource and admits the request only when the
// principal owns it. A resource owned by someone else is reported exactly
// like a missing one.
type Ownership struct {
	Vehicles VehicleLookup
	Chargers ChargerLookup
	Ports    PortLookup
}

var (
	errVehicleNotFound = apperror.NotFound("vehicle not found")
	errChargerNotFound = apperror.NotFound("charger not found")
	errPortNotFound    = apperror.NotFound("port not found")
)

// ParamID parses a positive numeric path parameter.
func ParamID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("invalid " + name).WithDetails(map[string]string{name: "must be a positive integer"})
	}
	return id, nil
}

func (o *Ownership) OwnedVehicle(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := PrincipalFrom(c)
			if !ok {
				return errUnauthorized
			}
			id, err := ParamID(c, param)
			if err != nil {
				return err
			}
			v, err := o.Vehicles.GetByID(c.Request().Context(), id)
			if err != nil {
				return lookupErr(err, errVehicleNotFound)
			}
			if v.OwnerID != u.ID {
				return errVehicleNotFound
			}
			c.Set(vehicleKey, v)
			return next(c)
		}
	}
}

func (o *Ownership) OwnedCharger(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := PrincipalFrom(c)
			if !ok {
				return errUnauthorized
			}
			id, err := ParamID(c, param)
			if err != nil {
				return err
			}
			ch, err := o.Chargers.GetByID(c.Request().Context(), id)
			if err != nil {
				return lookupErr(err, errChargerNotFound)
			}
			if ch.OwnerID != u.ID {
				return errChargerNotFound
			}
			c.Set(chargerKey, ch)
			return next(c)
		}
	}
}

// OwnedPort checks ownership through the charger: the port must belong to the
// charger named in the path and that charger to the principal. Both the
// charger and the port are cached on success.
func (o *Ownership) OwnedPort(chargerParam, portParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := PrincipalFrom(c)
			if !ok {
				return errUnauthorized
			}
			chargerID, err := ParamID(c, chargerParam)
			if err != nil {
				return err
			}
			portID, err := ParamID(c, portParam)
			if err != nil {
				return err
			}
			ctx := c.Request().Context()
			p, err := o.Ports.GetByID(ctx, portID)
			if err != nil {
				return lookupErr(err, errPortNotFound)
			}
			if p.ChargerID != chargerID {
				return errPortNotFound
			}
			ch, err := o.Chargers.GetByID(ctx, chargerID)
			if err != nil {
				return lookupErr(err, errPortNotFound)
			}
			if ch.OwnerID != u.ID {
				return errPortNotFound
			}
			c.Set(chargerKey, ch)
			c.Set(portKey, p)
			return next(c)
		}
	}
}

func lookupErr(err error, notFound *apperror.Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return apperror.Internal(err)
}
