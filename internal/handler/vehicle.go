package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/middleware"
	"github.com/iliyamo/ev-charging-backend/internal/model"
)

type VehicleStore interface {
	Create(ctx context.Context, v *model.Vehicle) error
	GetByID(ctx context.Context, id uint64) (*model.Vehicle, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Vehicle, error)
	Update(ctx context.Context, v *model.Vehicle) error
	Delete(ctx context.Context, id, ownerID uint64) error
}

type VehicleHandler struct {
	Vehicles VehicleStore
}

func NewVehicleHandler(vehicles VehicleStore) *VehicleHandler {
	return &VehicleHandler{Vehicles: vehicles}
}

const plateTaken = "a vehicle with this license plate already exists"

type createVehicleReq struct {
	Company            string              `json:"company" validate:"required,max=100"`
	Model              string              `json:"model" validate:"required,max=100"`
	LaunchYear         int                 `json:"launch_year" validate:"required,gte=1900,lte=2100"`
	LicensePlate       string              `json:"license_plate" validate:"required,plate"`
	BatteryCapacityKWh float64             `json:"battery_capacity_kwh" validate:"required,gt=0"`
	MaxChargingPowerKW float64             `json:"max_charging_power_kw" validate:"required,gt=0"`
	ConnectorTypes     model.ConnectorList `json:"connector_type" validate:"connectors"`
}

type updateVehicleReq struct {
	Company            *string              `json:"company" validate:"omitempty,min=1,max=100"`
	Model              *string              `json:"model" validate:"omitempty,min=1,max=100"`
	LaunchYear         *int                 `json:"launch_year" validate:"omitempty,gte=1900,lte=2100"`
	LicensePlate       *string              `json:"license_plate" validate:"omitempty,plate"`
	BatteryCapacityKWh *float64             `json:"battery_capacity_kwh" validate:"omitempty,gt=0"`
	MaxChargingPowerKW *float64             `json:"max_charging_power_kw" validate:"omitempty,gt=0"`
	ConnectorTypes     *model.ConnectorList `json:"connector_type" validate:"omitempty,connectors"`
}

func (h *VehicleHandler) Create(c echo.Context) error {
	var req createVehicleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := principal(c)
	if err != nil {
		return err
	}
	v := &model.Vehicle{
		OwnerID:            u.ID,
		Company:            strings.TrimSpace(req.Company),
		Model:              strings.TrimSpace(req.Model),
		LaunchYear:         req.LaunchYear,
		LicensePlate:       model.NormalizePlate(req.LicensePlate),
		BatteryCapacityKWh: req.BatteryCapacityKWh,
		MaxChargingPowerKW: req.MaxChargingPowerKW,
		ConnectorTypes:     req.ConnectorTypes,
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Vehicles.Create(ctx, v); err != nil {
		return storeErr(err, "vehicle not found", plateTaken)
	}
	return respond(c, http.StatusCreated, "vehicle created successfully", v)
}

func (h *VehicleHandler) ListMine(c echo.Context) error {
	u, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Vehicles.ListByOwner(ctx, u.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	return respond(c, http.StatusOK, "vehicles fetched successfully", list)
}

func (h *VehicleHandler) Get(c echo.Context) error {
	id, err := middleware.ParamID(c, "carId")
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	v, err := h.Vehicles.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "vehicle not found", "")
	}
	return respond(c, http.StatusOK, "vehicle fetched successfully", v)
}

// Update applies the supplied fields to the vehicle loaded by OwnedVehicle.
func (h *VehicleHandler) Update(c echo.Context) error {
	v, ok := middleware.VehicleFrom(c)
	if !ok {
		return apperror.NotFound("vehicle not found")
	}
	var req updateVehicleReq
	if err := bind(c, &req); err != nil {
		return err
	}

	upd := *v
	if req.Company != nil {
		upd.Company = strings.TrimSpace(*req.Company)
	}
	if req.Model != nil {
		upd.Model = strings.TrimSpace(*req.Model)
	}
	if req.LaunchYear != nil {
		upd.LaunchYear = *req.LaunchYear
	}
	if req.LicensePlate != nil {
		upd.LicensePlate = model.NormalizePlate(*req.LicensePlate)
	}
	if req.BatteryCapacityKWh != nil {
		upd.BatteryCapacityKWh = *req.BatteryCapacityKWh
	}
	if req.MaxChargingPowerKW != nil {
		upd.MaxChargingPowerKW = *req.MaxChargingPowerKW
	}
	if req.ConnectorTypes != nil {
		upd.ConnectorTypes = *req.ConnectorTypes
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Vehicles.Update(ctx, &upd); err != nil {
		return storeErr(err, "vehicle not found", plateTaken)
	}
	return respond(c, http.StatusOK, "vehicle updated successfully", &upd)
}

func (h *VehicleHandler) Delete(c echo.Context) error {
	v, ok := middleware.VehicleFrom(c)
	if !ok {
		return apperror.NotFound("vehicle not found")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Vehicles.Delete(ctx, v.ID, v.OwnerID); err != nil {
		return storeErr(err, "vehicle not found", "")
	}
	return respond(c, http.StatusOK, "vehicle deleted successfully", nil)
}
