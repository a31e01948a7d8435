package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/logger"
	"github.com/iliyamo/ev-charging-backend/internal/middleware"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/queue"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
)

type ChargerStore interface {
	Create(ctx context.Context, c *model.Charger) error
	GetByID(ctx context.Context, id uint64) (*model.Charger, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Charger, error)
	Update(ctx context.Context, c *model.Charger) error
	SetStatus(ctx context.Context, id, ownerID uint64, status model.ChargerStatus) error
	SetImage(ctx context.Context, id, ownerID uint64, url string) error
	Delete(ctx context.Context, id, ownerID uint64) (int64, error)
	Nearby(ctx context.Context, center model.Location, radiusM float64, limit int) ([]*model.Charger, error)
}

type ChargerHandler struct {
	Chargers ChargerStore
	Media    MediaStore
	Events   queue.Publisher
}

func NewChargerHandler(chargers ChargerStore, media MediaStore, events queue.Publisher) *ChargerHandler {
	return &ChargerHandler{Chargers: chargers, Media: media, Events: events}
}

// DefaultNearbyRadiusM applies when the radius query parameter is absent.
const DefaultNearbyRadiusM = 5000

type locationReq struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

func (l *locationReq) model() model.Location {
	return model.Location{Lat: *l.Lat, Lng: *l.Lng}
}

type createChargerReq struct {
	Name               string              `json:"name" validate:"required,max=150"`
	Address            string              `json:"address" validate:"required,max=255"`
	AddressDetails     string              `json:"address_details" validate:"max=255"`
	Location           *locationReq        `json:"location" validate:"required"`
	Status             string              `json:"status" validate:"omitempty,oneof=active inactive maintenance"`
	ChargerType        string              `json:"charger_type" validate:"required,oneof=AC DC"`
	ConnectorTypes     model.ConnectorList `json:"connector_type" validate:"connectors"`
	MaxChargingPowerKW float64             `json:"max_charging_power_kw" validate:"required,gt=0"`
	PricePerKWh        float64             `json:"price_per_kwh" validate:"required,gt=0"`
}

type updateChargerReq struct {
	Name               *string              `json:"name" validate:"omitempty,min=1,max=150"`
	Address            *string              `json:"address" validate:"omitempty,min=1,max=255"`
	AddressDetails     *string              `json:"address_details" validate:"omitempty,max=255"`
	Location           *locationReq         `json:"location" validate:"omitempty"`
	Status             *string              `json:"status" validate:"omitempty,oneof=active inactive maintenance"`
	ChargerType        *string              `json:"charger_type" validate:"omitempty,oneof=AC DC"`
	ConnectorTypes     *model.ConnectorList `json:"connector_type" validate:"omitempty,connectors"`
	MaxChargingPowerKW *float64             `json:"max_charging_power_kw" validate:"omitempty,gt=0"`
	PricePerKWh        *float64             `json:"price_per_kwh" validate:"omitempty,gt=0"`
}

type chargerDeletedResp struct {
	ChargerID    uint64 `json:"charger_id"`
	PortsDeleted int64  `json:"ports_deleted"`
}

// Create runs after the entitlement checks, so a charger owner at their plan
// limit is refused before the body is even looked at.
func (h *ChargerHandler) Create(c echo.Context) error {
	var req createChargerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := principal(c)
	if err != nil {
		return err
	}
	ch := &model.Charger{
		OwnerID:            u.ID,
		Name:               strings.TrimSpace(req.Name),
		Address:            strings.TrimSpace(req.Address),
		AddressDetails:     strings.TrimSpace(req.AddressDetails),
		Location:           req.Location.model(),
		Status:             model.ChargerStatus(req.Status),
		ChargerType:        model.ChargerType(req.ChargerType),
		ConnectorTypes:     req.ConnectorTypes,
		MaxChargingPowerKW: req.MaxChargingPowerKW,
		PricePerKWh:        req.PricePerKWh,
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Chargers.Create(ctx, ch); err != nil {
		return storeErr(err, "charger not found", "charger already exists")
	}
	return respond(c, http.StatusCreated, "charger created successfully", ch)
}

func (h *ChargerHandler) ListMine(c echo.Context) error {
	u, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Chargers.ListByOwner(ctx, u.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	return respond(c, http.StatusOK, "chargers fetched successfully", list)
}

func (h *ChargerHandler) Get(c echo.Context) error {
	id, err := middleware.ParamID(c, "chargerId")
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	ch, err := h.Chargers.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "charger not found", "")
	}
	return respond(c, http.StatusOK, "charger fetched successfully", ch)
}

// Nearby lists active chargers within radius meters of (lat, lng), nearest
// first.
func (h *ChargerHandler) Nearby(c echo.Context) error {
	details := map[string]string{}
	lat, latErr := queryFloat(c, "lat")
	lng, lngErr := queryFloat(c, "lng")
	switch {
	case latErr != "":
		details["lat"] = latErr
	case lat < -90 || lat > 90:
		details["lat"] = model.ErrLatitudeRange.Error()
	}
	switch {
	case lngErr != "":
		details["lng"] = lngErr
	case lng < -180 || lng > 180:
		details["lng"] = model.ErrLongitudeRange.Error()
	}

	radius := float64(DefaultNearbyRadiusM)
	if c.QueryParam("radius") != "" {
		r, msg := queryFloat(c, "radius")
		switch {
		case msg != "":
			details["radius"] = msg
		case r <= 0:
			details["radius"] = "must be greater than 0"
		default:
			radius = r
		}
	}

	limit := repository.NearbyDefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > repository.NearbyMaxLimit {
			details["limit"] = "must be between 1 and " + strconv.Itoa(repository.NearbyMaxLimit)
		} else {
			limit = n
		}
	}
	if len(details) > 0 {
		return apperror.Validation("invalid query parameters").WithDetails(details)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Chargers.Nearby(ctx, model.Location{Lat: lat, Lng: lng}, radius, limit)
	if err != nil {
		return apperror.Internal(err)
	}
	return respond(c, http.StatusOK, "nearby chargers fetched successfully", list)
}

func queryFloat(c echo.Context, name string) (float64, string) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, "this field is required"
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, "must be a number"
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "must be a finite number"
	}
	return f, ""
}

func (h *ChargerHandler) Update(c echo.Context) error {
	ch, ok := middleware.ChargerFrom(c)
	if !ok {
		return apperror.NotFound("charger not found")
	}
	var req updateChargerReq
	if err := bind(c, &req); err != nil {
		return err
	}

	upd := *ch
	if req.Name != nil {
		upd.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		upd.Address = strings.TrimSpace(*req.Address)
	}
	if req.AddressDetails != nil {
		upd.AddressDetails = strings.TrimSpace(*req.AddressDetails)
	}
	if req.Location != nil {
		upd.Location = req.Location.model()
	}
	if req.Status != nil {
		upd.Status = model.ChargerStatus(*req.Status)
	}
	if req.ChargerType != nil {
		upd.ChargerType = model.ChargerType(*req.ChargerType)
	}
	if req.ConnectorTypes != nil {
		upd.ConnectorTypes = *req.ConnectorTypes
	}
	if req.MaxChargingPowerKW != nil {
		upd.MaxChargingPowerKW = *req.MaxChargingPowerKW
	}
	if req.PricePerKWh != nil {
		upd.PricePerKWh = *req.PricePerKWh
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Chargers.Update(ctx, &upd); err != nil {
		return storeErr(err, "charger not found", "")
	}
	return respond(c, http.StatusOK, "charger updated successfully", &upd)
}

// ToggleStatus flips active to inactive; any other status becomes active.
func (h *ChargerHandler) ToggleStatus(c echo.Context) error {
	ch, ok := middleware.ChargerFrom(c)
	if !ok {
		return apperror.NotFound("charger not found")
	}
	next := ch.Status.Toggled()

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Chargers.SetStatus(ctx, ch.ID, ch.OwnerID, next); err != nil {
		return storeErr(err, "charger not found", "")
	}
	upd := *ch
	upd.Status = next
	return respond(c, http.StatusOK, "charger status updated to "+string(next), &upd)
}

// UpdateImage stores the multipart field "image" and replaces the previous
// picture.
func (h *ChargerHandler) UpdateImage(c echo.Context) error {
	ch, ok := middleware.ChargerFrom(c)
	if !ok {
		return apperror.NotFound("charger not found")
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return apperror.Validation("image file is required").
			WithDetails(map[string]string{"image": "this field is required"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	url, err := h.Media.SaveImage(ctx, "chargers", fh)
	if err != nil {
		return mediaErr(err)
	}
	if err := h.Chargers.SetImage(ctx, ch.ID, ch.OwnerID, url); err != nil {
		_ = h.Media.Delete(ctx, url)
		return storeErr(err, "charger not found", "")
	}
	if ch.ImageURL != "" {
		_ = h.Media.Delete(ctx, ch.ImageURL)
	}
	upd := *ch
	upd.ImageURL = url
	return respond(c, http.StatusOK, "charger image updated successfully", &upd)
}

// Delete removes the charger together with all of its ports, occupied ones
// included.
func (h *ChargerHandler) Delete(c echo.Context) error {
	ch, ok := middleware.ChargerFrom(c)
	if !ok {
		return apperror.NotFound("charger not found")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	ports, err := h.Chargers.Delete(ctx, ch.ID, ch.OwnerID)
	if err != nil {
		return storeErr(err, "charger not found", "")
	}
	if ch.ImageURL != "" {
		_ = h.Media.Delete(ctx, ch.ImageURL)
	}
	queue.Emit(c.Request().Context(), h.Events, logger.FromEcho(c), queue.TypeChargerDeleted, ch.OwnerID,
		queue.ChargerDeleted{ChargerID: ch.ID, PortsDeleted: ports})
	return respond(c, http.StatusOK, "charger deleted successfully", chargerDeletedResp{ChargerID: ch.ID, PortsDeleted: ports})
}
