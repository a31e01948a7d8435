package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/middleware"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
)

type PortStore interface {
	Create(ctx context.Context, p *model.ChargerPort) error
	ListByCharger(ctx context.Context, chargerID uint64) ([]*model.ChargerPort, error)
	Update(ctx context.Context, p *model.ChargerPort) error
	SetStatus(ctx context.Context, id, chargerID uint64, status model.PortStatus) error
	Delete(ctx context.Context, id, chargerID uint64) error
}

type ChargerReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Charger, error)
}

type PortHandler struct {
	Ports    PortStore
	Chargers ChargerReader
}

func NewPortHandler(ports PortStore, chargers ChargerReader) *PortHandler {
	return &PortHandler{Ports: ports, Chargers: chargers}
}

type createPortReq struct {
	ConnectorType model.ConnectorType `json:"connector_type" validate:"required,connector"`
	MaxPowerKW    float64             `json:"max_power_kw" validate:"required,gt=0"`
	PricePerKWh   float64             `json:"price_per_kwh" validate:"required,gt=0"`
	Status        string              `json:"status" validate:"omitempty,oneof=available occupied faulty unavailable"`
}

type updatePortReq struct {
	ConnectorType *model.ConnectorType `json:"connector_type" validate:"omitempty,connector"`
	MaxPowerKW    *float64             `json:"max_power_kw" validate:"omitempty,gt=0"`
	PricePerKWh   *float64             `json:"price_per_kwh" validate:"omitempty,gt=0"`
}

type portStatusReq struct {
	Status string `json:"status" validate:"required,oneof=available occupied faulty unavailable"`
}

// Create adds a port numbered one past the highest number the charger has
// ever used.
func (h *PortHandler) Create(c echo.Context) error {
	ch, ok := middleware.ChargerFrom(c)
	if !ok {
		return apperror.NotFound("charger not found")
	}
	var req createPortReq
	if err := bind(c, &req); err != nil {
		return err
	}
	p := &model.ChargerPort{
		ChargerID:     ch.ID,
		ConnectorType: req.ConnectorType,
		MaxPowerKW:    req.MaxPowerKW,
		PricePerKWh:   req.PricePerKWh,
		Status:        model.PortStatus(req.Status),
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Ports.Create(ctx, p); err != nil {
		return storeErr(err, "charger not found", "port number already taken, please retry")
	}
	return respond(c, http.StatusCreated, "port created successfully", p)
}

// List is open to any authenticated user, but only the owner sees the ports
// of a charger that is not active.
func (h *PortHandler) List(c echo.Context) error {
	u, err := principal(c)
	if err != nil {
		return err
	}
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
	if ch.OwnerID != u.ID && ch.Status != model.ChargerActive {
		return apperror.Forbidden("charger not available")
	}
	ports, err := h.Ports.ListByCharger(ctx, ch.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	return respond(c, http.StatusOK, "ports fetched successfully", ports)
}

func (h *PortHandler) Update(c echo.Context) error {
	p, ok := middleware.PortFrom(c)
	if !ok {
		return apperror.NotFound("port not found")
	}
	var req updatePortReq
	if err := bind(c, &req); err != nil {
		return err
	}
	upd := *p
	if req.ConnectorType != nil {
		upd.ConnectorType = *req.ConnectorType
	}
	if req.MaxPowerKW != nil {
		upd.MaxPowerKW = *req.MaxPowerKW
	}
	if req.PricePerKWh != nil {
		upd.PricePerKWh = *req.PricePerKWh
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Ports.Update(ctx, &upd); err != nil {
		return storeErr(err, "port not found", "")
	}
	return respond(c, http.StatusOK, "port updated successfully", &upd)
}

func (h *PortHandler) UpdateStatus(c echo.Context) error {
	p, ok := middleware.PortFrom(c)
	if !ok {
		return apperror.NotFound("port not found")
	}
	var req portStatusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	status := model.PortStatus(req.Status)
	if status == p.Status {
		return respond(c, http.StatusOK, "port status already set", p)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Ports.SetStatus(ctx, p.ID, p.ChargerID, status); err != nil {
		return storeErr(err, "port not found", "")
	}
	upd := *p
	upd.Status = status
	return respond(c, http.StatusOK, "port status updated successfully", &upd)
}

func (h *PortHandler) Delete(c echo.Context) error {
	p, ok := middleware.PortFrom(c)
	if !ok {
		return apperror.NotFound("port not found")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	err := h.Ports.Delete(ctx, p.ID, p.ChargerID)
	if errors.Is(err, repository.ErrPortOccupied) {
		return apperror.Conflict("cannot delete an occupied port")
	}
	if err != nil {
		return storeErr(err, "port not found", "")
	}
	return respond(c, http.StatusOK, "port deleted successfully", nil)
}
