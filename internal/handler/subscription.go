package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/logger"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/queue"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
)

type PlanReader interface {
	List(ctx context.Context, activeOnly bool) ([]*model.Plan, error)
	GetActiveByID(ctx context.Context, id uint64) (*model.Plan, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, s *model.Subscription) error
	GetActive(ctx context.Context, ownerID uint64, now time.Time) (*model.Subscription, error)
	HasActive(ctx context.Context, ownerID uint64) (bool, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Subscription, error)
	ExpireStaleForOwner(ctx context.Context, ownerID uint64, now time.Time) (int64, error)
	CancelActive(ctx context.Context, ownerID uint64) error
}

type SubscriptionHandler struct {
	Plans  PlanReader
	Subs   SubscriptionStore
	Events queue.Publisher
	Now    func() time.Time
}

func NewSubscriptionHandler(plans PlanReader, subs SubscriptionStore, events queue.Publisher) *SubscriptionHandler {
	return &SubscriptionHandler{Plans: plans, Subs: subs, Events: events, Now: time.Now}
}

const alreadySubscribed = "an active subscription already exists"

type startSubscriptionReq struct {
	PlanID uint64 `json:"plan_id" validate:"required"`
}

func (h *SubscriptionHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *SubscriptionHandler) ListPlans(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	plans, err := h.Plans.List(ctx, true)
	if err != nil {
		return apperror.Internal(err)
	}
	return respond(c, http.StatusOK, "plans fetched successfully", plans)
}

// Start subscribes the caller to a plan. Lapsed rows are expired first so
// they do not count as active; the unique index on the active owner catches
// a concurrent start.
func (h *SubscriptionHandler) Start(c echo.Context) error {
	var req startSubscriptionReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	plan, err := h.Plans.GetActiveByID(ctx, req.PlanID)
	if err != nil {
		return storeErr(err, "plan not found", "")
	}
	now := h.now()
	if _, err := h.Subs.ExpireStaleForOwner(ctx, u.ID, now); err != nil {
		return apperror.Internal(err)
	}
	active, err := h.Subs.HasActive(ctx, u.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	if active {
		return apperror.Conflict(alreadySubscribed)
	}

	days := plan.DurationDays
	if days <= 0 {
		days = 30
	}
	paidAt := now
	sub := &model.Subscription{
		OwnerID:           u.ID,
		PlanID:            plan.ID,
		Status:            model.SubscriptionActive,
		StartsAt:          now,
		EndsAt:            now.AddDate(0, 0, days),
		LastPaymentAt:     &paidAt,
		LastPaymentStatus: model.PaymentSuccess,
		CreatedAt:         now,
		UpdatedAt:         now,
		Plan:              plan,
	}
	if err := h.Subs.Create(ctx, sub); err != nil {
		return storeErr(err, "plan not found", alreadySubscribed)
	}

	queue.Emit(c.Request().Context(), h.Events, logger.FromEcho(c), queue.TypeSubscriptionStarted, u.ID,
		queue.SubscriptionStarted{SubscriptionID: sub.ID, PlanID: plan.ID, PlanName: plan.Name, EndsAt: sub.EndsAt})
	return respond(c, http.StatusCreated, "subscription started successfully", sub)
}

func (h *SubscriptionHandler) Me(c echo.Context) error {
	u, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	sub, err := h.Subs.GetActive(ctx, u.ID, h.now())
	if err != nil {
		return storeErr(err, "no active subscription", "")
	}
	return respond(c, http.StatusOK, "subscription fetched successfully", sub)
}

func (h *SubscriptionHandler) History(c echo.Context) error {
	u, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Subs.ListByOwner(ctx, u.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	return respond(c, http.StatusOK, "subscription history fetched successfully", list)
}

func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	u, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	err = h.Subs.CancelActive(ctx, u.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("no active subscription")
	}
	if err != nil {
		return apperror.Internal(err)
	}
	return respond(c, http.StatusOK, "subscription cancelled successfully", nil)
}
