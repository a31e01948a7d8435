package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/metrics"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
)

type ActiveSubscriptionSource interface {
	GetActive(ctx context.Context, ownerID uint64, now time.Time) (*model.Subscription, error)
}

type ChargerCounter interface {
	CountByOwner(ctx context.Context, ownerID uint64) (int64, error)
}

type PortCounter interface {
	CountByCharger(ctx context.Context, chargerID uint64) (int64, error)
}

// Entitlements enforces the plan attached to a charger owner's active
// subscription. Principals with any other role are not subject to plans and
// pass straight through.
type Entitlements struct {
	Subs     ActiveSubscriptionSource
	Chargers ChargerCounter
	Ports    PortCounter
	Now      func() time.Time
}

var (
	errNoSubscription = apperror.LimitExceeded("an active subscription is required")
	errChargerLimit   = apperror.LimitExceeded("charger limit reached for your plan")
	errPortLimit      = apperror.LimitExceeded("port limit reached for this charger")
)

func (e *Entitlements) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Entitlements) RequireActiveSubscription() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := PrincipalFrom(c)
			if !ok {
				return errUnauthorized
			}
			if u.Role != model.RoleChargerOwner {
				return next(c)
			}
			if _, err := e.subscription(c, u); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// ChargerLimit rejects charger creation once the owner holds max_chargers.
func (e *Entitlements) ChargerLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := PrincipalFrom(c)
			if !ok {
				return errUnauthorized
			}
			if u.Role != model.RoleChargerOwner {
				return next(c)
			}
			sub, err := e.subscription(c, u)
			if err != nil {
				return err
			}
			if sub.Plan.MaxChargers != nil {
				n, err := e.Chargers.CountByOwner(c.Request().Context(), u.ID)
				if err != nil {
					return apperror.Internal(err)
				}
				if !sub.Plan.AllowsAnotherCharger(n) {
					metrics.EntitlementRejections.WithLabelValues("charger_limit").Inc()
					return errChargerLimit
				}
			}
			return next(c)
		}
	}
}

// PortLimit rejects port creation once the charger holds
// max_ports_per_charger. It needs the charger cached by OwnedCharger.
func (e *Entitlements) PortLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := PrincipalFrom(c)
			if !ok {
				return errUnauthorized
			}
			if u.Role != model.RoleChargerOwner {
				return next(c)
			}
			ch, ok := ChargerFrom(c)
			if !ok {
				return apperror.Internal(errors.New("port limit: no charger in request context"))
			}
			sub, err := e.subscription(c, u)
			if err != nil {
				return err
			}
			if sub.Plan.MaxPortsPerCharger != nil {
				n, err := e.Ports.CountByCharger(c.Request().Context(), ch.ID)
				if err != nil {
					return apperror.Internal(err)
				}
				if !sub.Plan.AllowsAnotherPort(n) {
					metrics.EntitlementRejections.WithLabelValues("port_limit").Inc()
					return errPortLimit
				}
			}
			return next(c)
		}
	}
}

// subscription returns the entitling subscription cached on the request,
// loading it on first use.
func (e *Entitlements) subscription(c echo.Context, u *model.User) (*model.Subscription, error) {
	if sub, ok := SubscriptionFrom(c); ok {
		return sub, nil
	}
	now := e.now()
	sub, err := e.Subs.GetActive(c.Request().Context(), u.ID, now)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Internal(err)
	}
	if sub == nil || sub.Plan == nil || !sub.Entitled(now) {
		metrics.EntitlementRejections.WithLabelValues("subscription").Inc()
		return nil, errNoSubscription
	}
	c.Set(subscriptionKey, sub)
	return sub, nil
}
