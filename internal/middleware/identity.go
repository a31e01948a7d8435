package middleware

// identity.go holds the request-scoped values the authorization chain
// resolves once and hands to later links and handlers: the principal and the
// vehicle, charger, port and subscription already loaded for this request.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/model"
)

const (
	principalKey    = "principal"
	vehicleKey      = "owned_vehicle"
	chargerKey      = "owned_charger"
	portKey         = "owned_port"
	subscriptionKey = "active_subscription"
)

// PrincipalFrom returns the authenticated user (public copy).
func PrincipalFrom(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(principalKey).(*model.User)
	return u, ok && u != nil
}

// SetPrincipal attaches u to the request. Authenticate is the only caller
// outside tests.
func SetPrincipal(c echo.Context, u *model.User) { c.Set(principalKey, u) }

func VehicleFrom(c echo.Context) (*model.Vehicle, bool) {
	v, ok := c.Get(vehicleKey).(*model.Vehicle)
	return v, ok && v != nil
}

func ChargerFrom(c echo.Context) (*model.Charger, bool) {
	ch, ok := c.Get(chargerKey).(*model.Charger)
	return ch, ok && ch != nil
}

func PortFrom(c echo.Context) (*model.ChargerPort, bool) {
	p, ok := c.Get(portKey).(*model.ChargerPort)
	return p, ok && p != nil
}

func SubscriptionFrom(c echo.Context) (*model.Subscription, bool) {
	s, ok := c.Get(subscriptionKey).(*model.Subscription)
	return s, ok && s != nil
}

// userID is the principal id as a string, or "anon" before authentication.
func userID(c echo.Context) string {
	if u, ok := PrincipalFrom(c); ok {
		return strconv.FormatUint(u.ID, 10)
	}
	return "anon"
}
