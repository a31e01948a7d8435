package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports liveness plus database reachability for load balancers.
type Health struct {
	DB Pinger
}

func (h *Health) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "up"}
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = "down"
			return respond(c, http.StatusServiceUnavailable, "database unreachable", status)
		}
	}
	return respond(c, http.StatusOK, "ok", status)
}
