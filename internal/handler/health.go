package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler is the liveness endpoint used by load balancers.  It pings
// the database and, when configured, Redis.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Health answers 200 while the database is reachable and 503 otherwise.  A
// Redis outage only degrades caching, so it is reported but not fatal.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := echo.Map{"db": "up", "redis": "disabled"}
	if h.Redis != nil {
		status["redis"] = "up"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
		}
	}
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			status["db"] = "down"
			status["ok"] = false
			return c.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return respondOK(c, http.StatusOK, status)
}
