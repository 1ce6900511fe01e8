package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// HealthHandler reports whether the service and its backing stores are
// reachable.  Load balancers and monitoring poll it.
type HealthHandler struct {
    DB    *sql.DB
    Redis *redis.Client // optional
}

// Health returns 200 with per-dependency status, or 503 when MySQL is down.
// Redis is reported but never fails the check: the service degrades
// without it.
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    out := echo.Map{"status": "ok", "mysql": "ok", "redis": "disabled"}
    code := http.StatusOK
    if h.DB == nil || h.DB.PingContext(ctx) != nil {
        out["status"], out["mysql"] = "degraded", "down"
        code = http.StatusServiceUnavailable
    }
    if h.Redis != nil {
        out["redis"] = "ok"
        if h.Redis.Ping(ctx).Err() != nil {
            out["redis"] = "down"
        }
    }
    return c.JSON(code, out)
}
