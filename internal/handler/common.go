package handler // handler defines http handlers

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/hotel-booking/internal/middleware"
    "github.com/iliyamo/hotel-booking/internal/service"
)

const dateLayout = "2006-01-02"

// callerFrom builds the service caller from the identity JWTAuth stored.
func callerFrom(c echo.Context) service.Caller {
    return service.NewCaller(middleware.UserIDFrom(c), middleware.RoleFrom(c))
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

// statusFor maps a service error kind to an HTTP status.
func statusFor(kind service.Kind) int {
    switch kind {
    case service.KindValidation:
        return http.StatusBadRequest
    case service.KindUnavailable, service.KindConflict:
        return http.StatusConflict
    case service.KindExternal:
        return http.StatusPaymentRequired
    case service.KindNotFound:
        return http.StatusNotFound
    case service.KindUnauthorized:
        return http.StatusForbidden
    default:
        return http.StatusInternalServerError
    }
}

// writeError renders err as {"error": reason}.  Internal causes are
// logged, never sent to the client.
func writeError(c echo.Context, err error) error {
    kind := service.KindOf(err)
    if kind == service.KindInternal {
        c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
    }
    return c.JSON(statusFor(kind), echo.Map{"error": service.ReasonOf(err)})
}
