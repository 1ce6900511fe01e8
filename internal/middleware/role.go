package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// RequireRole returns a middleware that admits only callers whose role
// claim is one of roles.  It must run after JWTAuth, which stores the role
// in the context.  Other callers receive 403 Forbidden.
//
// Route-level gates are coarse: which bookings a MANAGER may touch is
// decided by the booking service from the caller's capabilities.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if role := RoleFrom(c); role == "" || !allowed[role] {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
