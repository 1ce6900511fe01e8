package middleware

// identity.go reads the authenticated identity that JWTAuth stored in the
// Echo context.  Unauthenticated requests yield zero values.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// UserIDFrom returns the authenticated user's ID, or 0.
func UserIDFrom(c echo.Context) uint64 {
    if id, ok := c.Get(ctxUserID).(uint64); ok {
        return id
    }
    return 0
}

// RoleFrom returns the authenticated user's role, or "".
func RoleFrom(c echo.Context) string {
    role, _ := c.Get(ctxRole).(string)
    return role
}

// identityKey names the caller in rate-limit keys: the user ID when
// signed in, "anon" otherwise.
func identityKey(c echo.Context) string {
    if id := UserIDFrom(c); id != 0 {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
