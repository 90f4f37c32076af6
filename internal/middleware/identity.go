package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// userID renders the authenticated user for log fields and rate-limit keys.
// It returns "anon" when no user is authenticated.
func userID(c echo.Context) string {
    switch v := c.Get(CtxUserID).(type) {
    case uint64:
        return strconv.FormatUint(v, 10)
    case string:
        if v != "" {
            return v
        }
    }
    return "anon"
}
