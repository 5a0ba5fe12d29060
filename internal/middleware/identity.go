package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's id as a string for use in
// rate limit keys, or "anon" when the request is not authenticated.
func currentUserID(c echo.Context) string {
	if uid, ok := c.Get(ContextUserID).(uint64); ok && uid != 0 {
		return strconv.FormatUint(uid, 10)
	}
	return "anon"
}
