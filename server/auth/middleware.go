package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// userIDContextKey is the echo context key holding the authenticated user id.
const userIDContextKey = "auth.user_id"

// Middleware returns an echo middleware that authenticates requests with a
// bearer token and stores the owner identity on the request context.
func Middleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			userID, err := ParseAccessToken(token, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			c.Set(userIDContextKey, userID)
			return next(c)
		}
	}
}

// UserIDFromContext returns the authenticated user id set by Middleware.
func UserIDFromContext(c echo.Context) (int32, bool) {
	userID, ok := c.Get(userIDContextKey).(int32)
	return userID, ok
}
