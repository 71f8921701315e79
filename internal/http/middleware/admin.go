package middleware

import (
	"net/http"

	"github.com/creditwise/credit-gateway/internal/auth"
	echo "github.com/labstack/echo/v4"
)

// AdminGateMiddleware requires a passing authorization-gate check before any
// privileged handler runs. Missing or unresolved identity fails closed with
// 401; a resolved identity outside the allow-lists gets 403. Runs after
// IdentityMiddleware.
func AdminGateMiddleware(gate *auth.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFromCtx(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			if !gate.IsAuthorized(id) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
