package middleware

import (
	"net/http"
	"strings"

	"github.com/creditwise/credit-gateway/internal/identity"
	"github.com/creditwise/credit-gateway/internal/logger"
	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/creditwise/credit-gateway/internal/repository"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AccountFromCtx extracts the authenticated account set by IdentityMiddleware.
func AccountFromCtx(c echo.Context) (*model.Account, bool) {
	a, ok := c.Get("account").(*model.Account)
	return a, ok
}

// IdentityFromCtx extracts the verified identity set by IdentityMiddleware.
func IdentityFromCtx(c echo.Context) (identity.Identity, bool) {
	id, ok := c.Get("identity").(identity.Identity)
	return id, ok
}

// IdentityMiddleware authenticates requests with a bearer token, resolving it
// through the identity provider and lazily creating the account row on first
// access. Verification failures of any kind yield 401; the caller never
// learns why.
func IdentityMiddleware(verifier identity.Verifier, accounts repository.AccountsRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get("Authorization"))
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}

			id, err := verifier.Verify(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}

			acct, err := accounts.GetOrCreate(c.Request().Context(), id.Subject, id.Email, model.DefaultPlanKey)
			if err != nil {
				logger.Log.Error("account lookup failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if acct == nil || !acct.Active {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}

			c.Set("identity", id)
			c.Set("account", acct)
			return next(c)
		}
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
