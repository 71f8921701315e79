package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/creditwise/credit-gateway/internal/http/middleware"
	"github.com/creditwise/credit-gateway/internal/logger"
	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/creditwise/credit-gateway/internal/repository"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func listUsageHandler(chRepo repository.CHUsageRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, ok := middleware.AccountFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var feature model.OperationType
		if raw := strings.TrimSpace(c.QueryParam("feature")); raw != "" {
			op, err := model.ParseOperationType(raw)
			if err != nil {
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "unrecognized operation type"})
			}
			feature = op
		}

		rows, err := chRepo.ListByAccount(c.Request().Context(), acct.ID, feature, limit, offset)
		if err != nil {
			logger.Log.Error("usage query failed", zap.Int64("account_id", acct.ID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
