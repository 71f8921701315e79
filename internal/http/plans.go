package http

import (
	"net/http"

	"github.com/creditwise/credit-gateway/internal/logger"
	"github.com/creditwise/credit-gateway/internal/repository"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func listPlansHandler(plans repository.PlansRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows, err := plans.ListActive(c.Request().Context())
		if err != nil {
			logger.Log.Error("list plans failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}

		out := make([]map[string]any, 0, len(rows))
		for _, p := range rows {
			out = append(out, map[string]any{
				"key":          p.Key,
				"name":         p.Name,
				"base_credits": p.BaseCredits,
				"price_cents":  p.PriceCents,
				"currency":     p.Currency,
				"features":     p.FeatureList(),
			})
		}
		return c.JSON(http.StatusOK, map[string]any{"plans": out})
	}
}
