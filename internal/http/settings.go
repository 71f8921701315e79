package http

import (
	"net/http"

	"github.com/creditwise/credit-gateway/internal/logger"
	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/creditwise/credit-gateway/internal/settings"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type settingsPayload struct {
	FeatureCosts map[string]int64 `json:"feature_costs"`
	PlanCredits  map[string]int64 `json:"plan_credits"`
}

func getSettingsHandler(resolver *settings.Resolver) echo.HandlerFunc {
	return func(c echo.Context) error {
		costs, err := resolver.EffectiveFeatureCosts(c.Request().Context())
		if err != nil {
			logger.Log.Error("resolve feature costs failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}
		credits, err := resolver.EffectivePlanCredits(c.Request().Context())
		if err != nil {
			logger.Log.Error("resolve plan credits failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}

		out := settingsPayload{
			FeatureCosts: make(map[string]int64, len(costs)),
			PlanCredits:  credits,
		}
		for op, cost := range costs {
			out.FeatureCosts[op.String()] = cost
		}
		return c.JSON(http.StatusOK, out)
	}
}

// putSettingsHandler validates every key against the closed sets before
// writing anything; a single bad key rejects the whole request.
func putSettingsHandler(resolver *settings.Resolver) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req settingsPayload
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		ops := make(map[model.OperationType]int64, len(req.FeatureCosts))
		for key, cost := range req.FeatureCosts {
			op, err := resolver.ToOperationType(key)
			if err != nil {
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{
					"error": "unrecognized operation type", "key": key,
				})
			}
			if cost < 0 {
				return c.JSON(http.StatusBadRequest, map[string]string{
					"error": "cost must be non-negative", "key": key,
				})
			}
			ops[op] = cost
		}

		known, err := resolver.EffectivePlanCredits(c.Request().Context())
		if err != nil {
			logger.Log.Error("resolve plan credits failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}
		for key, credits := range req.PlanCredits {
			if _, ok := known[key]; !ok {
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{
					"error": "unknown plan", "key": key,
				})
			}
			if credits < 0 {
				return c.JSON(http.StatusBadRequest, map[string]string{
					"error": "credits must be non-negative", "key": key,
				})
			}
		}

		// One transaction for the whole request: a mid-write failure must not
		// leave a partial override set behind.
		if err := resolver.ApplyOverrides(c.Request().Context(), ops, req.PlanCredits); err != nil {
			logger.Log.Error("apply settings failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"updated":       true,
			"feature_costs": len(ops),
			"plan_credits":  len(req.PlanCredits),
		})
	}
}
