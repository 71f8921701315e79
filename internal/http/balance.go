package http

import (
	"errors"
	"net/http"

	"github.com/creditwise/credit-gateway/internal/http/middleware"
	"github.com/creditwise/credit-gateway/internal/ledger"
	"github.com/creditwise/credit-gateway/internal/logger"
	"github.com/creditwise/credit-gateway/internal/model"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func getBalanceHandler(ledgerSvc *ledger.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, ok := middleware.AccountFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		b, err := ledgerSvc.GetBalance(c.Request().Context(), acct)
		if err != nil {
			logger.Log.Error("get balance failed", zap.Int64("account_id", acct.ID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"credits_remaining": b.Remaining,
			"last_synced_at":    b.LastSyncedAt,
		})
	}
}

type debitReq struct {
	Operation string `json:"operation"`
	Quantity  int64  `json:"quantity"`
	Detail    string `json:"detail"`
}

// debitHandler charges the calling account for one billable operation. Used
// by the product's feature services, not by end users directly.
func debitHandler(ledgerSvc *ledger.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, ok := middleware.AccountFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req debitReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}

		b, err := ledgerSvc.Debit(c.Request().Context(), acct, req.Operation, req.Quantity, req.Detail)
		if err != nil {
			switch {
			case errors.Is(err, model.ErrUnrecognizedOperationType):
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "unrecognized operation type"})
			case errors.Is(err, ledger.ErrInvalidAmount):
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
			case errors.Is(err, ledger.ErrInsufficientCredits):
				return c.JSON(http.StatusPaymentRequired, map[string]any{
					"error":       "insufficient_credits",
					"description": "credit balance does not cover the operation cost",
					"operation":   req.Operation,
				})
			}
			logger.Log.Error("debit failed", zap.Int64("account_id", acct.ID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"charged":           true,
			"operation":         req.Operation,
			"credits_remaining": b.Remaining,
		})
	}
}
