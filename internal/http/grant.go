package http

import (
	"errors"
	"net/http"

	"github.com/creditwise/credit-gateway/internal/ledger"
	"github.com/creditwise/credit-gateway/internal/logger"
	"github.com/creditwise/credit-gateway/internal/repository"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type grantReq struct {
	AccountID int64  `json:"account_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

func grantHandler(ledgerSvc *ledger.Service, accounts repository.AccountsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req grantReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		acct, err := accounts.GetByID(c.Request().Context(), req.AccountID)
		if err != nil {
			logger.Log.Error("account lookup failed", zap.Int64("account_id", req.AccountID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}
		if acct == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown account"})
		}

		b, err := ledgerSvc.Credit(c.Request().Context(), acct, req.Amount, req.Reason)
		if err != nil {
			if errors.Is(err, ledger.ErrInvalidAmount) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
			}
			logger.Log.Error("credit grant failed", zap.Int64("account_id", acct.ID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"granted":           true,
			"account_id":        acct.ID,
			"amount":            req.Amount,
			"credits_remaining": b.Remaining,
		})
	}
}

type syncReq struct {
	AccountID int64 `json:"account_id"`
}

// syncHandler reconciles an account's balance with its plan on renewal.
func syncHandler(ledgerSvc *ledger.Service, accounts repository.AccountsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req syncReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		acct, err := accounts.GetByID(c.Request().Context(), req.AccountID)
		if err != nil {
			logger.Log.Error("account lookup failed", zap.Int64("account_id", req.AccountID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}
		if acct == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown account"})
		}

		b, err := ledgerSvc.SyncFromPlan(c.Request().Context(), acct)
		if err != nil {
			if errors.Is(err, ledger.ErrUnknownPlan) {
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "unknown plan"})
			}
			logger.Log.Error("plan sync failed", zap.Int64("account_id", acct.ID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"synced":            true,
			"account_id":        acct.ID,
			"credits_remaining": b.Remaining,
			"last_synced_at":    b.LastSyncedAt,
		})
	}
}
