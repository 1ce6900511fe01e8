package handler

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/hotel-booking/internal/middleware"
    "github.com/iliyamo/hotel-booking/internal/model"
)

// LoyaltyReader exposes a user's account and ledger.
type LoyaltyReader interface {
	Account(ctx context.Context, userID uint64) (*model.LoyaltyAccount, error)
	History(ctx context.Context, userID uint64, limit int) ([]model.PointsTransaction, error)
	Reconcile(ctx context.Context, userID uint64) (balance, sum int64, err error)
}

type LoyaltyHandler struct {
	Loyalty LoyaltyReader
}

func NewLoyaltyHandler(l LoyaltyReader) *LoyaltyHandler { return &LoyaltyHandler{Loyalty: l} }

// GetLoyalty handles GET /v1/loyalty?limit=N: the caller's balance and
// most recent transactions.
func (h *LoyaltyHandler) GetLoyalty(c echo.Context) error {
	uid := middleware.UserIDFrom(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 100"})
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	acct, err := h.Loyalty.Account(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	history, err := h.Loyalty.History(ctx, uid, limit)
	if err != nil {
		return writeError(c, err)
	}
	if history == nil {
		history = []model.PointsTransaction{}
	}
	return c.JSON(http.StatusOK, echo.Map{"account": acct, "history": history})
}

// Reconcile handles GET /v1/admin/loyalty/:user_id/reconcile.  It reports
// the stored balance next to the sum of the user's ledger entries.
func (h *LoyaltyHandler) Reconcile(c echo.Context) error {
	uid, ok := pathID(c, "user_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	balance, sum, err := h.Loyalty.Reconcile(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":    uid,
		"balance":    balance,
		"ledger_sum": sum,
		"consistent": balance == sum,
	})
}
