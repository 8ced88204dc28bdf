package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"

	"promoHub/business/history"
	"promoHub/domain"
	"promoHub/internal/middleware"
	"promoHub/pkg/logger"
	jsonres "promoHub/pkg/response"
)

type (
	HistoryService interface {
		ListForPrincipal(ctx context.Context, principalID uint, limit int) ([]domain.AllocationAttempt, error)
		PoolStats(ctx context.Context, poolID uint, since time.Time) (domain.PoolStats, error)
		Trend(ctx context.Context, poolID uint, days int) ([]domain.TrendPoint, error)
		RecentWins(ctx context.Context, poolID uint, limit int) ([]history.WinEvent, error)
	}

	HistoryHandler struct {
		service HistoryService
	}
)

func NewHistoryHandler(svc HistoryService) *HistoryHandler {
	return &HistoryHandler{service: svc}
}

func intQuery(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}

// GET /api/v1/me/attempts?limit=50
func (h *HistoryHandler) MyAttempts(c echo.Context) error {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, jsonres.Error(jsonres.CodeUnauthorized, "unauthorized", nil))
	}

	rows, err := h.service.ListForPrincipal(c.Request().Context(), principalID, intQuery(c, "limit"))
	if err != nil {
		logger.Error("Failed to list attempts", "principal_id", principalID, "error", err)
		return c.JSON(http.StatusInternalServerError, jsonres.Error(jsonres.CodeInternal, "internal server error", nil))
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(rows))
}

// GET /api/v1/pools/:id/winners?limit=20
func (h *HistoryHandler) RecentWins(c echo.Context) error {
	poolID, err := poolIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, jsonres.Error(jsonres.CodeBadRequest, err.Error(), nil))
	}

	events, err := h.service.RecentWins(c.Request().Context(), poolID, intQuery(c, "limit"))
	if err != nil {
		logger.Error("Failed to list wins", "pool_id", poolID, "error", err)
		return c.JSON(http.StatusInternalServerError, jsonres.Error(jsonres.CodeInternal, "internal server error", nil))
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(events))
}

// GET /api/v1/admin/pools/:id/stats?since=2026-10-01T00:00:00Z
func (h *HistoryHandler) PoolStats(c echo.Context) error {
	poolID, err := poolIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, jsonres.Error(jsonres.CodeBadRequest, err.Error(), nil))
	}

	var since time.Time
	if raw := c.QueryParam("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, jsonres.Error(jsonres.CodeBadRequest, "since must be RFC3339", nil))
		}
	}

	stats, err := h.service.PoolStats(c.Request().Context(), poolID, since)
	if err != nil {
		logger.Error("Failed to compute pool stats", "pool_id", poolID, "error", err)
		return c.JSON(http.StatusInternalServerError, jsonres.Error(jsonres.CodeInternal, "internal server error", nil))
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(stats))
}

// GET /api/v1/admin/pools/:id/trend?days=7
func (h *HistoryHandler) Trend(c echo.Context) error {
	poolID, err := poolIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, jsonres.Error(jsonres.CodeBadRequest, err.Error(), nil))
	}

	points, err := h.service.Trend(c.Request().Context(), poolID, intQuery(c, "days"))
	if err != nil {
		logger.Error("Failed to compute trend", "pool_id", poolID, "error", err)
		return c.JSON(http.StatusInternalServerError, jsonres.Error(jsonres.CodeInternal, "internal server error", nil))
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(points))
}
