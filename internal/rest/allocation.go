package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"promoHub/business/allocation"
	"promoHub/business/eligibility"
	"promoHub/business/wallet"
	"promoHub/domain"
	"promoHub/internal/middleware"
	"promoHub/pkg/logger"
	jsonres "promoHub/pkg/response"
)

type (
	AllocationService interface {
		Attempt(ctx context.Context, principalID, poolID uint, req allocation.AttemptRequest) (allocation.Result, error)
		Check(ctx context.Context, principalID, poolID uint) (eligibility.Decision, error)
		ListWheel(ctx context.Context, poolID uint) (allocation.WheelListing, error)
	}

	AllocationHandler struct {
		validate *validator.Validate
		service  AllocationService
		timeout  time.Duration
	}

	AttemptRequest struct {
		ContextID string         `json:"context_id" validate:"omitempty,max=64"`
		Metadata  map[string]any `json:"metadata" validate:"omitempty,max=32"`
	}

	RewardBody struct {
		Type           domain.RewardType `json:"type"`
		Value          string            `json:"value"`
		UnitID         *uint             `json:"unitId"`
		Label          string            `json:"label,omitempty"`
		Currency       domain.Currency   `json:"currency,omitempty"`
		NewBalance     string            `json:"newBalance,omitempty"`
		TicketIDs      []string          `json:"ticketIds,omitempty"`
		BonusExpiresAt *time.Time        `json:"bonusExpiresAt,omitempty"`
		Message        string            `json:"message,omitempty"`
	}

	AttemptResponse struct {
		Success           bool                  `json:"success"`
		Reward            *RewardBody           `json:"reward,omitempty"`
		RemainingAttempts *int                  `json:"remainingAttempts,omitempty"`
		AttemptID         uint                  `json:"attemptId,omitempty"`
		Outcome           domain.AttemptOutcome `json:"outcome,omitempty"`
		Reason            eligibility.Reason    `json:"reason,omitempty"`
		NextAvailableAt   *time.Time            `json:"nextAvailableAt,omitempty"`
	}

	EligibilityResponse struct {
		Allowed         bool               `json:"allowed"`
		Reason          eligibility.Reason `json:"reason,omitempty"`
		Remaining       *int               `json:"remaining"`
		NextAvailableAt *time.Time         `json:"next_available_at,omitempty"`
	}
)

func NewAllocationHandler(svc AllocationService, timeout time.Duration) *AllocationHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AllocationHandler{
		validate: validator.New(),
		service:  svc,
		timeout:  timeout,
	}
}

func poolIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid pool id")
	}
	return uint(id), nil
}

func remaining(n int) *int {
	if n == eligibility.Unlimited {
		return nil
	}
	return &n
}

// POST /api/v1/pools/:id/attempts
func (h *AllocationHandler) Attempt(c echo.Context) error {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, jsonres.Error(jsonres.CodeUnauthorized, "unauthorized", nil))
	}

	poolID, err := poolIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, jsonres.Error(jsonres.CodeBadRequest, err.Error(), nil))
	}

	var req AttemptRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, jsonres.Error(jsonres.CodeBadRequest, "invalid request body", nil))
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, jsonres.Error(jsonres.CodeBadRequest, err.Error(), nil))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	res, err := h.service.Attempt(ctx, principalID, poolID, allocation.AttemptRequest{
		ContextID: req.ContextID,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return h.attemptError(c, poolID, err)
	}

	if !res.Allowed {
		return c.JSON(http.StatusOK, AttemptResponse{
			Success:         false,
			Reason:          res.Rejection.Reason,
			NextAvailableAt: res.Rejection.NextAvailableAt,
		})
	}

	return c.JSON(http.StatusOK, AttemptResponse{
		Success:           true,
		Reward:            rewardBody(res),
		RemainingAttempts: remaining(res.RemainingAttempts),
		AttemptID:         res.AttemptID,
		Outcome:           res.Outcome,
	})
}

func rewardBody(res allocation.Result) *RewardBody {
	body := &RewardBody{
		Type:           res.Award.Type,
		Value:          res.Award.Value.StringFixed(2),
		Currency:       res.Award.Currency,
		TicketIDs:      res.Award.TicketIDs,
		BonusExpiresAt: res.Award.BonusExpiresAt,
		Message:        res.Award.Message,
	}
	if res.Unit != nil {
		id := res.Unit.ID
		body.UnitID = &id
		body.Label = res.Unit.Label
	}
	if res.Award.NewBalance != nil {
		body.NewBalance = res.Award.NewBalance.StringFixed(2)
	}
	return body
}

// statusClientClosedRequest is written when the caller went away mid-attempt.
const statusClientClosedRequest = 499

func (h *AllocationHandler) attemptError(c echo.Context, poolID uint, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		logger.Debug("Allocation attempt cancelled", "pool_id", poolID)
		return c.NoContent(statusClientClosedRequest)
	case errors.Is(err, allocation.ErrStockExhausted):
		return c.JSON(http.StatusInternalServerError, jsonres.Error(jsonres.CodeStockExhausted, "please try again", nil))
	case errors.Is(err, allocation.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, jsonres.Error(jsonres.CodeTryAgain, "please try again", nil))
	case errors.Is(err, allocation.ErrPoolNotFound):
		return c.JSON(http.StatusNotFound, jsonres.Error(jsonres.CodeNotFound, "pool not found", nil))
	case errors.Is(err, allocation.ErrPrincipalNotFound):
		return c.JSON(http.StatusNotFound, jsonres.Error(jsonres.CodeNotFound, "principal not found", nil))
	case errors.Is(err, allocation.ErrInvalidContext):
		return c.JSON(http.StatusBadRequest, jsonres.Error(jsonres.CodeBadRequest, "invalid or missing ticket", nil))
	case errors.Is(err, wallet.ErrWalletFrozen):
		return c.JSON(http.StatusConflict, jsonres.Error("WALLET_FROZEN", "wallet is frozen", nil))
	}

	logger.Error("Allocation attempt failed", "pool_id", poolID, "error", err)
	return c.JSON(http.StatusInternalServerError, jsonres.Error(jsonres.CodeInternal, "internal server error", nil))
}

// GET /api/v1/pools/:id/eligibility
func (h *AllocationHandler) Eligibility(c echo.Context) error {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, jsonres.Error(jsonres.CodeUnauthorized, "unauthorized", nil))
	}

	poolID, err := poolIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, jsonres.Error(jsonres.CodeBadRequest, err.Error(), nil))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	decision, err := h.service.Check(ctx, principalID, poolID)
	if err != nil {
		return h.attemptError(c, poolID, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(EligibilityResponse{
		Allowed:         decision.Allowed,
		Reason:          decision.Reason,
		Remaining:       remaining(decision.Remaining),
		NextAvailableAt: decision.NextAvailableAt,
	}))
}

// GET /api/v1/pools/:id/units
func (h *AllocationHandler) ListUnits(c echo.Context) error {
	poolID, err := poolIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, jsonres.Error(jsonres.CodeBadRequest, err.Error(), nil))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	listing, err := h.service.ListWheel(ctx, poolID)
	if err != nil {
		return h.attemptError(c, poolID, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(listing))
}
