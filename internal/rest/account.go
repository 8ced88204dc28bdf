package rest

import (
	"context"
	"net/http"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"

	"promoHub/domain"
	"promoHub/internal/middleware"
	"promoHub/pkg/logger"
	jsonres "promoHub/pkg/response"
)

type (
	WalletReader interface {
		Balances(ctx context.Context, principalID uint) ([]domain.Wallet, error)
	}

	TicketReader interface {
		ListTickets(ctx context.Context, ownerID uint, limit int) ([]domain.Ticket, error)
	}

	AccountHandler struct {
		wallets WalletReader
		tickets TicketReader
	}
)

func NewAccountHandler(wallets WalletReader, tickets TicketReader) *AccountHandler {
	return &AccountHandler{wallets: wallets, tickets: tickets}
}

// GET /api/v1/me/wallets
func (h *AccountHandler) Wallets(c echo.Context) error {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, jsonres.Error(jsonres.CodeUnauthorized, "unauthorized", nil))
	}

	wallets, err := h.wallets.Balances(c.Request().Context(), principalID)
	if err != nil {
		logger.Error("Failed to load wallets", "principal_id", principalID, "error", err)
		return c.JSON(http.StatusInternalServerError, jsonres.Error(jsonres.CodeInternal, "internal server error", nil))
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(wallets))
}

// GET /api/v1/me/tickets?limit=50
func (h *AccountHandler) Tickets(c echo.Context) error {
	principalID, ok := middleware.PrincipalID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, jsonres.Error(jsonres.CodeUnauthorized, "unauthorized", nil))
	}

	tickets, err := h.tickets.ListTickets(c.Request().Context(), principalID, intQuery(c, "limit"))
	if err != nil {
		logger.Error("Failed to load tickets", "principal_id", principalID, "error", err)
		return c.JSON(http.StatusInternalServerError, jsonres.Error(jsonres.CodeInternal, "internal server error", nil))
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(tickets))
}
