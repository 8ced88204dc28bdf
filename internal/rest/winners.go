package rest

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"promoHub/pkg/logger"
)

type (
	WinnerFeed interface {
		Serve(conn *websocket.Conn, poolID uint)
	}

	WinnersHandler struct {
		feed     WinnerFeed
		upgrader websocket.Upgrader
	}
)

// NewWinnersHandler accepts websocket origins from allowedOrigins; an empty
// list or "*" accepts any origin.
func NewWinnersHandler(feed WinnerFeed, allowedOrigins []string) *WinnersHandler {
	return &WinnersHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// GET /ws/winners?pool_id=3
func (h *WinnersHandler) Subscribe(c echo.Context) error {
	var poolID uint
	if raw := c.QueryParam("pool_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid pool_id")
		}
		poolID = uint(id)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("Failed to upgrade to websocket", "error", err)
		return nil
	}

	h.feed.Serve(conn, poolID)
	return nil
}
