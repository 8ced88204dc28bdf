package router

import (
	"promoHub/internal/middleware"
	"promoHub/internal/rest"

	"github.com/labstack/echo/v4"
)

// SetupPoolRoutes mounts the player-facing pool endpoints. throttle guards
// only the attempt endpoint.
func SetupPoolRoutes(api *echo.Group, handler *rest.AllocationHandler, history *rest.HistoryHandler, throttle echo.MiddlewareFunc) {
	pools := api.Group("/pools", middleware.AuthMiddleware())

	pools.POST("/:id/attempts", handler.Attempt, throttle)
	pools.GET("/:id/eligibility", handler.Eligibility)
	pools.GET("/:id/units", handler.ListUnits)
	pools.GET("/:id/winners", history.RecentWins)
}

func SetupMeRoutes(api *echo.Group, history *rest.HistoryHandler, account *rest.AccountHandler) {
	me := api.Group("/me", middleware.AuthMiddleware())

	me.GET("/attempts", history.MyAttempts)
	me.GET("/wallets", account.Wallets)
	me.GET("/tickets", account.Tickets)
}

func SetupAdminRoutes(api *echo.Group, history *rest.HistoryHandler) {
	admin := api.Group("/admin/pools", middleware.AuthMiddleware(), middleware.AdminOnly())

	admin.GET("/:id/stats", history.PoolStats)
	admin.GET("/:id/trend", history.Trend)
}

func SetupWinnersRoutes(e *echo.Echo, handler *rest.WinnersHandler) {
	e.GET("/ws/winners", handler.Subscribe)
}
