package middleware

import (
	"github.com/labstack/echo/v4"

	"promoHub/business/allocation"
)

// TraceID copies the request id assigned by echo's RequestID middleware into
// the request context so allocation logs and audit rows carry it.
func TraceID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(allocation.WithTraceID(req.Context(), id)))
			}
			return next(c)
		}
	}
}
