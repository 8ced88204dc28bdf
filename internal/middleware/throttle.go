package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"promoHub/pkg/logger"
	jsonres "promoHub/pkg/response"
)

// Allower counts one request for key against a shared budget.
type Allower interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Throttle limits attempts per principal through a shared counter. Requests
// pass when the counter is unreachable.
func Throttle(limiter Allower) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := PrincipalID(c)
			if !ok {
				return next(c)
			}

			allowed, retry, err := limiter.Allow(c.Request().Context(), fmt.Sprint(id))
			if err != nil {
				logger.Warn("Throttle unavailable, allowing request", "principal_id", id, "error", err)
				return next(c)
			}
			if !allowed {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				return c.JSON(http.StatusTooManyRequests, jsonres.Error(
					jsonres.CodeTooMany, "Too many attempts, slow down", nil,
				))
			}
			return next(c)
		}
	}
}

// MemoryThrottle is the single-instance fallback built on echo's rate
// limiter, keyed by principal.
func MemoryThrottle(limit int, window time.Duration) echo.MiddlewareFunc {
	if limit <= 0 || window <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(limit) / window.Seconds()),
		Burst:     limit,
		ExpiresIn: 2 * window,
	})

	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id, ok := PrincipalID(c); ok {
				return fmt.Sprint(id), nil
			}
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, jsonres.Error(
				jsonres.CodeTooMany, "Too many attempts, slow down", nil,
			))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, jsonres.Error(
				jsonres.CodeForbidden, "Unable to identify caller", nil,
			))
		},
	})
}
