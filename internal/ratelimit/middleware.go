package ratelimit

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"civicwatch/internal/errors"
)

// Middleware enforces the limiter per client address before any handler runs.
func Middleware(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, errors.ErrorResponse{
				Message: "unable to identify client",
				Code:    "RATE_LIMIT_ERROR",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, errors.ErrorResponse{
				Message: "too many requests, please try again later",
				Code:    "RATE_LIMITED",
			})
		},
	})
}
