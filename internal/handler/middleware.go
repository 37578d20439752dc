package handler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"civicwatch/internal/auth"
	"civicwatch/internal/errors"
)

// ContextKeyIdentity is where the JWT middleware stores the verified auth.Identity.
const ContextKeyIdentity = "identity"

// RequestLogger logs each HTTP request with structured fields.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let the error handler set the final status before logging it.
				c.Error(err)
			}

			logger.InfoContext(c.Request().Context(), "http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", c.RealIP(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return nil
		}
	}
}

// ParseToken adapts a token verifier to echo-jwt's ParseTokenFunc.
func ParseToken(jwtService *auth.JWTService) func(c echo.Context, token string) (interface{}, error) {
	return func(c echo.Context, token string) (interface{}, error) {
		identity, err := jwtService.Verify(token)
		if err != nil {
			return nil, err
		}
		return identity, nil
	}
}

// JWTErrorHandler turns every echo-jwt failure into a 401.
func JWTErrorHandler(c echo.Context, err error) error {
	return fmt.Errorf("missing, invalid or expired token: %w", errors.ErrUnauthenticated)
}

// CurrentIdentity returns the identity the JWT middleware verified.
func CurrentIdentity(c echo.Context) (auth.Identity, bool) {
	identity, ok := c.Get(ContextKeyIdentity).(auth.Identity)
	return identity, ok
}

// RequireAdmin rejects tokens that were not issued to an administrator.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := CurrentIdentity(c)
			if !ok {
				return errors.ErrUnauthenticated
			}
			if !identity.IsAdmin() {
				return fmt.Errorf("admin access required: %w", errors.ErrForbidden)
			}
			return next(c)
		}
	}
}

func mustIdentity(c echo.Context) (auth.Identity, error) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return auth.Identity{}, errors.ErrUnauthenticated
	}
	return identity, nil
}
