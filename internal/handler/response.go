package handler

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"civicwatch/internal/errors"
)

// MessageResponse is returned by endpoints that only confirm an action.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewHTTPErrorHandler renders every error as an errors.ErrorResponse.
// Internal error text is only exposed when exposeDetail is set.
func NewHTTPErrorHandler(logger *slog.Logger, exposeDetail bool) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := mapError(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "unhandled error",
				"error", err,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			if exposeDetail {
				body.Detail = err.Error()
			}
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error("failed to send error response", "error", writeErr)
		}
	}
}

func mapError(err error) (int, errors.ErrorResponse) {
	// Echo's own errors (unknown route, 405, body limit) keep their status.
	var echoErr *echo.HTTPError
	if stderrors.As(err, &echoErr) {
		if resp, ok := echoErr.Message.(errors.ErrorResponse); ok {
			return echoErr.Code, resp
		}
		msg, ok := echoErr.Message.(string)
		if !ok {
			msg = fmt.Sprint(echoErr.Message)
		}
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, errors.ErrorResponse{
			Message: msg,
			Code:    statusCode(echoErr.Code),
		}
	}

	httpErr := errors.MapErrorToHTTP(err)
	return httpErr.StatusCode, httpErr.ToErrorResponse()
}

// statusCode turns "Request Entity Too Large" into "REQUEST_ENTITY_TOO_LARGE".
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// invalidBody converts a bind failure into a validation error.
func invalidBody(err error) error {
	var bindErr *echo.BindingError
	if stderrors.As(err, &bindErr) {
		return errors.NewValidationError(bindErr.Field, "invalid value")
	}
	return errors.NewValidationError("", "invalid request body")
}
