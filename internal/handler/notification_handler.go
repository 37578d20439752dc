package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"civicwatch/internal/errors"
	"civicwatch/internal/model"
)

// Notifier pushes a notification to a user's live connection.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, n model.Notification) bool
}

// NotificationHandler exposes a manual push for exercising live connections.
type NotificationHandler struct {
	notifier Notifier
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notifier Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// TestNotificationRequest represents a manual push.
type TestNotificationRequest struct {
	UserID  string `json:"userId" validate:"required,uuid"`
	Message string `json:"message" validate:"required,max=500"`
}

// TestNotificationResponse reports whether a live connection took the push.
type TestNotificationResponse struct {
	Success   bool `json:"success"`
	Delivered bool `json:"delivered"`
}

// Send godoc
// @Summary Push a test notification to a user
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body TestNotificationRequest true "Target and message"
// @Success 200 {object} TestNotificationResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /test-notification [post]
func (h *NotificationHandler) Send(c echo.Context) error {
	var req TestNotificationRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return errors.NewValidationError("userId", "must be a valid id")
	}
	delivered := h.notifier.Notify(c.Request().Context(), userID,
		model.NewNotification(model.NotificationInfo, "Test notification", req.Message, nil))
	return c.JSON(http.StatusOK, TestNotificationResponse{Success: true, Delivered: delivered})
}
