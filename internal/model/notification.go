package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType drives how the client renders a notification.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is a transient message pushed to a live connection. It is never persisted.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	ReportID  *uuid.UUID       `json:"reportId,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// NewNotification stamps a fresh id and timestamp.
func NewNotification(kind NotificationType, title, message string, reportID *uuid.UUID) Notification {
	return Notification{
		ID:        uuid.New(),
		Type:      kind,
		Title:     title,
		Message:   message,
		ReportID:  reportID,
		Timestamp: time.Now().UTC(),
	}
}
