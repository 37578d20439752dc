package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"civicwatch/internal/model"
)

// Notifier delivers notifications to live connections at most once.
// Users without a connection silently miss the event.
type Notifier struct {
	registry *Registry
	logger   *slog.Logger
}

// NewNotifier creates a notifier over the given registry.
func NewNotifier(registry *Registry, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{registry: registry, logger: logger}
}

// Notify pushes n to the user's connection and reports whether it was handed over.
// A failing connection is logged and dropped from the registry.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, notification model.Notification) bool {
	conn, ok := n.registry.Lookup(userID)
	if !ok {
		return false
	}
	if err := conn.Send(notification); err != nil {
		n.logger.WarnContext(ctx, "notification delivery failed",
			"user_id", userID,
			"conn_id", conn.ID(),
			"error", err,
		)
		n.registry.Unregister(conn)
		return false
	}
	n.logger.DebugContext(ctx, "notification delivered", "user_id", userID, "type", notification.Type)
	return true
}

// ReportStatusChanged tells the report owner about the report's new status.
func (n *Notifier) ReportStatusChanged(ctx context.Context, report *model.Report) bool {
	return n.Notify(ctx, report.CreatedBy, StatusChangeNotification(report))
}

// StatusChangeNotification builds the message sent when a report changes status.
func StatusChangeNotification(report *model.Report) model.Notification {
	kind := model.NotificationInfo
	label := "in progress"
	switch report.Status {
	case model.StatusResolved:
		kind = model.NotificationSuccess
		label = "resolved"
	case model.StatusPending:
		kind = model.NotificationWarning
		label = "pending"
	}
	reportID := report.ID
	return model.NewNotification(
		kind,
		"Report status updated",
		fmt.Sprintf("Your report %q is now %s.", report.Title, label),
		&reportID,
	)
}
