package notify

import (
	"context"
	"log/slog"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

var _ ports.Notifier = (*LogNotifier)(nil)

// LogNotifier writes notifications to the log. It stands in for the email
// and push providers, which live outside this service.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier; a nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements ports.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, note domain.Notification) error {
	n.logger.InfoContext(ctx, "notification",
		"notification_id", note.ID,
		"kind", note.Kind,
		"project_id", note.ProjectID,
		"recipient_id", note.RecipientID,
		"payload", note.Payload,
	)
	return nil
}
