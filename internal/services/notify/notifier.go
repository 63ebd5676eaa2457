package notify

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// LogNotifier writes notifications to the log instead of a push service.
// Default collaborator when no push transport is configured.
type LogNotifier struct {
	logger arbor.ILogger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger arbor.ILogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the notification that would have been pushed
func (n *LogNotifier) Send(ctx context.Context, subscription *models.PushSubscription, notification interfaces.Notification) error {
	endpoint := ""
	if subscription != nil {
		endpoint = subscription.Endpoint
	}

	n.logger.Info().
		Str("endpoint", endpoint).
		Str("title", notification.Title).
		Str("body", notification.Body).
		Msg("Notification")
	return nil
}
