package interfaces

import (
	"context"

	"github.com/ternarybob/vigilo/internal/models"
)

// Notification is one push message
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notifier delivers push messages to a subscribed device.
// Delivery failures are non-fatal to callers.
type Notifier interface {
	Send(ctx context.Context, subscription *models.PushSubscription, notification Notification) error
}
